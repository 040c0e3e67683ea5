// Package wire converts raw request bytes into structured requests and
// structured responses into raw bytes. It performs no I/O and keeps no
// state beyond the buffers it is handed.
package wire

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"httpcore/pkg/errors"
)

// ParseRequest parses one request's worth of bytes: a request line, header
// lines terminated by an empty line, and everything after the empty line
// as the body. There is no chunked-transfer reassembly; a request whose
// head does not fit the buffer it arrived in is a protocol error.
func ParseRequest(raw []byte) (*Request, error) {
	line, rest, ok := cutLine(raw)
	if !ok {
		return nil, errors.NewError(errors.ErrorTypeProtocol, "invalid request line")
	}

	method, target, proto, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:  method,
		Proto:   proto,
		Headers: make(map[string]string),
	}

	req.Path = target
	if i := strings.IndexByte(target, '?'); i >= 0 {
		req.Path = target[:i]
		req.RawQuery = target[i+1:]
		if q, qerr := url.ParseQuery(req.RawQuery); qerr == nil {
			req.Query = q
		}
	}

	// Header lines until the empty line.
	for {
		line, rest, ok = cutLine(rest)
		if !ok {
			return nil, errors.NewError(errors.ErrorTypeProtocol, "headers not terminated")
		}
		if len(line) == 0 {
			break
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, errors.NewError(errors.ErrorTypeProtocol, "invalid header line").
				WithDetail("line", string(line))
		}

		name := strings.ToLower(strings.TrimSpace(string(line[:colon])))
		value := strings.TrimSpace(string(line[colon+1:]))
		if name == "" {
			return nil, errors.NewError(errors.ErrorTypeProtocol, "empty header name")
		}
		// Duplicate names: last write wins.
		req.Headers[name] = value
	}

	if len(rest) > 0 {
		req.Body = rest
	}
	return req, nil
}

// parseRequestLine splits "METHOD target HTTP/x.y" into its three parts.
func parseRequestLine(line []byte) (method, target, proto string, err error) {
	fields := strings.Fields(string(line))
	if len(fields) != 3 {
		return "", "", "", errors.NewError(errors.ErrorTypeProtocol, "invalid request line").
			WithDetail("line", string(line))
	}
	if !strings.HasPrefix(fields[2], "HTTP/") {
		return "", "", "", errors.NewError(errors.ErrorTypeProtocol, "invalid protocol version").
			WithDetail("proto", fields[2])
	}
	return fields[0], fields[1], fields[2], nil
}

// cutLine splits off the next line, accepting CRLF or bare LF endings.
// ok is false when no line terminator remains.
func cutLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return nil, b, false
	}
	line = b[:i]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, b[i+1:], true
}

// SerializeResponse emits the status line, each header as "Name: value",
// a blank line, and the body verbatim. Content-Length is set from the body
// length unless the caller already set one; the body is never chunked.
func SerializeResponse(resp *Response) []byte {
	var buf bytes.Buffer
	writeHead(&buf, resp)
	if !resp.HasHeader("Content-Length") {
		buf.WriteString("Content-Length: ")
		buf.WriteString(strconv.Itoa(len(resp.Body)))
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(resp.Body)
	return buf.Bytes()
}

// SerializeHead emits only the status line, headers, and terminating blank
// line, with no implicit Content-Length. Used for responses whose body is
// an open-ended stream.
func SerializeHead(resp *Response) []byte {
	var buf bytes.Buffer
	writeHead(&buf, resp)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func writeHead(buf *bytes.Buffer, resp *Response) {
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	buf.WriteString(proto)
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(resp.StatusCode))
	buf.WriteByte(' ')
	buf.WriteString(StatusText(resp.StatusCode))
	buf.WriteString("\r\n")
	for _, h := range resp.Headers {
		buf.WriteString(h.Name)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.WriteString("\r\n")
	}
}
