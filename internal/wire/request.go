package wire

import (
	"net/url"
	"strings"
)

// Request is a parsed HTTP request. Header names are lowercased on parse
// and duplicate names are last-write-wins; callers that need multi-value
// headers must keep them upstream of this codec.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Query    url.Values
	Proto    string
	Headers  map[string]string
	Body     []byte
}

// Header returns the value of the named header, matching case-insensitively.
// It returns "" when the header is absent.
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// KeepAlive reports whether the client asked for the connection to be
// reused after this exchange. HTTP/1.1 defaults to keep-alive unless the
// client sends "Connection: close"; HTTP/1.0 requires an explicit
// "Connection: keep-alive".
func (r *Request) KeepAlive() bool {
	conn := strings.ToLower(r.Header("Connection"))
	if r.Proto == "HTTP/1.0" {
		return conn == "keep-alive"
	}
	return conn != "close"
}
