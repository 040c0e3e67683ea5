package wire

import (
	"net/http"
	"strings"
)

// Header is a single response header. Responses keep headers as an ordered
// list so serialization preserves the order the caller set them in.
type Header struct {
	Name  string
	Value string
}

// Response is a structured HTTP response ready for serialization.
type Response struct {
	Proto      string
	StatusCode int
	Headers    []Header
	Body       []byte
}

// NewResponse creates a response with the given status code.
func NewResponse(status int) *Response {
	return &Response{
		Proto:      "HTTP/1.1",
		StatusCode: status,
	}
}

// SetHeader sets a header, replacing the first existing header with the
// same name (case-insensitive) or appending if none exists.
func (r *Response) SetHeader(name, value string) {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Name, name) {
			r.Headers[i].Value = value
			return
		}
	}
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}

// GetHeader returns the value of the named header, or "" when absent.
func (r *Response) GetHeader(name string) string {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Name, name) {
			return r.Headers[i].Value
		}
	}
	return ""
}

// HasHeader reports whether the named header is set.
func (r *Response) HasHeader(name string) bool {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Name, name) {
			return true
		}
	}
	return false
}

// TextResponse builds a plain-text response, used for synthesized error
// pages like the 400 sent on malformed requests.
func TextResponse(status int, body string) *Response {
	resp := NewResponse(status)
	resp.SetHeader("Content-Type", "text/plain; charset=utf-8")
	resp.Body = []byte(body)
	return resp
}

// StatusText returns the reason phrase for a status code.
func StatusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}
