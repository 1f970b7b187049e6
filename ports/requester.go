package ports

import (
	"context"
	"net/http"
)

// Response is a read HTTP response. Truncated is set when the body was cut
// at the client's size limit; Body then holds only the first part.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Truncated  bool
}

// ContentType returns the Content-Type header, or ""
func (r *Response) ContentType() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// Requester sends one HTTP request to the catalog service.
//
// Implementations return an error only for transport failures (including
// timeouts). 4xx and 5xx responses come back as a Response; callers inspect
// StatusCode themselves. Rate limiting is the implementation's concern.
type Requester interface {
	Request(ctx context.Context, url, method, body string, headers map[string]string) (*Response, error)
}
