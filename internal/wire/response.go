package wire

import (
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/conneroisu/omnigrid/internal/errors"
)

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode  int
	StatusText  string
	ContentType string
	Body        []byte
}

// OK builds a 200 response carrying body.
func OK(contentType string, body []byte) Response {
	return Response{
		StatusCode:  http.StatusOK,
		StatusText:  http.StatusText(http.StatusOK),
		ContentType: contentType,
		Body:        body,
	}
}

// FromError builds the plain-text error response for err.
func FromError(err error) Response {
	status := errors.StatusOf(err)
	return Response{
		StatusCode:  status.Code,
		StatusText:  http.StatusText(status.Code),
		ContentType: "text/plain",
		Body:        []byte(status.Body),
	}
}

// Header renders the status line and headers, including the blank line.
func (r Response) Header() []byte {
	b := make([]byte, 0, 128)
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(r.StatusCode), 10)
	b = append(b, ' ')
	b = append(b, r.StatusText...)
	b = append(b, "\r\nContent-Length: "...)
	b = strconv.AppendInt(b, int64(len(r.Body)), 10)
	b = append(b, "\r\nContent-Type: "...)
	b = append(b, r.ContentType...)
	b = append(b, "\r\nConnection: close\r\n\r\n"...)
	return b
}

// WriteTo writes the header and body to w, stopping at the first error.
func (r Response) WriteTo(w io.Writer) (int64, error) {
	buffers := net.Buffers{r.Header()}
	if len(r.Body) > 0 {
		buffers = append(buffers, r.Body)
	}
	return buffers.WriteTo(w)
}
