// Package wire implements the HTTP/1.1 subset spoken by the server: bounded
// request reading, request-line parsing and fully buffered responses.
package wire

import (
	"bytes"
	"io"
	"strings"

	"github.com/conneroisu/omnigrid/internal/errors"
)

// MaxRequestSize caps how many bytes are read from a connection.
const MaxRequestSize = 8192

var headerTerminator = []byte("\r\n\r\n")

// Request is the parsed request line.
type Request struct {
	Method string
	Target string
}

// ReadRequest reads from r until the header terminator appears, MaxRequestSize
// bytes have accumulated, or the reader fails. Read errors, including
// deadline expiry, end the read and return whatever arrived.
func ReadRequest(r io.Reader) []byte {
	buf := make([]byte, MaxRequestSize)
	data := make([]byte, 0, MaxRequestSize)

	for !bytes.Contains(data, headerTerminator) {
		n, err := r.Read(buf)
		data = append(data, buf[:n]...)
		if err != nil || n == 0 || len(data) >= MaxRequestSize {
			break
		}
	}

	return data
}

// RequestLine returns raw up to the first CRLF, or all of raw when none exists.
func RequestLine(raw []byte) string {
	line := string(raw)
	if i := strings.Index(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	return line
}

// ParseRequestLine extracts the method and target of a GET request line.
// Anything not starting with "GET " is a method error; a GET line without
// a second space is malformed.
func ParseRequestLine(line string) (Request, error) {
	if !strings.HasPrefix(line, "GET ") {
		return Request{}, errors.ErrMethodNotAllowed(line)
	}

	first := strings.IndexByte(line, ' ')
	second := strings.IndexByte(line[first+1:], ' ')
	if second < 0 {
		return Request{}, errors.ErrMalformedRequest(line)
	}
	second += first + 1

	return Request{
		Method: line[:first],
		Target: line[first+1 : second],
	}, nil
}
