package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxLineBytes bounds a single request or header line.
const DefaultMaxLineBytes = 64 << 10

var errLineTooLong = errors.New("line too long")

// Method is a request method. GET is the only one the server accepts.
type Method string

const MethodGet Method = "GET"

// ParseMethod maps a request-line token to a Method.
func ParseMethod(token string) (Method, error) {
	switch Method(token) {
	case MethodGet:
		return MethodGet, nil
	}
	return "", fmt.Errorf("%w: unsupported method: %s", ErrMalformedRequest, token)
}

// Request is a parsed request head. Path is kept exactly as received:
// it is neither cleaned nor percent-decoded.
type Request struct {
	Method  Method
	Path    string
	Headers Header
}

// RequestReader reads request heads off a buffered stream.
type RequestReader struct {
	r *bufio.Reader

	// MaxLineBytes bounds every line, terminator excluded. Zero disables
	// the limit.
	MaxLineBytes int
}

// NewRequestReader wraps r. An existing *bufio.Reader is used as is so
// bytes buffered for the next request are not lost between calls.
func NewRequestReader(r io.Reader) *RequestReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &RequestReader{r: br, MaxLineBytes: DefaultMaxLineBytes}
}

// ReadRequest consumes one request head: the request line, the header
// lines and the terminating blank line.
//
// A stream that ends before any byte of the request line was read yields
// ErrConnectionClosed. Every other parse failure wraps ErrMalformedRequest.
// Transport errors are returned unchanged.
func (rr *RequestReader) ReadRequest() (*Request, error) {
	line, n, err := rr.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, ErrConnectionClosed
		}
		return nil, rr.lineError("request line", err)
	}

	fields := strings.Fields(line)
	if len(fields) < 1 {
		return nil, fmt.Errorf("%w: missing method", ErrMalformedRequest)
	}
	method, err := ParseMethod(fields[0])
	if err != nil {
		return nil, err
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: missing path", ErrMalformedRequest)
	}

	req := &Request{
		Method:  method,
		Path:    fields[1],
		Headers: NewHeader(),
	}
	for {
		line, _, err := rr.readLine()
		if err != nil {
			return nil, rr.lineError("headers", err)
		}
		if line == "" {
			break
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			return nil, fmt.Errorf("%w: missing header value: %q", ErrMalformedRequest, line)
		}
		if i == 0 {
			return nil, fmt.Errorf("%w: missing header name: %q", ErrMalformedRequest, line)
		}
		req.Headers.Set(line[:i], strings.TrimSpace(line[i+1:]))
	}
	return req, nil
}

func (rr *RequestReader) lineError(where string, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: reading %s: %w", ErrMalformedRequest, where, io.ErrUnexpectedEOF)
	case errors.Is(err, errLineTooLong):
		return fmt.Errorf("%w: reading %s: %w", ErrMalformedRequest, where, err)
	}
	return fmt.Errorf("reading %s: %w", where, err)
}

// readLine returns the next '\n'-terminated line without its terminator
// and an optional trailing '\r'. n counts the bytes consumed, including
// those of an unterminated line cut short by io.EOF.
func (rr *RequestReader) readLine() (string, int, error) {
	var (
		line []byte
		n    int
	)
	for {
		frag, err := rr.r.ReadSlice('\n')
		n += len(frag)
		line = append(line, frag...)
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return "", n, err
		}
		if rr.MaxLineBytes > 0 && len(line) > rr.MaxLineBytes+2 {
			return "", n, errLineTooLong
		}
	}

	line = line[:len(line)-1]
	if l := len(line); l > 0 && line[l-1] == '\r' {
		line = line[:l-1]
	}
	if rr.MaxLineBytes > 0 && len(line) > rr.MaxLineBytes {
		return "", n, errLineTooLong
	}
	return string(line), n, nil
}
