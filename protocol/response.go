package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Status is a response status. Only the two the server produces exist.
type Status int

const (
	StatusOK       Status = 200
	StatusNotFound Status = 404
)

// Code returns the numeric status code.
func (s Status) Code() int { return int(s) }

// Reason returns the reason phrase.
func (s Status) Reason() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "Not Found"
	}
	return "Unknown"
}

func (s Status) String() string {
	return strconv.Itoa(int(s)) + " " + s.Reason()
}

// Response is a status, its headers and a lazily read body. The body is
// owned by whoever writes the response and must be released with Close.
type Response struct {
	Status Status
	Header Header
	Body   io.Reader
}

// NewHTMLResponse builds a response carrying html as text/html.
func NewHTMLResponse(status Status, html string) *Response {
	body := []byte(html)
	h := NewHeader()
	h.Set("Content-Type", "text/html")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	return &Response{
		Status: status,
		Header: h,
		Body:   bytes.NewReader(body),
	}
}

// NewFileResponse builds a 200 response streaming f. path selects the
// Content-Type; the file size becomes Content-Length. The response takes
// ownership of f only on success.
func NewFileResponse(path string, f *os.File) (*Response, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	h := NewHeader()
	h.Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	h.Set("Content-Type", MimeType(path))
	return &Response{
		Status: StatusOK,
		Header: h,
		Body:   f,
	}, nil
}

// ContentLength returns the declared body length, or -1 when the header
// is absent or unparsable.
func (r *Response) ContentLength() int64 {
	v, ok := r.Header.Get("Content-Length")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// Close releases the body if it holds a resource.
func (r *Response) Close() error {
	if c, ok := r.Body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WriteResponse writes res to w as a single HTTP/1.1 message and returns
// the number of body bytes copied. The body is streamed, never buffered
// whole. When Content-Length is declared exactly that many body bytes are
// written, or ErrShortBody is returned. w is flushed if it is a
// *bufio.Writer.
func WriteResponse(w io.Writer, res *Response) (int64, error) {
	if _, err := io.WriteString(w, "HTTP/1.1 "+res.Status.String()+"\r\n"); err != nil {
		return 0, err
	}
	var herr error
	res.Header.Each(func(k, v string) {
		if herr == nil {
			_, herr = io.WriteString(w, k+": "+v+"\r\n")
		}
	})
	if herr != nil {
		return 0, herr
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return 0, err
	}

	var (
		n   int64
		err error
	)
	if res.Body != nil {
		if cl := res.ContentLength(); cl >= 0 {
			n, err = io.Copy(w, io.LimitReader(res.Body, cl))
			if err == nil && n < cl {
				err = fmt.Errorf("%w: wrote %d of %d bytes", ErrShortBody, n, cl)
			}
		} else {
			n, err = io.Copy(w, res.Body)
		}
	}
	if err != nil {
		return n, err
	}

	if bw, ok := w.(*bufio.Writer); ok {
		return n, bw.Flush()
	}
	return n, nil
}
