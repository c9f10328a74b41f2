package protocol

import "errors"

var (
	// ErrMalformedRequest is wrapped by every parse failure. The wrapping
	// error carries the precise reason.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrConnectionClosed reports that the peer closed the stream before
	// sending any byte of a new request. It is a clean end of a keep-alive
	// connection, not a protocol error.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrShortBody reports a body that ended before Content-Length bytes
	// were copied.
	ErrShortBody = errors.New("body shorter than content length")
)
