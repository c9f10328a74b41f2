// Package protocol implements the HTTP/1.1 subset the server speaks:
// parsing GET request heads off a buffered stream and writing responses
// with a status line, ordered headers and a streamed body.
//
// Chunked transfer encoding, request bodies, pipelining and byte ranges
// are not supported.
package protocol
