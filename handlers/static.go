package handlers

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"static-server/protocol"
)

//go:embed 404.html
var notFoundPage string

// ErrInvalidPath is returned for request paths that do not start with "/".
// The parser never produces one, so seeing it means a caller bug.
var ErrInvalidPath = errors.New("request path must start with /")

// NotFoundPage returns the fixed body of 404 responses.
func NotFoundPage() string {
	return notFoundPage
}

// StaticFileHandler serves regular files below Root.
//
// Paths are joined to Root without sanitization: a request for
// "/../secret" resolves outside Root. Put the server behind something that
// normalizes paths if Root must be a hard boundary.
type StaticFileHandler struct {
	Root string
}

// NewStaticFileHandler returns a handler serving files below root.
func NewStaticFileHandler(root string) *StaticFileHandler {
	return &StaticFileHandler{Root: root}
}

// InCurrentDir returns a handler rooted at the working directory.
func InCurrentDir() (*StaticFileHandler, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return NewStaticFileHandler(wd), nil
}

// Resolve maps a request path to a filesystem path below Root.
func (h *StaticFileHandler) Resolve(path string) (string, error) {
	rel, ok := strings.CutPrefix(path, "/")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(h.Root, rel), nil
}

// Handle answers with the file's contents, or with the 404 page when the
// path does not name a regular file.
func (h *StaticFileHandler) Handle(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	path, err := h.Resolve(req.Path)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return protocol.NewHTMLResponse(protocol.StatusNotFound, notFoundPage), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	res, err := protocol.NewFileResponse(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return res, nil
}
