package protocol

import "path/filepath"

const defaultMimeType = "application/octet-stream"

// Extensions are matched exactly, so ".HTML" falls back to the default.
var mimeTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".gif":  "image/gif",
}

// MimeType returns the Content-Type for path based on its extension.
func MimeType(path string) string {
	if t, ok := mimeTypes[filepath.Ext(path)]; ok {
		return t
	}
	return defaultMimeType
}
