// Package mime maps file extensions to the Content-Type values the server emits.
package mime

import "github.com/conneroisu/omnigrid/internal/pathsafe"

// Fallback is the content type for unknown or missing extensions.
const Fallback = "application/octet-stream"

// types is matched exactly and case-sensitively against the dot-prefixed extension.
var types = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".txt":  "text/plain",
	".wasm": "application/wasm",
	".map":  "application/json",
}

// Resolve returns the content type for a dot-prefixed extension.
func Resolve(extension string) string {
	if contentType, ok := types[extension]; ok {
		return contentType
	}
	return Fallback
}

// ForPath resolves the content type from the extension of p's final element.
func ForPath(p string) string {
	return Resolve(pathsafe.Extension(p))
}
