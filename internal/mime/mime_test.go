package mime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		extension string
		expected  string
	}{
		{".html", "text/html"},
		{".htm", "text/html"},
		{".css", "text/css"},
		{".js", "application/javascript"},
		{".json", "application/json"},
		{".png", "image/png"},
		{".jpg", "image/jpeg"},
		{".jpeg", "image/jpeg"},
		{".svg", "image/svg+xml"},
		{".ico", "image/x-icon"},
		{".txt", "text/plain"},
		{".wasm", "application/wasm"},
		{".map", "application/json"},
		{"", Fallback},
		{".woff2", Fallback},
		{"html", Fallback},
		{".HTML", Fallback},
		{".Js", Fallback},
	}

	for _, tc := range tests {
		t.Run("ext"+tc.extension, func(t *testing.T) {
			assert.Equal(t, tc.expected, Resolve(tc.extension))
		})
	}
}

func TestForPath(t *testing.T) {
	assert.Equal(t, "text/html", ForPath("/srv/dist/index.html"))
	assert.Equal(t, "application/json", ForPath("/srv/dist/assets/app.js.map"))
	assert.Equal(t, "image/svg+xml", ForPath("logo.svg"))
	assert.Equal(t, Fallback, ForPath("/srv/dist/LICENSE"))
	assert.Equal(t, Fallback, ForPath("/srv/dist/.html"))
}
