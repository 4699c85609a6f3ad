package pathsafe

import (
	"strings"
	"testing"
)

// FuzzSanitize checks traversal tokens never survive sanitization
func FuzzSanitize(f *testing.F) {
	f.Add("/")
	f.Add("/../../etc/passwd")
	f.Add("/a/../c")
	f.Add("//./..//x?../../y")
	f.Add("..\\..\\windows")
	f.Add("/%2e%2e/%2e%2e/etc/passwd")
	f.Add("/\x00/..")

	f.Fuzz(func(t *testing.T, raw string) {
		if len(raw) > 8192 {
			t.Skip("request line cap")
		}

		cleaned := Sanitize(raw)
		if !strings.HasPrefix(cleaned, "/") {
			t.Errorf("Sanitize(%q) = %q: missing leading slash", raw, cleaned)
		}
		if strings.Contains(cleaned, "?") {
			t.Errorf("Sanitize(%q) = %q: query string survived", raw, cleaned)
		}
		for _, segment := range strings.Split(cleaned[1:], "/") {
			if segment == ".." || segment == "." {
				t.Errorf("Sanitize(%q) = %q: traversal segment survived", raw, cleaned)
			}
			if segment == "" && cleaned != "/" {
				t.Errorf("Sanitize(%q) = %q: empty segment survived", raw, cleaned)
			}
		}
	})
}
