// Package pathsafe sanitizes request paths and enforces that resolved
// filesystem targets stay inside the served root directory.
//
// Sanitize is a token filter, not a resolver: ".." segments are discarded
// rather than popping their parent, so "/a/../c" becomes "/a/c". The real
// security boundary is Contains, which compares symlink-resolved paths.
package pathsafe

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Sanitize strips the query string and every empty, "." and ".." segment
// from raw, returning a path with exactly one leading slash.
func Sanitize(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}

	segments := strings.Split(raw, "/")
	kept := segments[:0]
	for _, segment := range segments {
		if segment == "" || segment == "." || segment == ".." {
			continue
		}
		kept = append(kept, segment)
	}

	return "/" + strings.Join(kept, "/")
}

// HasExtension reports whether the final element of p contains a dot.
func HasExtension(p string) bool {
	dot := strings.LastIndexByte(p, '.')
	return dot >= 0 && dot > strings.LastIndexByte(p, '/')
}

// Extension returns the dot-prefixed extension of the final element of p.
// Dot-files such as ".env" have no extension.
func Extension(p string) string {
	base := filepath.Base(p)
	if base == "." || base == ".." {
		return ""
	}
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return ""
	}
	return base[dot:]
}

// WeaklyCanonical returns the absolute, symlink-resolved form of p. Only the
// longest existing prefix is resolved; a missing tail is appended lexically.
func WeaklyCanonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	existing := abs
	var tail []string
	for {
		_, statErr := os.Stat(existing)
		if statErr == nil {
			break
		}
		if !isMissing(statErr) {
			return "", statErr
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		tail = append(tail, filepath.Base(existing))
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(tail)+1)
	parts = append(parts, resolved)
	for i := len(tail) - 1; i >= 0; i-- {
		parts = append(parts, tail[i])
	}

	return filepath.Join(parts...), nil
}

// Contains reports whether candidate lies at or below root once both are
// weakly canonicalized. Any canonicalization failure yields false.
func Contains(root, candidate string) bool {
	canonicalRoot, err := WeaklyCanonical(root)
	if err != nil {
		return false
	}
	canonicalCandidate, err := WeaklyCanonical(candidate)
	if err != nil {
		return false
	}

	rootParts := components(canonicalRoot)
	candidateParts := components(canonicalCandidate)
	if len(rootParts) > len(candidateParts) {
		return false
	}
	for i, part := range rootParts {
		if candidateParts[i] != part {
			return false
		}
	}

	return true
}

func components(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == filepath.Separator
	})
}

// isMissing treats ENOTDIR like ENOENT: a path below a regular file does not exist.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
