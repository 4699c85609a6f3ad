// Package handler implements per-connection request processing: read the
// request, resolve the target inside the root directory (with SPA fallback),
// load it and write a fully buffered response.
package handler

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"time"

	serveerrors "github.com/conneroisu/omnigrid/internal/errors"
	"github.com/conneroisu/omnigrid/internal/fileloader"
	"github.com/conneroisu/omnigrid/internal/logging"
	"github.com/conneroisu/omnigrid/internal/mime"
	"github.com/conneroisu/omnigrid/internal/pathsafe"
	"github.com/conneroisu/omnigrid/internal/wire"
)

// IndexFile is served for "/" and for extension-less routes with no file.
const IndexFile = "index.html"

// DefaultReadTimeout bounds how long a worker waits for a request.
const DefaultReadTimeout = 5 * time.Second

// Target is a candidate resolved against the root directory.
type Target struct {
	// Path is the logical candidate, after SPA fallback, before symlink resolution.
	Path      string
	Canonical string
	Existed   bool
	IsRegular bool
}

// Handler serves one connection at a time; it is safe for concurrent use
// because it holds only read-only state.
type Handler struct {
	root        string
	loader      *fileloader.Loader
	readTimeout time.Duration
	logger      logging.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLoader replaces the file loader.
func WithLoader(loader *fileloader.Loader) Option {
	return func(h *Handler) {
		h.loader = loader
	}
}

// WithReadTimeout sets the per-connection read deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.readTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// New creates a Handler serving files below root, which must already be
// absolute and canonical.
func New(root string, opts ...Option) *Handler {
	h := &Handler{
		root:        root,
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.loader == nil {
		h.loader = fileloader.New(nil)
	}
	if h.logger == nil {
		h.logger = logging.NewNopLogger()
	}
	h.logger = h.logger.WithComponent("handler")

	return h
}

// Root returns the served root directory.
func (h *Handler) Root() string {
	return h.root
}

// Serve reads one request from conn and writes the response. It never
// closes conn; the caller owns it.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) {
	if h.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
			h.logger.Debug(ctx, "read deadline not set",
				"remote", conn.RemoteAddr().String(),
				"error", err.Error())
		}
	}

	raw := wire.ReadRequest(conn)
	resp := h.Process(ctx, raw)

	if _, err := resp.WriteTo(conn); err != nil {
		h.logger.Debug(ctx, "response write aborted",
			"remote", conn.RemoteAddr().String(),
			"status", resp.StatusCode,
			"error", err.Error())
	}
}

// Process turns raw request bytes into a response. Every failure becomes
// an error response; nothing escapes.
func (h *Handler) Process(ctx context.Context, raw []byte) wire.Response {
	line := wire.RequestLine(raw)

	body, contentType, err := h.resolve(ctx, line)
	if err != nil {
		h.logFailure(ctx, line, err)
		return wire.FromError(err)
	}

	h.logger.Debug(ctx, "request served",
		"request_line", logging.SanitizeForLog(line),
		"content_type", contentType,
		"bytes", len(body))

	return wire.OK(contentType, body)
}

func (h *Handler) resolve(ctx context.Context, line string) ([]byte, string, error) {
	req, err := wire.ParseRequestLine(line)
	if err != nil {
		return nil, "", err
	}

	cleaned := pathsafe.Sanitize(req.Target)
	target, err := h.Resolve(cleaned)
	if err != nil {
		return nil, "", err
	}

	body, err := h.loader.Load(target.Canonical)
	if err != nil {
		return nil, "", serveerrors.ErrReadFailed(target.Canonical, err)
	}

	return body, mime.ForPath(target.Path), nil
}

// Resolve maps a sanitized request path to a servable file below the root.
func (h *Handler) Resolve(cleaned string) (Target, error) {
	var candidate string
	if cleaned == "/" {
		candidate = filepath.Join(h.root, IndexFile)
	} else {
		candidate = filepath.Join(h.root, filepath.FromSlash(cleaned[1:]))
	}

	if !exists(candidate) && !pathsafe.HasExtension(cleaned) {
		candidate = filepath.Join(h.root, IndexFile)
	}

	canonical, err := pathsafe.WeaklyCanonical(candidate)
	if err != nil {
		return Target{}, serveerrors.ErrInvalidPath(cleaned, err)
	}

	if !pathsafe.Contains(h.root, canonical) {
		return Target{}, serveerrors.ErrPathEscape(cleaned).
			WithContext("resolved", canonical)
	}

	target := Target{Path: candidate, Canonical: canonical}
	info, err := os.Stat(canonical)
	if err == nil {
		target.Existed = true
		target.IsRegular = info.Mode().IsRegular()
	}
	if !target.IsRegular {
		return target, serveerrors.ErrNotFound(cleaned)
	}

	return target, nil
}

func (h *Handler) logFailure(ctx context.Context, line string, err error) {
	if serveerrors.IsSecurityError(err) {
		details := map[string]interface{}{"request_line": line}
		var se *serveerrors.ServeError
		if errors.As(err, &se) {
			for k, v := range se.Context {
				details[k] = v
			}
		}
		logging.LogSecurityEvent(h.logger, ctx, "path_escape", details)
		return
	}

	h.logger.Debug(ctx, "request rejected",
		"request_line", logging.SanitizeForLog(line),
		"error", err.Error())
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
