// Package internal contains the implementation packages for omnigrid.
//
// # Package Organization
//
//   - pathsafe: request path sanitization and root containment checks
//   - mime: extension to Content-Type table
//   - fileloader: whole-file reads through an afero filesystem
//   - wire: HTTP/1.1 request-line parsing and response serialization
//   - handler: per-connection request resolution
//   - server: accept loop, worker pool and shutdown controller
//   - config: port and root resolution on top of viper
//   - errors: typed serve errors and their HTTP status mapping
//   - logging: structured logging on log/slog
//   - watcher: optional fsnotify watcher on the served root
//   - version: build metadata
//
// # Request Flow
//
// The accept loop enqueues each connection on the worker pool. A worker
// hands it to the handler, which reads one request, resolves the target
// with pathsafe, loads it with fileloader, picks a type with mime and
// writes a single response before the worker closes the connection.
//
// # Security Considerations
//
// Sanitization only normalizes the request path. Every file that is served
// has first been symlink-resolved and checked to lie inside the canonical
// root; rejections are logged as security events.
package internal
