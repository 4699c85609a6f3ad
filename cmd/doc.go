// Package cmd provides the command-line interface for omnigrid.
//
// # Usage
//
//	omnigrid [port] [flags]
//	omnigrid version [--format text|json] [--short]
//
// The server serves ./dist when it exists and the working directory
// otherwise. The port is taken from the PORT environment variable, then
// from the positional argument; invalid or out-of-range values fall back
// to 1234 with a warning.
//
// # Flags
//
//   - --host: interface to bind (default: all interfaces)
//   - --workers: worker count, 0 picks max(4, NumCPU)
//   - --read-timeout: per-connection request read deadline
//   - --watch: log file changes under the root directory
//   - --log-level, -l: debug, info, warn or error
//   - --log-format: text or json
//
// SIGINT and SIGTERM start a graceful shutdown: the listener closes and
// every accepted connection is served before the process exits.
package cmd
