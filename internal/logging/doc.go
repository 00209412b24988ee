// Package logging configures structured JSON logging for the service.
//
// Logs go to stderr by default; when a file path is configured they are
// also written to a size-rotated log file under ~/.ewbsearch/logs/. The
// MCP front end uses a file-only setup because its stdio transport cannot
// tolerate stray writes on stdout or stderr.
package logging
