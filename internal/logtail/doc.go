// Package logtail reads the tail of perch's own log file for the in-app log
// view.
//
// # Why a log tab
//
// The TUI owns the terminal, so perch logs to a file. Fetch failures are soft
// and only summarised in the header; the log tab lets the user see the full
// error, the request that failed and the poll history without leaving perch.
//
// # Reading
//
// Read keeps a ring buffer of the last maxLines lines, so memory stays
// bounded by the requested window rather than the file size. The file is
// reopened on every call; the UI calls Read on its one-second tick only
// while the log tab is visible. A missing file is not an error: the log view
// simply shows nothing yet.
//
// # Parsing
//
// ParseEntry decodes the JSON records written by the logging package:
//
//	{"time":"2026-10-17T09:12:03Z","level":"WARN","msg":"fetch failed",
//	 "resource":"feed","user_id":2,"error":"feed: api returned status 502"}
//
// into time, level, message and attributes sorted by key. Lines that are not
// JSON objects are reported as not parsed and left for the caller to show
// verbatim, so a hand-edited or truncated file still displays.
package logtail
