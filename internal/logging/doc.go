// Package logging provides opt-in file-based logging with rotation for the
// semcode core. When debug logging is enabled, comprehensive JSON logs are
// written to ~/.semcode/logs/ for troubleshooting; by default logging stays
// minimal and goes to stderr only.
package logging
