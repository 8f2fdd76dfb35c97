// Package logging provides a simple leveled logging interface for media-vfs.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (DEBUG=1
// forces debug) and can be overridden at runtime with SetLevel.
package logging
