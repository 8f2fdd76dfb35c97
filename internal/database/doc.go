// Package database provides the SQLite store behind the media-vfs catalog.
//
// It holds:
//   - workspaces and the file mappings that link sidecar hashes to files
//   - the category tree, labels and their attachments
//   - content records and their thumbnail keys
//   - application settings (including path parser rules) and event logs
//
// Each table is exposed as a small repository value (FileMappings,
// Categories, ...) that satisfies the matching interface in package vfs.
// The database uses WAL mode and seeds the root category on first start.
package database
