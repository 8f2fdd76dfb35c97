/*
Package filesystem provides resilient filesystem operations for the virtual
and physical trees, which are commonly NFS mounts and may sit on different
volumes.

# Key Features

  - Automatic retry with exponential backoff for NFS ESTALE errors
  - Move with a copy-and-remove fallback when source and destination are on
    different filesystems (EXDEV)
  - Per-volume operation metrics through an Observer set at startup

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	// Relocate a physical file, creating parent directories as needed
	if err := filesystem.Move(oldPath, newPath); err != nil {
	    return err
	}

# Retry Behavior

Defaults are 3 retries with backoff from 50ms up to 500ms. Only stale file
handle errors trigger retries; all other errors fail immediately.

# Volume Labels

SetDefaultVolumeResolver maps path prefixes to labels ("virtual",
"physical", "cache", "database") used by the metrics observer.
*/
package filesystem
