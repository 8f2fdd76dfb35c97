package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"media-vfs/internal/logging"
)

// Move renames src to dst, creating dst's parent directories. When the two
// paths are on different filesystems the file is copied and the source
// removed. Stale NFS handles are retried.
func Move(src, dst string) error {
	start := time.Now()
	volume := DefaultRetryConfig().resolveVolume(dst)

	err := move(src, dst)
	if o := observe(); o != nil {
		o.ObserveOperation(volume, "move", time.Since(start).Seconds(), err)
	}
	return err
}

func move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dst, err)
	}

	err := withRetry("move", dst, DefaultRetryConfig(), func() error {
		return os.Rename(src, dst)
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("moving %s to %s: %w", src, dst, err)
	}

	logging.Debug("Cross-device move %s -> %s, copying", src, dst)
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing %s after copy: %w", src, err)
	}
	return nil
}

// copyFile copies src to dst through a temporary file in dst's directory so
// a partial copy never appears under dst's name.
func copyFile(src, dst string) (err error) {
	in, err := OpenWithRetry(src, DefaultRetryConfig())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil {
			logging.Debug("closing %s: %v", src, closeErr)
		}
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".move-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return err
	}
	if err = os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}

// Remove deletes path. A path that no longer exists is not an error.
func Remove(path string) error {
	start := time.Now()
	err := withRetry("remove", path, DefaultRetryConfig(), func() error {
		return os.Remove(path)
	})
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	if o := observe(); o != nil {
		o.ObserveOperation(DefaultRetryConfig().resolveVolume(path), "remove", time.Since(start).Seconds(), err)
	}
	return err
}
