package vfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories when a lookup matches nothing.
	ErrNotFound = errors.New("not found")

	// ErrPrecondition marks a reconciliation step that cannot run in the
	// current state of the trees or the store. Callers drop the item.
	ErrPrecondition = errors.New("precondition failed")

	// ErrSkipped marks an update that needed no action.
	ErrSkipped = errors.New("skipped")

	// ErrWorkspaceMismatch is a precondition failure for a sidecar whose
	// mapping belongs to another workspace.
	ErrWorkspaceMismatch = fmt.Errorf("%w: mapping belongs to another workspace", ErrPrecondition)

	// ErrUnsupportedMime is a precondition failure for a file that is not a
	// recognized content type.
	ErrUnsupportedMime = fmt.Errorf("%w: unsupported mime type", ErrPrecondition)

	// ErrContentExists is a precondition failure for a mapping that already
	// has content.
	ErrContentExists = fmt.Errorf("%w: content already exists", ErrPrecondition)
)

// Preconditionf formats a precondition error that matches ErrPrecondition.
func Preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
