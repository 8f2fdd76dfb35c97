package aclfile

import (
	"fmt"
	"os"
)

// ReadFile reads and decodes the sidecar at path. A file caught mid-write
// fails to decode; callers retry on the next change notification.
func ReadFile(path string) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return r, nil
}

// ReadHash returns the identity hash stored in the sidecar at path.
func ReadHash(path string) (string, error) {
	r, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	h, err := r.Hash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// WriteFile encodes r and writes it to path, truncating any existing file.
func WriteFile(path string, r *Record) error {
	if err := os.WriteFile(path, r.Marshal(), 0o644); err != nil {
		return fmt.Errorf("writing sidecar %s: %w", path, err)
	}
	return nil
}
