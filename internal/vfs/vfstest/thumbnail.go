package vfstest

import (
	"fmt"
	"sync"
)

// ThumbnailCall is one recorded BuildThumbnail invocation.
type ThumbnailCall struct {
	Key  string
	Path string
}

// Thumbnails records BuildThumbnail calls and hands out sequential keys.
type Thumbnails struct {
	mu    sync.Mutex
	Calls []ThumbnailCall
	Err   error
	next  int
}

// BuildThumbnail implements vfs.ThumbnailBuilder.
func (t *Thumbnails) BuildThumbnail(key, absPath string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, ThumbnailCall{Key: key, Path: absPath})
	if t.Err != nil {
		return "", t.Err
	}
	if key != "" {
		return key, nil
	}
	t.next++
	return fmt.Sprintf("thumb-%d", t.next), nil
}

// CallCount returns the number of recorded calls.
func (t *Thumbnails) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}
