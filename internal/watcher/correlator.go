package watcher

import "sync"

// moveCorrelator pairs a directory deletion with a creation of the same leaf
// name, which together are a move. It remembers one deletion at a time.
type moveCorrelator struct {
	mu      sync.Mutex
	name    string
	path    string
	pending bool
}

// Record remembers a deleted directory. A pending deletion with the same
// leaf name is kept as is.
func (c *moveCorrelator) Record(name, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending && c.name == name {
		return
	}
	c.name, c.path, c.pending = name, path, true
}

// Match consumes the pending deletion when name matches it.
func (c *moveCorrelator) Match(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending || c.name != name {
		return false
	}
	c.clearLocked()
	return true
}

// Take consumes the pending deletion and returns its path.
func (c *moveCorrelator) Take() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return "", false
	}
	path := c.path
	c.clearLocked()
	return path, true
}

func (c *moveCorrelator) clearLocked() {
	c.name, c.path, c.pending = "", "", false
}
