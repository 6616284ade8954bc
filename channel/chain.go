package channel

import (
	"strings"
	"sync"
)

// chainSeparator joins transformation labels in the rendered chain.
const chainSeparator = " -> "

// Chain is the append-only provenance trail of a channel: an ordered log of
// the transformation labels the channel passed through, oldest first.
// Entries are never reordered or truncated.
//
// The chain is written by a control goroutine during pipeline changes and
// read by processing goroutines, so access is guarded.
type Chain struct {
	mu      sync.RWMutex
	entries []string
}

// Append adds one transformation label, preserving all prior entries.
func (c *Chain) Append(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, label)
}

// String renders the chain oldest first, joined by the arrow separator.
func (c *Chain) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return strings.Join(c.entries, chainSeparator)
}

// Entries returns a copy of the labels, oldest first.
func (c *Chain) Entries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of recorded labels.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
