package editor

import "sync"

// Caret reads and places the caret inside a rendered block. Offsets are
// rune offsets into the block's text with the placeholder removed.
type Caret interface {
	CaretOffset(blockID string) int
	SetCaretOffset(blockID string, offset int)
}

// MemoryCaret tracks offsets reported by a remote view and remembers the
// last placement instruction.
type MemoryCaret struct {
	mu      sync.Mutex
	offsets map[string]int
	last    *FocusTarget
}

func NewMemoryCaret() *MemoryCaret {
	return &MemoryCaret{offsets: map[string]int{}}
}

// Report records where the view says the caret is.
func (c *MemoryCaret) Report(blockID string, offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets[blockID] = offset
}

func (c *MemoryCaret) CaretOffset(blockID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsets[blockID]
}

func (c *MemoryCaret) SetCaretOffset(blockID string, offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets[blockID] = offset
	c.last = &FocusTarget{BlockID: blockID, Offset: offset}
}

// Last returns the most recent placement, if any.
func (c *MemoryCaret) Last() (FocusTarget, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return FocusTarget{}, false
	}
	return *c.last, true
}
