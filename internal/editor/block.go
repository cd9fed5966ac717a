// Package editor holds the block editor state machine that turns caret-aware
// key and input events into block mutations and a single joined content
// string.
package editor

import (
	"strings"
	"unicode/utf8"
)

// Placeholder is shown in an empty dormant block so it keeps a line box.
const Placeholder = "\u200b"

type Block struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// FocusTarget is where the caret goes once a mutation has been applied.
// Offset counts runes.
type FocusTarget struct {
	BlockID string `json:"blockId"`
	Offset  int    `json:"offset"`
}

// Mutation is one structural change plus its caret restoration. Focus is
// nil when the change leaves focus where it was.
type Mutation struct {
	Blocks  []Block      `json:"blocks"`
	Focus   *FocusTarget `json:"focus,omitempty"`
	Changed bool         `json:"changed"`
}

// SplitContent turns stored content into blocks. Empty lines are dropped;
// when nothing but whitespace remains the result is one empty block.
func SplitContent(content string, nextID func() string) []Block {
	var blocks []Block
	nonBlank := false
	for _, line := range strings.Split(content, "\n") {
		if line == "" {
			continue
		}
		if strings.TrimSpace(line) != "" {
			nonBlank = true
		}
		blocks = append(blocks, Block{ID: nextID(), Content: line})
	}
	if !nonBlank {
		return []Block{{ID: nextID()}}
	}
	return blocks
}

// JoinContent is the inverse of SplitContent for content without empty lines.
func JoinContent(blocks []Block) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Content
	}
	return strings.Join(parts, "\n")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// splitAt cuts s at rune offset p, clamped to the string.
func splitAt(s string, p int) (string, string) {
	if p <= 0 {
		return "", s
	}
	i := 0
	for pos := range s {
		if i == p {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	copy(out, blocks)
	return out
}
