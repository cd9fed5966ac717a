// Package chunk splits a logical document body into size-bounded parts
// and reassembles them.
package chunk

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLimitBytes is 1% of 1 MiB.
const DefaultLimitBytes = (1 << 20) / 100

var ErrValidation = errors.New("chunk validation failed")

// Policy bounds every chunk to LimitBytes of encoded content. With
// WordBoundary set, a chunk is closed after the last whitespace it holds
// when the remainder still fits, so words are not split across parts.
type Policy struct {
	LimitBytes   int
	WordBoundary bool
}

func (p Policy) limit() int {
	if p.LimitBytes <= 0 {
		return DefaultLimitBytes
	}
	if p.LimitBytes < utf8.UTFMax {
		return utf8.UTFMax
	}
	return p.LimitBytes
}

// Split walks content one character at a time. It always returns at least
// one chunk, and the concatenation of the result is byte-identical to content.
func Split(content string, p Policy) []string {
	limit := p.limit()
	if len(content) <= limit {
		return []string{content}
	}

	chunks := make([]string, 0, len(content)/limit+1)
	start := 0
	lastBreak := -1
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		if i+size-start > limit {
			cut := i
			if p.WordBoundary && lastBreak > start && i+size-lastBreak <= limit {
				cut = lastBreak
			}
			chunks = append(chunks, content[start:cut])
			start = cut
			lastBreak = -1
		}
		if unicode.IsSpace(r) {
			lastBreak = i + size
		}
		i += size
	}
	return append(chunks, content[start:])
}

// Piece is one stored chunk with its part index.
type Piece struct {
	Index   int
	Content string
}

// Reassemble orders pieces by index and joins them without a separator.
// Indices must form the contiguous range [0, N).
func Reassemble(pieces []Piece) (string, error) {
	if len(pieces) == 0 {
		return "", nil
	}
	sorted := make([]Piece, len(pieces))
	copy(sorted, pieces)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var b strings.Builder
	for i, piece := range sorted {
		if piece.Index != i {
			return "", fmt.Errorf("%w: expected part %d, found %d", ErrValidation, i, piece.Index)
		}
		b.WriteString(piece.Content)
	}
	return b.String(), nil
}

// Validate checks the size invariant and that no boundary falls inside a
// multi-byte character of otherwise valid text.
func Validate(chunks []string, p Policy) error {
	limit := p.limit()
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks", ErrValidation)
	}
	for i, c := range chunks {
		if len(c) > limit {
			return fmt.Errorf("%w: part %d is %d bytes, limit %d", ErrValidation, i, len(c), limit)
		}
		if i > 0 && len(c) > 0 && !utf8.RuneStart(c[0]) && utf8.ValidString(strings.Join(chunks[i-1:i+1], "")) {
			return fmt.Errorf("%w: part %d starts inside a character", ErrValidation, i)
		}
	}
	return nil
}
