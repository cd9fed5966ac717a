package chunk

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, content string, p Policy) []string {
	t.Helper()
	chunks := Split(content, p)
	require.NotEmpty(t, chunks)
	require.NoError(t, Validate(chunks, p))

	pieces := make([]Piece, len(chunks))
	for i, c := range chunks {
		// reverse order on purpose; Reassemble must sort.
		pieces[len(chunks)-1-i] = Piece{Index: i, Content: c}
	}
	got, err := Reassemble(pieces)
	require.NoError(t, err)
	require.Equal(t, content, got)
	return chunks
}

func TestSplitRoundTrip(t *testing.T) {
	multi := strings.Repeat("αβγ 😀 math $x^2$ ", 40)
	cases := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "single char", content: "x"},
		{name: "whitespace only", content: "   \n\t"},
		{name: "exact limit", content: strings.Repeat("a", 16)},
		{name: "ascii over limit", content: strings.Repeat("abcdefgh", 9)},
		{name: "multibyte", content: multi},
		{name: "emoji at boundary", content: strings.Repeat("a", 15) + "😀" + strings.Repeat("b", 20)},
		{name: "invalid utf8", content: "ab\xffcd" + strings.Repeat("\xe2\x82", 10)},
	}
	for _, wordBoundary := range []bool{false, true} {
		for _, tc := range cases {
			name := tc.name
			if wordBoundary {
				name += " word boundary"
			}
			t.Run(name, func(t *testing.T) {
				p := Policy{LimitBytes: 16, WordBoundary: wordBoundary}
				chunks := roundTrip(t, tc.content, p)
				for _, c := range chunks {
					assert.LessOrEqual(t, len(c), 16)
					if utf8.ValidString(tc.content) {
						assert.True(t, utf8.ValidString(c), "chunk %q splits a character", c)
					}
				}
			})
		}
	}
}

func TestSplitEmptyProducesOnePart(t *testing.T) {
	assert.Equal(t, []string{""}, Split("", Policy{LimitBytes: 8}))
}

func TestSplitHardBoundary(t *testing.T) {
	chunks := Split("hello world again", Policy{LimitBytes: 8})
	assert.Equal(t, []string{"hello wo", "rld agai", "n"}, chunks)
}

func TestSplitWordBoundary(t *testing.T) {
	chunks := Split("hello world again", Policy{LimitBytes: 8, WordBoundary: true})
	assert.Equal(t, []string{"hello ", "world ", "again"}, chunks)
}

func TestSplitWordBoundaryFallsBack(t *testing.T) {
	p := Policy{LimitBytes: 8, WordBoundary: true}

	// no whitespace at all: hard cuts.
	assert.Equal(t, []string{"averylon", "gword"}, Split("averylongword", p))

	// the carried word plus the next character would overflow: hard cut.
	assert.Equal(t, []string{"a bcdef", "😀"}, Split("a bcdef😀", p))
}

func TestSplitMultiByteNeverSplitsCodePoint(t *testing.T) {
	// each rune is 3 bytes; a 10 byte limit fits exactly three.
	chunks := Split(strings.Repeat("€", 7), Policy{LimitBytes: 10})
	assert.Equal(t, []string{"€€€", "€€€", "€"}, chunks)
}

func TestPolicyLimitFloor(t *testing.T) {
	chunks := Split("😀😀", Policy{LimitBytes: 1})
	assert.Equal(t, []string{"😀", "😀"}, chunks)
	assert.Equal(t, DefaultLimitBytes, Policy{}.limit())
}

func TestSplitGrowsAcrossLimits(t *testing.T) {
	p := Policy{LimitBytes: 32}
	assert.Len(t, Split(strings.Repeat("x", 50), p), 2)
	assert.Len(t, Split(strings.Repeat("x", 90), p), 3)
}

func TestReassembleRejectsGaps(t *testing.T) {
	_, err := Reassemble([]Piece{{Index: 0, Content: "a"}, {Index: 2, Content: "c"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = Reassemble([]Piece{{Index: 0, Content: "a"}, {Index: 0, Content: "b"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidate(t *testing.T) {
	p := Policy{LimitBytes: 4}
	assert.ErrorIs(t, Validate(nil, p), ErrValidation)
	assert.ErrorIs(t, Validate([]string{"abcde"}, p), ErrValidation)
	assert.ErrorIs(t, Validate([]string{"\xe2\x82", "\xac"}, p), ErrValidation)
	assert.NoError(t, Validate([]string{"abcd", "€"}, p))
}
