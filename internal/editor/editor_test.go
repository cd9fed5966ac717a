package editor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEditor(t *testing.T, content string, canEdit bool) (*Editor, *MemoryCaret, chan string) {
	t.Helper()
	changes := make(chan string, 64)
	caret := NewMemoryCaret()
	e := New(content,
		WithCanEdit(canEdit),
		WithCaret(caret),
		WithOnChange(func(s string) { changes <- s }),
	)
	t.Cleanup(e.Close)
	return e, caret, changes
}

func nextChange(t *testing.T, changes chan string) string {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no change delivered")
		return ""
	}
}

func contents(blocks []Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Content
	}
	return out
}

func TestSplitJoinContent(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
		join string
	}{
		{name: "single line", in: "hello", want: []string{"hello"}, join: "hello"},
		{name: "lines", in: "a\nb\nc", want: []string{"a", "b", "c"}, join: "a\nb\nc"},
		{name: "drops empty lines", in: "a\n\nb", want: []string{"a", "b"}, join: "a\nb"},
		{name: "keeps indentation", in: "  a\nb  ", want: []string{"  a", "b  "}, join: "  a\nb  "},
		{name: "empty", in: "", want: []string{""}, join: ""},
		{name: "whitespace only", in: " \n\t\n", want: []string{""}, join: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := 0
			blocks := SplitContent(tc.in, func() string { n++; return strings.Repeat("x", n) })
			assert.Equal(t, tc.want, contents(blocks))
			assert.Equal(t, tc.join, JoinContent(blocks))
		})
	}
}

func TestNewFocusesFirstBlockWhenEditable(t *testing.T) {
	e, _, _ := newTestEditor(t, "a\nb", true)
	id, ok := e.Focused()
	require.True(t, ok)
	assert.Equal(t, e.Blocks()[0].ID, id)

	ro, _, _ := newTestEditor(t, "a\nb", false)
	_, ok = ro.Focused()
	assert.False(t, ok)
}

func TestSplitAndMergeAreInverse(t *testing.T) {
	e, caret, changes := newTestEditor(t, "hello world", true)
	first := e.Blocks()[0].ID
	caret.Report(first, 5)

	m, ok := e.Key(first, KeyEvent{Key: KeyEnter})
	require.True(t, ok)
	assert.True(t, m.Changed)
	assert.Equal(t, []string{"hello", " world"}, contents(m.Blocks))
	require.NotNil(t, m.Focus)
	second := m.Blocks[1].ID
	assert.Equal(t, FocusTarget{BlockID: second, Offset: 0}, *m.Focus)
	assert.Equal(t, "hello\n world", nextChange(t, changes))

	last, ok := caret.Last()
	require.True(t, ok)
	assert.Equal(t, FocusTarget{BlockID: second, Offset: 0}, last)

	m, ok = e.Key(second, KeyEvent{Key: KeyBackspace})
	require.True(t, ok)
	assert.Equal(t, []string{"hello world"}, contents(m.Blocks))
	assert.Equal(t, FocusTarget{BlockID: first, Offset: 5}, *m.Focus)
	assert.Equal(t, "hello world", nextChange(t, changes))
	assert.Equal(t, "hello world", e.Content())
}

func TestSplitCountsRunes(t *testing.T) {
	e, caret, _ := newTestEditor(t, "héllo", true)
	id := e.Blocks()[0].ID
	caret.Report(id, 2)

	m, ok := e.Key(id, KeyEvent{Key: KeyEnter})
	require.True(t, ok)
	assert.Equal(t, []string{"hé", "llo"}, contents(m.Blocks))
}

func TestSplitAtEndCreatesEmptyBlock(t *testing.T) {
	e, caret, _ := newTestEditor(t, "abc", true)
	id := e.Blocks()[0].ID
	caret.Report(id, 3)

	m, ok := e.Key(id, KeyEvent{Key: KeyEnter})
	require.True(t, ok)
	assert.Equal(t, []string{"abc", ""}, contents(m.Blocks))
	assert.Equal(t, "abc\n", e.Content())
}

func TestKeysThatFallThrough(t *testing.T) {
	e, caret, _ := newTestEditor(t, "one\ntwo", true)
	blocks := e.Blocks()

	t.Run("shift enter", func(t *testing.T) {
		_, ok := e.Key(blocks[0].ID, KeyEvent{Key: KeyEnter, Shift: true})
		assert.False(t, ok)
	})
	t.Run("backspace on first block", func(t *testing.T) {
		caret.Report(blocks[0].ID, 0)
		_, ok := e.Key(blocks[0].ID, KeyEvent{Key: KeyBackspace})
		assert.False(t, ok)
	})
	t.Run("backspace mid block", func(t *testing.T) {
		_, ok := e.Focus(blocks[1].ID)
		require.True(t, ok)
		caret.Report(blocks[1].ID, 2)
		_, ok = e.Key(blocks[1].ID, KeyEvent{Key: KeyBackspace})
		assert.False(t, ok)
	})
	t.Run("unfocused block", func(t *testing.T) {
		_, ok := e.Key(blocks[0].ID, KeyEvent{Key: KeyEnter})
		assert.False(t, ok)
	})
	t.Run("other key", func(t *testing.T) {
		_, ok := e.Key(blocks[1].ID, KeyEvent{Key: "a"})
		assert.False(t, ok)
	})
	assert.Equal(t, "one\ntwo", e.Content())
}

func TestNavigate(t *testing.T) {
	e, caret, _ := newTestEditor(t, "one\ntwo\nthree", true)
	b := e.Blocks()

	caret.Report(b[0].ID, 0)
	m, ok := e.Key(b[0].ID, KeyEvent{Key: KeyArrowUp})
	require.True(t, ok)
	assert.False(t, m.Changed)
	assert.Equal(t, FocusTarget{BlockID: b[0].ID, Offset: 3}, *m.Focus)

	caret.Report(b[0].ID, 3)
	m, ok = e.Key(b[0].ID, KeyEvent{Key: KeyArrowDown})
	require.True(t, ok)
	assert.Equal(t, FocusTarget{BlockID: b[1].ID, Offset: 3}, *m.Focus)

	caret.Report(b[1].ID, 1)
	_, ok = e.Key(b[1].ID, KeyEvent{Key: KeyArrowDown})
	assert.False(t, ok, "arrow down only moves from the block end")

	caret.Report(b[1].ID, 0)
	m, ok = e.Key(b[1].ID, KeyEvent{Key: KeyArrowUp})
	require.True(t, ok)
	assert.Equal(t, FocusTarget{BlockID: b[0].ID, Offset: 3}, *m.Focus)

	_, _ = e.Focus(b[2].ID)
	caret.Report(b[2].ID, 5)
	m, ok = e.Key(b[2].ID, KeyEvent{Key: KeyArrowDown})
	require.True(t, ok)
	assert.Equal(t, FocusTarget{BlockID: b[2].ID, Offset: 5}, *m.Focus)
}

func TestInput(t *testing.T) {
	e, caret, changes := newTestEditor(t, "", true)
	id := e.Blocks()[0].ID

	caret.Report(id, 4)
	m, ok := e.Input(id, "  hi there ")
	require.True(t, ok)
	assert.True(t, m.Changed)
	assert.Equal(t, "hi there ", m.Blocks[0].Content)
	assert.Equal(t, FocusTarget{BlockID: id, Offset: 2}, *m.Focus)
	assert.Equal(t, "hi there ", nextChange(t, changes))

	caret.Report(id, 3)
	m, ok = e.Input(id, "hi\u200b there ")
	require.True(t, ok)
	assert.False(t, m.Changed)
	assert.Equal(t, 3, m.Focus.Offset)
}

func TestClickBelow(t *testing.T) {
	e, _, changes := newTestEditor(t, "text", true)

	m, ok := e.ClickBelow()
	require.True(t, ok)
	require.Len(t, m.Blocks, 2)
	assert.Equal(t, FocusTarget{BlockID: m.Blocks[1].ID}, *m.Focus)
	assert.Equal(t, "text\n", nextChange(t, changes))

	_, ok = e.ClickBelow()
	assert.False(t, ok, "last block is blank")
}

func TestReadOnlyEditorIgnoresEverything(t *testing.T) {
	e, caret, changes := newTestEditor(t, "one\n\ntwo", false)
	b := e.Blocks()
	caret.Report(b[0].ID, 1)

	_, ok := e.Focus(b[0].ID)
	assert.False(t, ok)
	_, ok = e.Key(b[0].ID, KeyEvent{Key: KeyEnter})
	assert.False(t, ok)
	_, ok = e.Input(b[0].ID, "changed")
	assert.False(t, ok)
	_, ok = e.ClickBelow()
	assert.False(t, ok)
	assert.False(t, e.Editable(b[0].ID))
	assert.Equal(t, "one\ntwo", e.Content())

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %q", c)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestViewPlaceholder(t *testing.T) {
	e, _, _ := newTestEditor(t, "text", true)
	m, _ := e.ClickBelow()
	empty := m.Blocks[1].ID
	assert.Equal(t, "", e.View(empty), "focused empty block has no placeholder")

	_, _ = e.Focus(m.Blocks[0].ID)
	assert.Equal(t, Placeholder, e.View(empty))
	assert.Equal(t, "text", e.View(m.Blocks[0].ID))

	ro, _, _ := newTestEditor(t, "", false)
	assert.Equal(t, "", ro.View(ro.Blocks()[0].ID))
}

func TestChangesArriveInOrderOncePerTransition(t *testing.T) {
	e, caret, changes := newTestEditor(t, "", true)
	id := e.Blocks()[0].ID
	var want []string
	for i := 1; i <= 20; i++ {
		text := strings.Repeat("a", i)
		caret.Report(id, i)
		_, ok := e.Input(id, text)
		require.True(t, ok)
		want = append(want, text)
	}
	e.Close()
	close(changes)
	var got []string
	for c := range changes {
		got = append(got, c)
	}
	assert.Equal(t, want, got)
}
