package editor

import (
	"strconv"
	"strings"
	"sync"
)

type Key string

const (
	KeyEnter     Key = "Enter"
	KeyBackspace Key = "Backspace"
	KeyArrowUp   Key = "ArrowUp"
	KeyArrowDown Key = "ArrowDown"
)

type KeyEvent struct {
	Key   Key  `json:"key"`
	Shift bool `json:"shift,omitempty"`
	Alt   bool `json:"alt,omitempty"`
	Ctrl  bool `json:"ctrl,omitempty"`
	Meta  bool `json:"meta,omitempty"`
}

func (e KeyEvent) modified() bool {
	return e.Shift || e.Alt || e.Ctrl || e.Meta
}

type Option func(*Editor)

// WithCanEdit passes in the caller's write capability. Without it every
// transition is a no-op.
func WithCanEdit(canEdit bool) Option {
	return func(e *Editor) { e.canEdit = canEdit }
}

func WithCaret(c Caret) Option {
	return func(e *Editor) { e.caret = c }
}

// WithOnChange registers the receiver of joined content after each
// content-changing transition.
func WithOnChange(fn func(string)) Option {
	return func(e *Editor) { e.onChange = fn }
}

func WithIDs(next func() string) Option {
	return func(e *Editor) { e.nextID = next }
}

// Editor owns the block sequence of one open document.
type Editor struct {
	mu       sync.Mutex
	blocks   []Block
	focused  string
	canEdit  bool
	caret    Caret
	onChange func(string)
	nextID   func() string
	dispatch *Dispatcher
}

func New(content string, opts ...Option) *Editor {
	e := &Editor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.caret == nil {
		e.caret = NewMemoryCaret()
	}
	if e.nextID == nil {
		var n int
		e.nextID = func() string {
			n++
			return "block-" + strconv.Itoa(n)
		}
	}
	if e.onChange != nil {
		e.dispatch = NewDispatcher(e.onChange)
	}
	e.blocks = SplitContent(content, e.nextID)
	if e.canEdit {
		e.focused = e.blocks[0].ID
	}
	return e
}

// Close stops change delivery after flushing queued changes.
func (e *Editor) Close() {
	if e.dispatch != nil {
		e.dispatch.Close()
	}
}

func (e *Editor) CanEdit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canEdit
}

func (e *Editor) Blocks() []Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneBlocks(e.blocks)
}

func (e *Editor) Content() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return JoinContent(e.blocks)
}

// Focused returns the focused block id.
func (e *Editor) Focused() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focused, e.focused != ""
}

// Snapshot is the current state as a mutation, for initial sync.
func (e *Editor) Snapshot() Mutation {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := Mutation{Blocks: cloneBlocks(e.blocks)}
	if e.focused != "" {
		m.Focus = &FocusTarget{BlockID: e.focused, Offset: e.caret.CaretOffset(e.focused)}
	}
	return m
}

// View is the text a block renders with. Empty dormant blocks show the
// placeholder, except for callers that cannot edit.
func (e *Editor) View(blockID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(blockID)
	if i < 0 {
		return ""
	}
	b := e.blocks[i]
	if b.Content == "" && e.canEdit && e.focused != b.ID {
		return Placeholder
	}
	return b.Content
}

// Editable reports whether the block is the one accepting input.
func (e *Editor) Editable(blockID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canEdit && e.focused == blockID
}

// Focus makes blockID the editing block, with the caret where the view
// reported it.
func (e *Editor) Focus(blockID string) (Mutation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canEdit || e.indexOf(blockID) < 0 {
		return Mutation{}, false
	}
	e.focused = blockID
	offset := clamp(e.caret.CaretOffset(blockID), 0, runeLen(e.blocks[e.indexOf(blockID)].Content))
	return e.commit(e.blocks, &FocusTarget{BlockID: blockID, Offset: offset}, false), true
}

// Key handles a structural key in the focused block. The bool reports
// whether the key was consumed; unconsumed keys fall through to Input.
func (e *Editor) Key(blockID string, ev KeyEvent) (Mutation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canEdit || blockID != e.focused {
		return Mutation{}, false
	}
	i := e.indexOf(blockID)
	if i < 0 {
		return Mutation{}, false
	}
	block := e.blocks[i]
	length := runeLen(block.Content)
	offset := clamp(e.caret.CaretOffset(blockID), 0, length)

	switch ev.Key {
	case KeyEnter:
		if ev.modified() {
			return Mutation{}, false
		}
		return e.split(i, offset), true
	case KeyBackspace:
		if offset != 0 || i == 0 || ev.modified() {
			return Mutation{}, false
		}
		return e.merge(i), true
	case KeyArrowUp:
		if offset != 0 {
			return Mutation{}, false
		}
		return e.navigate(i - 1), true
	case KeyArrowDown:
		if offset != length {
			return Mutation{}, false
		}
		return e.navigate(i + 1), true
	}
	return Mutation{}, false
}

// Input replaces the focused block's text with what the view now shows.
// Leading whitespace is dropped and the caret keeps its place in the text.
func (e *Editor) Input(blockID, text string) (Mutation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canEdit || blockID != e.focused {
		return Mutation{}, false
	}
	i := e.indexOf(blockID)
	if i < 0 {
		return Mutation{}, false
	}
	text = strings.ReplaceAll(text, Placeholder, "")
	// a block is one line; pasted newlines become spaces.
	text = strings.ReplaceAll(text, "\n", " ")
	trimmed := strings.TrimLeft(text, " \t\r\f\v")
	dropped := runeLen(text) - runeLen(trimmed)
	offset := clamp(e.caret.CaretOffset(blockID)-dropped, 0, runeLen(trimmed))

	next := cloneBlocks(e.blocks)
	next[i].Content = trimmed
	changed := e.blocks[i].Content != trimmed
	return e.commit(next, &FocusTarget{BlockID: blockID, Offset: offset}, changed), true
}

// ClickBelow appends and focuses an empty block, unless the last block is
// already blank.
func (e *Editor) ClickBelow() (Mutation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.canEdit {
		return Mutation{}, false
	}
	if n := len(e.blocks); n > 0 && strings.TrimSpace(e.blocks[n-1].Content) == "" {
		return Mutation{}, false
	}
	b := Block{ID: e.nextID()}
	next := append(cloneBlocks(e.blocks), b)
	return e.commit(next, &FocusTarget{BlockID: b.ID}, true), true
}

func (e *Editor) split(i, offset int) Mutation {
	before, after := splitAt(e.blocks[i].Content, offset)
	fresh := Block{ID: e.nextID(), Content: after}

	next := make([]Block, 0, len(e.blocks)+1)
	next = append(next, e.blocks[:i]...)
	next = append(next, Block{ID: e.blocks[i].ID, Content: before}, fresh)
	next = append(next, e.blocks[i+1:]...)
	return e.commit(next, &FocusTarget{BlockID: fresh.ID}, true)
}

func (e *Editor) merge(i int) Mutation {
	prev := e.blocks[i-1]
	joinAt := runeLen(prev.Content)

	next := make([]Block, 0, len(e.blocks)-1)
	next = append(next, e.blocks[:i-1]...)
	next = append(next, Block{ID: prev.ID, Content: prev.Content + e.blocks[i].Content})
	next = append(next, e.blocks[i+1:]...)
	return e.commit(next, &FocusTarget{BlockID: prev.ID, Offset: joinAt}, true)
}

func (e *Editor) navigate(target int) Mutation {
	target = clamp(target, 0, len(e.blocks)-1)
	b := e.blocks[target]
	return e.commit(e.blocks, &FocusTarget{BlockID: b.ID, Offset: runeLen(b.Content)}, false)
}

// commit installs the new state, then places the caret, then queues the
// joined content. Callers hold e.mu.
func (e *Editor) commit(next []Block, focus *FocusTarget, changed bool) Mutation {
	e.blocks = next
	if focus != nil {
		e.focused = focus.BlockID
		e.caret.SetCaretOffset(focus.BlockID, focus.Offset)
	}
	if changed && e.dispatch != nil {
		e.dispatch.Send(JoinContent(next))
	}
	return Mutation{Blocks: cloneBlocks(next), Focus: focus, Changed: changed}
}

func (e *Editor) indexOf(blockID string) int {
	for i, b := range e.blocks {
		if b.ID == blockID {
			return i
		}
	}
	return -1
}
