// Package live runs the block editor for one document over a websocket.
package live

import (
	"time"

	"inkpad/api/internal/editor"
)

const (
	MsgKey        = "key"
	MsgInput      = "input"
	MsgFocus      = "focus"
	MsgClickBelow = "click_below"
	MsgTitle      = "title"

	MsgSnapshot = "snapshot"
	MsgMutation = "mutation"
	MsgSaved    = "saved"
	MsgError    = "error"
)

// ClientMessage is anything the browser sends. Caret is the view's caret
// offset in BlockID at the time of the event.
type ClientMessage struct {
	Type    string     `json:"type"`
	BlockID string     `json:"blockId,omitempty"`
	Caret   *int       `json:"caret,omitempty"`
	Key     editor.Key `json:"key,omitempty"`
	Shift   bool       `json:"shift,omitempty"`
	Alt     bool       `json:"alt,omitempty"`
	Ctrl    bool       `json:"ctrl,omitempty"`
	Meta    bool       `json:"meta,omitempty"`
	Text    string     `json:"text,omitempty"`
	Title   string     `json:"title,omitempty"`
}

type ServerMessage struct {
	Type      string           `json:"type"`
	Title     string           `json:"title,omitempty"`
	CanEdit   bool             `json:"canEdit,omitempty"`
	Mutation  *editor.Mutation `json:"mutation,omitempty"`
	Handled   bool             `json:"handled,omitempty"`
	ETag      string           `json:"etag,omitempty"`
	UpdatedAt *time.Time       `json:"updatedAt,omitempty"`
	Dirty     bool             `json:"dirty,omitempty"`
	Code      string           `json:"code,omitempty"`
	Message   string           `json:"message,omitempty"`
}

func errorMessage(code, message string) ServerMessage {
	return ServerMessage{Type: MsgError, Code: code, Message: message}
}
