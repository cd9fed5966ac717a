package live

import (
	"context"
	"errors"
	"strings"
	"sync"

	"inkpad/api/internal/access"
	"inkpad/api/internal/docstore"
	"inkpad/api/internal/editor"
)

type documents interface {
	Get(ctx context.Context, caller access.Subject, documentID string) (docstore.Document, error)
	Update(ctx context.Context, caller access.Subject, documentID, title, content string, opts docstore.UpdateOptions) (docstore.Document, error)
	Gate() access.Gate
}

// Session is one caller editing one document. It is transport-agnostic;
// Handler drives it from a websocket.
type Session struct {
	docs       documents
	caller     access.Subject
	documentID string
	send       func(ServerMessage)

	caret  *editor.MemoryCaret
	editor *editor.Editor
	saver  *editor.Autosaver

	mu    sync.Mutex
	title string
}

// Open loads the document and prepares an editor for it. A document that
// does not exist yet opens empty and is created by the first save.
func Open(ctx context.Context, docs documents, caller access.Subject, documentID string, opts editor.AutosaveOptions, send func(ServerMessage)) (*Session, error) {
	doc, err := docs.Get(ctx, caller, documentID)
	fresh := errors.Is(err, docstore.ErrNotFound)
	if err != nil && !fresh {
		return nil, err
	}

	canEdit := !caller.Anonymous() && (fresh || docs.Gate().CanWrite(caller, doc.Resource()))
	if fresh && caller.Anonymous() {
		return nil, docstore.ErrNotFound
	}
	title := doc.Title
	if fresh {
		title = docstore.DefaultTitle
	}

	s := &Session{
		docs:       docs,
		caller:     caller,
		documentID: documentID,
		send:       send,
		caret:      editor.NewMemoryCaret(),
		title:      title,
	}
	s.saver = editor.NewAutosaver(s.save, opts)
	s.editor = editor.New(doc.Content,
		editor.WithCanEdit(canEdit),
		editor.WithCaret(s.caret),
		editor.WithOnChange(s.saver.Schedule),
	)
	return s, nil
}

// Snapshot is the first message a client receives.
func (s *Session) Snapshot() ServerMessage {
	m := s.editor.Snapshot()
	return ServerMessage{Type: MsgSnapshot, Title: s.currentTitle(), CanEdit: s.editor.CanEdit(), Mutation: &m}
}

func (s *Session) currentTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Handle applies one client message and returns the reply.
func (s *Session) Handle(msg ClientMessage) ServerMessage {
	if msg.Caret != nil && msg.BlockID != "" {
		s.caret.Report(msg.BlockID, *msg.Caret)
	}

	var (
		m  editor.Mutation
		ok bool
	)
	switch msg.Type {
	case MsgKey:
		m, ok = s.editor.Key(msg.BlockID, editor.KeyEvent{Key: msg.Key, Shift: msg.Shift, Alt: msg.Alt, Ctrl: msg.Ctrl, Meta: msg.Meta})
		if !ok {
			return ServerMessage{Type: MsgMutation, Handled: false}
		}
	case MsgInput:
		m, ok = s.editor.Input(msg.BlockID, msg.Text)
	case MsgFocus:
		m, ok = s.editor.Focus(msg.BlockID)
	case MsgClickBelow:
		m, ok = s.editor.ClickBelow()
		if !ok {
			return ServerMessage{Type: MsgMutation, Handled: false}
		}
	case MsgTitle:
		return s.retitle(msg.Title)
	default:
		return errorMessage("BAD_MESSAGE", "unknown message type")
	}
	if !ok {
		if !s.editor.CanEdit() {
			return errorMessage("READ_ONLY", "this document cannot be edited here")
		}
		return errorMessage("REJECTED", "edit was not applied")
	}
	return ServerMessage{Type: MsgMutation, Mutation: &m, Handled: true, Dirty: s.saver.Dirty()}
}

func (s *Session) retitle(title string) ServerMessage {
	if !s.editor.CanEdit() {
		return errorMessage("READ_ONLY", "this document cannot be edited here")
	}
	title = strings.TrimSpace(title)
	s.mu.Lock()
	changed := title != "" && title != s.title
	if changed {
		s.title = title
	}
	s.mu.Unlock()
	if changed {
		s.saver.Schedule(s.editor.Content())
	}
	return ServerMessage{Type: MsgTitle, Title: s.currentTitle(), Dirty: s.saver.Dirty()}
}

func (s *Session) save(ctx context.Context, content string) error {
	doc, err := s.docs.Update(ctx, s.caller, s.documentID, s.currentTitle(), content, docstore.UpdateOptions{})
	if err != nil {
		if errors.Is(err, docstore.ErrUnauthorized) || errors.Is(err, docstore.ErrNotAuthenticated) {
			s.send(errorMessage("UNAUTHORIZED", "you no longer have write access"))
		}
		return err
	}
	updated := doc.UpdatedAt
	s.send(ServerMessage{Type: MsgSaved, ETag: doc.ETag, UpdatedAt: &updated})
	return nil
}

// Close saves anything pending and releases the editor.
func (s *Session) Close(ctx context.Context) {
	s.editor.Close()
	_ = s.saver.Flush(ctx)
	s.saver.Close()
}
