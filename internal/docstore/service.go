package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inkpad/api/internal/access"
	"inkpad/api/internal/chunk"
	"inkpad/api/internal/store"
	"inkpad/api/internal/util"
)

type partStore interface {
	ListParts(ctx context.Context, documentID string) ([]store.DocumentPart, error)
	ListSummaries(ctx context.Context) ([]store.DocumentSummary, error)
	Apply(ctx context.Context, documentID string, ops []store.PartOp) error
}

type userStore interface {
	GetUsers(ctx context.Context, ids []string) ([]store.User, error)
}

// Observer is told about every save that changed a document, and by whom.
type Observer interface {
	DocumentSaved(ctx context.Context, doc Document, by access.Subject)
}

type ObserverFunc func(ctx context.Context, doc Document, by access.Subject)

func (f ObserverFunc) DocumentSaved(ctx context.Context, doc Document, by access.Subject) {
	f(ctx, doc, by)
}

type Service struct {
	parts     partStore
	users     userStore
	gate      access.Gate
	policy    chunk.Policy
	locker    Locker
	observers []Observer
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLocker(l Locker) Option            { return func(s *Service) { s.locker = l } }
func WithObserver(o Observer) Option        { return func(s *Service) { s.observers = append(s.observers, o) } }
func WithLogger(l zerolog.Logger) Option    { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithUsers(u userStore) Option          { return func(s *Service) { s.users = u } }

func New(parts partStore, gate access.Gate, policy chunk.Policy, opts ...Option) *Service {
	s := &Service{
		parts:  parts,
		gate:   gate,
		policy: policy,
		locker: NewLocalLocker(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Gate() access.Gate { return s.gate }

func (s *Service) Policy() chunk.Policy { return s.policy }

// Get loads and reassembles a document the caller may read.
func (s *Service) Get(ctx context.Context, caller access.Subject, documentID string) (Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if !s.gate.CanRead(caller, doc.Resource()) {
		return Document{}, denied(caller)
	}
	return doc, nil
}

// Info is Get plus the creator's profile, when known.
type Info struct {
	Document
	Creator *store.User `json:"creator,omitempty"`
}

func (s *Service) GetDocumentInfo(ctx context.Context, caller access.Subject, documentID string) (Info, error) {
	doc, err := s.Get(ctx, caller, documentID)
	if err != nil {
		return Info{}, err
	}
	info := Info{Document: doc}
	if s.users != nil && doc.CreatedBy != "" {
		users, err := s.users.GetUsers(ctx, []string{doc.CreatedBy})
		if err != nil {
			return Info{}, fmt.Errorf("load creator: %w", err)
		}
		if len(users) == 1 {
			info.Creator = &users[0]
		}
	}
	return info, nil
}

// Create writes a new private document owned by the caller. It fails if
// any existing part already holds non-blank content.
func (s *Service) Create(ctx context.Context, caller access.Subject, documentID, title, content string) (Document, error) {
	if caller.Anonymous() {
		return Document{}, ErrNotAuthenticated
	}
	if !util.ValidDocumentID(documentID) {
		return Document{}, fmt.Errorf("%w: invalid document id", ErrValidation)
	}

	unlock, err := s.locker.Lock(ctx, documentID)
	if err != nil {
		return Document{}, fmt.Errorf("lock document %s: %w", documentID, err)
	}
	defer unlock()

	existing, err := s.parts.ListParts(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	for _, p := range existing {
		if strings.TrimSpace(p.Content) != "" {
			return Document{}, ErrAlreadyExists
		}
	}
	m := meta{accessType: access.TypePrivate, accessUsers: []string{caller.UserID}, createdBy: caller.UserID}
	if len(existing) > 0 {
		head, err := Assemble(documentID, existing)
		if err != nil {
			return Document{}, err
		}
		if !s.gate.CanWrite(caller, head.Resource()) {
			return Document{}, ErrUnauthorized
		}
		m = meta{accessType: head.AccessType, accessUsers: head.AccessUsers, createdBy: head.CreatedBy}
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return s.write(ctx, caller, documentID, existing, title, content, m)
}

type UpdateOptions struct {
	// IfMatch, when set, must equal the current ETag.
	IfMatch string
}

// Update saves title and content. An update with both empty is a no-op;
// an empty content with a title only retitles the document. Updating a
// document that has no parts creates it.
func (s *Service) Update(ctx context.Context, caller access.Subject, documentID, title, content string, opts UpdateOptions) (Document, error) {
	if caller.Anonymous() {
		return Document{}, ErrNotAuthenticated
	}
	if !util.ValidDocumentID(documentID) {
		return Document{}, fmt.Errorf("%w: invalid document id", ErrValidation)
	}

	unlock, err := s.locker.Lock(ctx, documentID)
	if err != nil {
		return Document{}, fmt.Errorf("lock document %s: %w", documentID, err)
	}
	defer unlock()

	existing, err := s.parts.ListParts(ctx, documentID)
	if err != nil {
		return Document{}, err
	}

	if len(existing) == 0 {
		if title == "" && content == "" {
			return Document{DocumentID: documentID}, nil
		}
		if strings.TrimSpace(title) == "" {
			title = DefaultTitle
		}
		m := meta{accessType: access.TypePrivate, accessUsers: []string{caller.UserID}, createdBy: caller.UserID}
		return s.write(ctx, caller, documentID, nil, title, content, m)
	}

	current, err := Assemble(documentID, existing)
	if err != nil {
		return Document{}, err
	}
	if !s.gate.CanWrite(caller, current.Resource()) {
		return Document{}, ErrUnauthorized
	}
	if opts.IfMatch != "" && opts.IfMatch != current.ETag {
		return current, ErrConflict
	}
	if title == "" && content == "" {
		return current, nil
	}
	if strings.TrimSpace(title) == "" {
		title = current.Title
	}
	if content == "" {
		content = current.Content
	}
	m := meta{accessType: current.AccessType, accessUsers: current.AccessUsers, createdBy: current.CreatedBy}
	return s.write(ctx, caller, documentID, existing, title, content, m)
}

func (s *Service) write(ctx context.Context, caller access.Subject, documentID string, existing []store.DocumentPart, title, content string, m meta) (Document, error) {
	chunks := chunk.Split(content, s.policy)
	if err := chunk.Validate(chunks, s.policy); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	ops, result := Plan(documentID, existing, chunks, title, m, s.now())
	doc, err := Assemble(documentID, result)
	if err != nil {
		return Document{}, err
	}
	if len(ops) == 0 {
		return doc, nil
	}
	if err := s.parts.Apply(ctx, documentID, ops); err != nil {
		return Document{}, fmt.Errorf("save document %s: %w", documentID, err)
	}
	s.logger.Debug().
		Str("documentId", documentID).
		Int("parts", len(result)).
		Int("ops", len(ops)).
		Msg("document saved")
	s.notify(ctx, doc, caller)
	return doc, nil
}

func (s *Service) notify(ctx context.Context, doc Document, by access.Subject) {
	for _, o := range s.observers {
		o.DocumentSaved(ctx, doc, by)
	}
}

// UpdateDocumentAccess replaces access metadata on every part. Only the
// creator or the admin may do this. An empty accessType keeps the current one.
func (s *Service) UpdateDocumentAccess(ctx context.Context, caller access.Subject, documentID string, accessType string, users []string) (Document, error) {
	if caller.Anonymous() {
		return Document{}, ErrNotAuthenticated
	}
	if accessType != "" && !access.Valid(accessType) {
		return Document{}, fmt.Errorf("%w: unknown access type %q", ErrValidation, accessType)
	}

	unlock, err := s.locker.Lock(ctx, documentID)
	if err != nil {
		return Document{}, fmt.Errorf("lock document %s: %w", documentID, err)
	}
	defer unlock()

	existing, err := s.parts.ListParts(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	current, err := Assemble(documentID, existing)
	if err != nil {
		return Document{}, err
	}
	if !s.gate.CanManage(caller, current.Resource()) {
		return Document{}, denied(caller)
	}

	nextType := current.AccessType
	if accessType != "" {
		nextType = access.Type(accessType)
	}
	nextUsers := normalizeUsers(current.CreatedBy, users)

	now := s.now()
	ops := make([]store.PartOp, 0, len(existing))
	for _, p := range sortParts(existing) {
		p.AccessType = string(nextType)
		p.AccessUsers = append([]string(nil), nextUsers...)
		p.UpdatedAt = now
		ops = append(ops, store.PartOp{Kind: store.OpPatch, Part: p, PatchAccess: true})
	}
	if err := s.parts.Apply(ctx, documentID, ops); err != nil {
		return Document{}, fmt.Errorf("update access %s: %w", documentID, err)
	}

	current.AccessType = nextType
	current.AccessUsers = nextUsers
	current.UpdatedAt = now
	s.logger.Info().
		Str("documentId", documentID).
		Str("accessType", string(nextType)).
		Int("users", len(nextUsers)).
		Msg("document access updated")
	s.notify(ctx, current, caller)
	return current, nil
}

// UsersWithAccess resolves the access list to user profiles, in list
// order. Ids without a stored profile are returned with only the id set.
func (s *Service) UsersWithAccess(ctx context.Context, caller access.Subject, documentID string) ([]store.User, error) {
	doc, err := s.Get(ctx, caller, documentID)
	if err != nil {
		return nil, err
	}
	ids := normalizeUsers(doc.CreatedBy, doc.AccessUsers)
	known := map[string]store.User{}
	if s.users != nil {
		users, err := s.users.GetUsers(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		for _, u := range users {
			known[u.ID] = u
		}
	}
	out := make([]store.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := known[id]; ok {
			out = append(out, u)
			continue
		}
		out = append(out, store.User{ID: id})
	}
	return out, nil
}

// List returns the documents visible to the caller, newest first.
func (s *Service) List(ctx context.Context, caller access.Subject) ([]Summary, error) {
	rows, err := s.parts.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		res := access.Resource{AccessType: access.Normalize(row.AccessType), AccessUsers: row.AccessUsers, CreatedBy: row.CreatedBy}
		if !s.gate.CanRead(caller, res) {
			continue
		}
		title := row.Title
		if strings.TrimSpace(title) == "" {
			title = DefaultTitle
		}
		users := row.AccessUsers
		if users == nil {
			users = []string{}
		}
		out = append(out, Summary{
			DocumentID:  row.DocumentID,
			Title:       title,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
			AccessType:  res.AccessType,
			AccessUsers: users,
		})
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, documentID string) (Document, error) {
	parts, err := s.parts.ListParts(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	doc, err := Assemble(documentID, parts)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func denied(caller access.Subject) error {
	if caller.Anonymous() {
		return ErrNotAuthenticated
	}
	return ErrUnauthorized
}
