package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

type PartStore interface {
	ListParts(ctx context.Context, documentID string) ([]DocumentPart, error)
	ListSummaries(ctx context.Context) ([]DocumentSummary, error)
	Apply(ctx context.Context, documentID string, ops []PartOp) error
	SearchParts(ctx context.Context, text string, limit int) ([]PartHit, error)
	Ping(ctx context.Context) error
}

type UserStore interface {
	UpsertUser(ctx context.Context, user User) error
	GetUsers(ctx context.Context, ids []string) ([]User, error)
}

type Store interface {
	PartStore
	UserStore
	Close() error
}

// sqlStore holds the queries shared by both SQL backends. Queries are
// written with $N placeholders and rebound per dialect.
type sqlStore struct {
	db     *sql.DB
	rebind func(string) string
}

func (s *sqlStore) q(query string) string {
	if s.rebind == nil {
		return query
	}
	return s.rebind(query)
}

func (s *sqlStore) DB() *sql.DB {
	return s.db
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}

const partColumns = `document_id, part, title, content, created_at, updated_at, access_type, access_users, created_by`

func (s *sqlStore) ListParts(ctx context.Context, documentID string) ([]DocumentPart, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+partColumns+`
		FROM document_parts
		WHERE document_id = $1
		ORDER BY part ASC
	`), documentID)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	parts := make([]DocumentPart, 0)
	for rows.Next() {
		var (
			p                    DocumentPart
			createdAt, updatedAt int64
			users                string
		)
		if err := rows.Scan(&p.DocumentID, &p.Part, &p.Title, &p.Content, &createdAt, &updatedAt, &p.AccessType, &users, &p.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		p.CreatedAt = fromMillis(createdAt)
		p.UpdatedAt = fromMillis(updatedAt)
		p.AccessUsers = decodeUsers(users)
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parts: %w", err)
	}
	return parts, nil
}

func (s *sqlStore) ListSummaries(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.document_id, p.title, p.access_type, p.access_users, p.created_by, p.created_at, m.updated_at
		FROM document_parts p
		JOIN (
			SELECT document_id, MAX(updated_at) AS updated_at
			FROM document_parts
			GROUP BY document_id
		) m ON m.document_id = p.document_id
		WHERE p.part = 0
		ORDER BY m.updated_at DESC, p.document_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentSummary, 0)
	for rows.Next() {
		var (
			item                 DocumentSummary
			createdAt, updatedAt int64
			users                string
		)
		if err := rows.Scan(&item.DocumentID, &item.Title, &item.AccessType, &users, &item.CreatedBy, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		item.AccessUsers = decodeUsers(users)
		item.CreatedAt = fromMillis(createdAt)
		item.UpdatedAt = fromMillis(updatedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return items, nil
}

// Apply runs all ops for one document in a single transaction.
func (s *sqlStore) Apply(ctx context.Context, documentID string, ops []PartOp) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply tx: %w", err)
	}
	for _, op := range ops {
		if op.Part.DocumentID != "" && op.Part.DocumentID != documentID {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s part %d: document mismatch %q", op.Kind, op.Part.Part, op.Part.DocumentID)
		}
		if err := s.applyOne(ctx, tx, documentID, op); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply tx: %w", err)
	}
	return nil
}

func (s *sqlStore) applyOne(ctx context.Context, tx *sql.Tx, documentID string, op PartOp) error {
	p := op.Part
	switch op.Kind {
	case OpInsert:
		users, err := encodeUsers(p.AccessUsers)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO document_parts (`+partColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`), documentID, p.Part, p.Title, p.Content, toMillis(p.CreatedAt), toMillis(p.UpdatedAt), p.AccessType, users, p.CreatedBy)
		if err != nil {
			return fmt.Errorf("insert part %d: %w", p.Part, err)
		}
	case OpPatch:
		var (
			res sql.Result
			err error
		)
		if op.PatchAccess {
			users, encErr := encodeUsers(p.AccessUsers)
			if encErr != nil {
				return encErr
			}
			res, err = tx.ExecContext(ctx, s.q(`
				UPDATE document_parts
				SET title = $3, content = $4, updated_at = $5, access_type = $6, access_users = $7
				WHERE document_id = $1 AND part = $2
			`), documentID, p.Part, p.Title, p.Content, toMillis(p.UpdatedAt), p.AccessType, users)
		} else {
			res, err = tx.ExecContext(ctx, s.q(`
				UPDATE document_parts
				SET title = $3, content = $4, updated_at = $5
				WHERE document_id = $1 AND part = $2
			`), documentID, p.Part, p.Title, p.Content, toMillis(p.UpdatedAt))
		}
		if err != nil {
			return fmt.Errorf("patch part %d: %w", p.Part, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("patch part %d: %w", p.Part, ErrPartMissing)
		}
	case OpDelete:
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM document_parts WHERE document_id = $1 AND part = $2`), documentID, p.Part); err != nil {
			return fmt.Errorf("delete part %d: %w", p.Part, err)
		}
	default:
		return fmt.Errorf("unknown part op %q", op.Kind)
	}
	return nil
}

func (s *sqlStore) UpsertUser(ctx context.Context, user User) error {
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("upsert user: empty id")
	}
	now := toMillis(time.Now())
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, email, name, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE
		SET email = excluded.email, name = excluded.name, image = excluded.image, updated_at = excluded.updated_at
	`), user.ID, user.Email, user.Name, user.Image, now)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUsers returns the known users among ids, in the order of ids.
func (s *sqlStore) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, email, name, image, created_at, updated_at
		FROM users
		WHERE id IN (`+strings.Join(placeholders, ", ")+`)
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]User, len(ids))
	for rows.Next() {
		var (
			u                    User
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = fromMillis(createdAt)
		u.UpdatedAt = fromMillis(updatedAt)
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	users := make([]User, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

var ErrPartMissing = errors.New("part missing")

func encodeUsers(users []string) (string, error) {
	if users == nil {
		users = []string{}
	}
	payload, err := json.Marshal(users)
	if err != nil {
		return "", fmt.Errorf("encode access users: %w", err)
	}
	return string(payload), nil
}

func decodeUsers(raw string) []string {
	users := []string{}
	if strings.TrimSpace(raw) == "" {
		return users
	}
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return []string{}
	}
	return users
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func likePattern(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(strings.TrimSpace(text))) + "%"
}

func snippet(content, text string, width int) string {
	from, to := foldIndex(content, strings.ToLower(strings.TrimSpace(text)))
	if from < 0 {
		from, to = 0, 0
	}
	start := from - width/2
	if start < 0 {
		start = 0
	}
	end := to + width/2
	if end > len(content) {
		end = len(content)
	}
	for start > 0 && !isRuneStart(content[start]) {
		start--
	}
	for end < len(content) && !isRuneStart(content[end]) {
		end++
	}
	return strings.TrimSpace(content[start:end])
}

// foldIndex finds a lowercased needle in content and returns the match
// as byte offsets into content itself. Lowercasing can change a rune's
// width, so offsets into the folded copy are mapped back.
func foldIndex(content, needle string) (int, int) {
	if needle == "" {
		return 0, 0
	}
	var folded strings.Builder
	offsets := make([]int, 0, len(content)+1)
	for i, r := range content {
		n := folded.Len()
		folded.WriteRune(unicode.ToLower(r))
		for ; n < folded.Len(); n++ {
			offsets = append(offsets, i)
		}
	}
	offsets = append(offsets, len(content))
	idx := strings.Index(folded.String(), needle)
	if idx < 0 {
		return -1, -1
	}
	return offsets[idx], offsets[idx+len(needle)]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
