package access

import "strings"

type Type string
type Action string

const (
	TypePublic  Type = "public"
	TypePrivate Type = "private"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

// Subject is the caller. A zero Subject is anonymous.
type Subject struct {
	UserID string
	Email  string
}

func (s Subject) Anonymous() bool {
	return s.UserID == ""
}

// Resource carries the access metadata authoritative on part 0.
type Resource struct {
	AccessType  Type
	AccessUsers []string
	CreatedBy   string
}

// Creator is the recorded creator, or the first access user by convention.
func (r Resource) Creator() string {
	if r.CreatedBy != "" {
		return r.CreatedBy
	}
	if len(r.AccessUsers) > 0 {
		return r.AccessUsers[0]
	}
	return ""
}

type Gate struct {
	AdminEmail string
}

func (g Gate) IsAdmin(s Subject) bool {
	if s.Anonymous() || g.AdminEmail == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(s.Email), strings.TrimSpace(g.AdminEmail))
}

func (g Gate) Can(s Subject, r Resource, action Action) bool {
	if g.IsAdmin(s) {
		return true
	}
	switch action {
	case ActionRead:
		if Normalize(string(r.AccessType)) == TypePublic {
			return true
		}
		return member(s, r)
	case ActionWrite:
		return member(s, r)
	case ActionManage:
		return !s.Anonymous() && s.UserID == r.Creator()
	default:
		return false
	}
}

func (g Gate) CanRead(s Subject, r Resource) bool   { return g.Can(s, r, ActionRead) }
func (g Gate) CanWrite(s Subject, r Resource) bool  { return g.Can(s, r, ActionWrite) }
func (g Gate) CanManage(s Subject, r Resource) bool { return g.Can(s, r, ActionManage) }

func member(s Subject, r Resource) bool {
	if s.Anonymous() {
		return false
	}
	if s.UserID == r.Creator() {
		return true
	}
	for _, id := range r.AccessUsers {
		if id == s.UserID {
			return true
		}
	}
	return false
}

// Normalize treats anything unrecognised, including the empty value of
// documents written before access types existed, as private.
func Normalize(accessType string) Type {
	if Type(strings.ToLower(strings.TrimSpace(accessType))) == TypePublic {
		return TypePublic
	}
	return TypePrivate
}

// Valid reports whether the value names a known access type.
func Valid(accessType string) bool {
	switch Type(accessType) {
	case TypePublic, TypePrivate:
		return true
	default:
		return false
	}
}
