// Package kanban holds the offline-first synchronization core of flow-board:
// the board, column and card stores, the pending action queue that replays
// writes made while offline, and the cross-tab broadcast that keeps several
// clients on one device consistent without a server round trip.
package kanban

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyTitle        = errors.New("title must not be empty")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidRole       = errors.New("invalid member role")
	ErrOwnerRemoval      = errors.New("board owner cannot be removed or demoted")
	ErrUnsupportedAction = errors.New("unsupported pending action")
)

// Role is a board member's permission level.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleEditor
}

// Identity is the authenticated user the session acts for.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type Member struct {
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	InvitedAt time.Time `json:"invitedAt"`
}

type Board struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	OwnerID   string     `json:"ownerId"`
	Members   []Member   `json:"members"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// IsActive reports whether the board has not been soft-deleted.
func (b Board) IsActive() bool {
	return b.DeletedAt == nil
}

// HasMember reports whether email is in the board's member list.
func (b Board) HasMember(email string) bool {
	_, ok := b.RoleOf(email)
	return ok
}

// RoleOf returns the role of email on the board. Emails compare
// case-insensitively.
func (b Board) RoleOf(email string) (Role, bool) {
	email = normalizeEmail(email)
	for _, m := range b.Members {
		if normalizeEmail(m.Email) == email {
			return m.Role, true
		}
	}
	return "", false
}

func (b Board) clone() Board {
	b.Members = append([]Member(nil), b.Members...)
	if b.DeletedAt != nil {
		t := *b.DeletedAt
		b.DeletedAt = &t
	}
	return b
}

type Column struct {
	ID        string     `json:"id"`
	BoardID   string     `json:"boardId"`
	Title     string     `json:"title"`
	Order     int64      `json:"order"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func (c Column) IsActive() bool {
	return c.DeletedAt == nil
}

type Card struct {
	ID          string     `json:"id"`
	BoardID     string     `json:"boardId"`
	ColumnID    string     `json:"columnId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Order       int64      `json:"order"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

func (c Card) IsActive() bool {
	return c.DeletedAt == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

func timePtr(t time.Time) *time.Time {
	return &t
}
