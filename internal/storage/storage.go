// Package storage persists users, groups, group permissions and messages.
// Two backends exist: SQLite (pure Go driver, default) and MySQL.
// Sessions are deliberately not stored here; they live in memory only.
package storage

import (
	"context"
	"errors"
	"time"
)

// UserRole is the service-wide role of a user account.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleSuper  UserRole = "super"
	RoleNormal UserRole = "normal"
)

// GroupType distinguishes the kinds of message groups.
type GroupType string

const (
	GroupChannel GroupType = "channel"
	GroupRoom    GroupType = "room"
	GroupTeam    GroupType = "team"
)

// ValidGroupType reports whether t is one of the known group types.
func ValidGroupType(t GroupType) bool {
	switch t {
	case GroupChannel, GroupRoom, GroupTeam:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateUser is returned when the username or email is taken.
	ErrDuplicateUser = errors.New("storage: username or email already taken")
)

// User is a registered account. PasswordHash is the argon2id PHC string.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	Email        string
	Role         UserRole
	PasswordHash string
}

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Username     string
	DisplayName  string
	Email        string
	PasswordHash string
}

// Permissions are a user's rights within one group.
type Permissions struct {
	Read     bool `json:"read"`
	Write    bool `json:"write"`
	Moderate bool `json:"moderate"`
	Admin    bool `json:"admin"`
}

// Group is a message group.
type Group struct {
	ID            int64     `json:"id"`
	Name          string    `json:"group_name"`
	ParentGroupID *int64    `json:"parent_group_id"`
	CreatedBy     *int64    `json:"created_by"`
	CreatedAt     time.Time `json:"-"`
	Type          GroupType `json:"type"`
}

// NewGroup carries the fields needed to create a group.
type NewGroup struct {
	Name          string
	ParentGroupID *int64
	Type          GroupType
}

// GroupMembership is a group together with the member's permissions.
type GroupMembership struct {
	Group
	Permissions
}

// Member is one user's membership in a group.
type Member struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	Permissions
}

// Message is one chat message in a group.
type Message struct {
	ID           int64     `json:"id"`
	GroupID      int64     `json:"group_id"`
	SenderUserID int64     `json:"sender_user_id"`
	Content      string    `json:"content"`
	SentAt       time.Time `json:"sent_at"`
}

// Store is the persistence interface for the service's domain data.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateUser inserts a new account and returns its id, or
	// ErrDuplicateUser if the username or email is taken.
	CreateUser(ctx context.Context, u NewUser) (int64, error)

	// UserByUsername returns the account with the given username, or
	// ErrNotFound.
	UserByUsername(ctx context.Context, username string) (*User, error)

	// CreateGroup inserts a group and grants the creator read, write and
	// moderate permissions in the same transaction. Returns the group id.
	CreateGroup(ctx context.Context, g NewGroup, creatorID int64) (int64, error)

	// GroupsForUser returns every group the user has a permission row
	// for, with the permission flags.
	GroupsForUser(ctx context.Context, userID int64) ([]GroupMembership, error)

	// GroupMembers returns the members of a group with their permissions.
	GroupMembers(ctx context.Context, groupID int64) ([]Member, error)

	// Permissions returns the user's permissions in the group. A user
	// with no permission row gets the zero Permissions, not an error.
	Permissions(ctx context.Context, userID, groupID int64) (Permissions, error)

	// InsertMessage stores a message and returns its id. Permission
	// checks are the caller's job.
	InsertMessage(ctx context.Context, groupID, senderID int64, content string) (int64, error)

	// Messages returns up to limit messages of the group, oldest first.
	Messages(ctx context.Context, groupID int64, limit, offset int) ([]Message, error)

	// Close releases the underlying connections.
	Close() error
}
