package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on SQLite using the pure Go
// modernc.org/sqlite driver. It is the zero-config default backend: the
// database file is created on first open.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		username     TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		email        TEXT NOT NULL UNIQUE,
		password     TEXT NOT NULL,
		role         TEXT NOT NULL DEFAULT 'normal'
	);

	CREATE TABLE IF NOT EXISTS groups (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		group_name      TEXT NOT NULL,
		parent_group_id INTEGER REFERENCES groups(id),
		created_by      INTEGER REFERENCES users(id),
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		type            TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_permissions (
		user_id  INTEGER NOT NULL REFERENCES users(id),
		group_id INTEGER NOT NULL REFERENCES groups(id),
		read     BOOLEAN NOT NULL DEFAULT 0,
		write    BOOLEAN NOT NULL DEFAULT 0,
		moderate BOOLEAN NOT NULL DEFAULT 0,
		admin    BOOLEAN NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, group_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_user_id INTEGER NOT NULL REFERENCES users(id),
		group_id       INTEGER NOT NULL REFERENCES groups(id),
		content        TEXT NOT NULL,
		sent_at        DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_group_sent
		ON messages (group_id, sent_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: failed to create schema: %w", err)
	}
	return nil
}

// CreateUser inserts a new account, rejecting duplicate usernames or
// emails.
func (s *SQLiteStore) CreateUser(ctx context.Context, u NewUser) (int64, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE username = ? OR email = ?",
		u.Username, u.Email,
	).Scan(&exists)
	if err == nil {
		return 0, ErrDuplicateUser
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlite: failed to check duplicates: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, display_name, email, password, role) VALUES (?, ?, ?, ?, ?)",
		u.Username, u.DisplayName, u.Email, u.PasswordHash, RoleNormal,
	)
	if err != nil {
		// unique indexes backstop the pre-check under concurrency
		return 0, fmt.Errorf("sqlite: failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to read user id: %w", err)
	}
	return id, nil
}

// UserByUsername returns the account with the given username.
func (s *SQLiteStore) UserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, display_name, email, password, role FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query user: %w", err)
	}
	return &u, nil
}

// CreateGroup inserts the group and the creator's permissions atomically.
func (s *SQLiteStore) CreateGroup(ctx context.Context, g NewGroup, creatorID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO groups (group_name, parent_group_id, created_by, created_at, type) VALUES (?, ?, ?, ?, ?)",
		g.Name, g.ParentGroupID, creatorID, time.Now().UTC(), g.Type,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to insert group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to read group id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO group_permissions (user_id, group_id, read, write, moderate, admin) VALUES (?, ?, ?, ?, ?, ?)",
		creatorID, id, true, true, true, false,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to insert creator permissions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: failed to commit group: %w", err)
	}
	return id, nil
}

// GroupsForUser returns the groups the user has a permission row for.
func (s *SQLiteStore) GroupsForUser(ctx context.Context, userID int64) ([]GroupMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.group_name, g.parent_group_id, g.created_by, g.created_at, g.type,
		       gp.read, gp.write, gp.moderate, gp.admin
		FROM groups g
		JOIN group_permissions gp ON gp.group_id = g.id
		WHERE gp.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query groups: %w", err)
	}
	defer rows.Close()

	var memberships []GroupMembership
	for rows.Next() {
		var m GroupMembership
		if err := rows.Scan(
			&m.ID, &m.Name, &m.ParentGroupID, &m.CreatedBy, &m.CreatedAt, &m.Type,
			&m.Read, &m.Write, &m.Moderate, &m.Admin,
		); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan group: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating groups: %w", err)
	}
	return memberships, nil
}

// GroupMembers returns the members of a group with their permissions.
func (s *SQLiteStore) GroupMembers(ctx context.Context, groupID int64) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.role,
		       gp.read, gp.write, gp.moderate, gp.admin
		FROM group_permissions gp
		JOIN users u ON gp.user_id = u.id
		WHERE gp.group_id = ?`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(
			&m.UserID, &m.Username, &m.Email, &m.Role,
			&m.Read, &m.Write, &m.Moderate, &m.Admin,
		); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating members: %w", err)
	}
	return members, nil
}

// Permissions returns the user's permissions in the group.
func (s *SQLiteStore) Permissions(ctx context.Context, userID, groupID int64) (Permissions, error) {
	var p Permissions
	err := s.db.QueryRowContext(ctx,
		"SELECT read, write, moderate, admin FROM group_permissions WHERE user_id = ? AND group_id = ?",
		userID, groupID,
	).Scan(&p.Read, &p.Write, &p.Moderate, &p.Admin)
	if errors.Is(err, sql.ErrNoRows) {
		return Permissions{}, nil
	}
	if err != nil {
		return Permissions{}, fmt.Errorf("sqlite: failed to query permissions: %w", err)
	}
	return p, nil
}

// InsertMessage stores a message and returns its id.
func (s *SQLiteStore) InsertMessage(ctx context.Context, groupID, senderID int64, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (sender_user_id, group_id, content, sent_at) VALUES (?, ?, ?, ?)",
		senderID, groupID, content, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to read message id: %w", err)
	}
	return id, nil
}

// Messages returns up to limit messages of the group, oldest first.
func (s *SQLiteStore) Messages(ctx context.Context, groupID int64, limit, offset int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_user_id, group_id, content, sent_at
		FROM messages
		WHERE group_id = ?
		ORDER BY sent_at ASC, id ASC
		LIMIT ? OFFSET ?`,
		groupID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderUserID, &m.GroupID, &m.Content, &m.SentAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating messages: %w", err)
	}
	return messages, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
