package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store on MySQL. Intended for deployments that
// outgrow the SQLite default.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQL creates a MySQL store on an existing connection pool.
func NewMySQL(db *sql.DB) (*MySQLStore, error) {
	if err := createMySQLSchema(db); err != nil {
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

// NewMySQLFromDSN opens a connection pool for the DSN and creates the
// store. The DSN format is: user:password@tcp(host:port)/database
func NewMySQLFromDSN(dsn string) (*MySQLStore, error) {
	if !strings.Contains(dsn, "parseTime") {
		dsn += "?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	store, err := NewMySQL(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func createMySQLSchema(db *sql.DB) error {
	statements := []string{`
	CREATE TABLE IF NOT EXISTS users (
		id           BIGINT PRIMARY KEY AUTO_INCREMENT,
		username     VARCHAR(64) NOT NULL UNIQUE,
		display_name VARCHAR(128) NOT NULL,
		email        VARCHAR(255) NOT NULL UNIQUE,
		password     VARCHAR(255) NOT NULL,
		role         VARCHAR(16) NOT NULL DEFAULT 'normal'
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`, `
	CREATE TABLE IF NOT EXISTS ` + "`groups`" + ` (
		id              BIGINT PRIMARY KEY AUTO_INCREMENT,
		group_name      VARCHAR(128) NOT NULL,
		parent_group_id BIGINT NULL,
		created_by      BIGINT NULL,
		created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		type            VARCHAR(16) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`, `
	CREATE TABLE IF NOT EXISTS group_permissions (
		user_id  BIGINT NOT NULL,
		group_id BIGINT NOT NULL,
		` + "`read`" + `     BOOLEAN NOT NULL DEFAULT FALSE,
		` + "`write`" + `    BOOLEAN NOT NULL DEFAULT FALSE,
		moderate BOOLEAN NOT NULL DEFAULT FALSE,
		admin    BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, group_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`, `
	CREATE TABLE IF NOT EXISTS messages (
		id             BIGINT PRIMARY KEY AUTO_INCREMENT,
		sender_user_id BIGINT NOT NULL,
		group_id       BIGINT NOT NULL,
		content        TEXT NOT NULL,
		sent_at        TIMESTAMP NOT NULL,

		INDEX idx_messages_group_sent (group_id, sent_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("mysql: failed to create schema: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new account, rejecting duplicate usernames or
// emails.
func (s *MySQLStore) CreateUser(ctx context.Context, u NewUser) (int64, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE username = ? OR email = ?",
		u.Username, u.Email,
	).Scan(&exists)
	if err == nil {
		return 0, ErrDuplicateUser
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("mysql: failed to check duplicates: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, display_name, email, password, role) VALUES (?, ?, ?, ?, ?)",
		u.Username, u.DisplayName, u.Email, u.PasswordHash, RoleNormal,
	)
	if err != nil {
		return 0, fmt.Errorf("mysql: failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("mysql: failed to read user id: %w", err)
	}
	return id, nil
}

// UserByUsername returns the account with the given username.
func (s *MySQLStore) UserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, display_name, email, password, role FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query user: %w", err)
	}
	return &u, nil
}

// CreateGroup inserts the group and the creator's permissions atomically.
func (s *MySQLStore) CreateGroup(ctx context.Context, g NewGroup, creatorID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO `groups` (group_name, parent_group_id, created_by, created_at, type) VALUES (?, ?, ?, ?, ?)",
		g.Name, g.ParentGroupID, creatorID, time.Now().UTC(), g.Type,
	)
	if err != nil {
		return 0, fmt.Errorf("mysql: failed to insert group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("mysql: failed to read group id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO group_permissions (user_id, group_id, `read`, `write`, moderate, admin) VALUES (?, ?, ?, ?, ?, ?)",
		creatorID, id, true, true, true, false,
	)
	if err != nil {
		return 0, fmt.Errorf("mysql: failed to insert creator permissions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: failed to commit group: %w", err)
	}
	return id, nil
}

// GroupsForUser returns the groups the user has a permission row for.
func (s *MySQLStore) GroupsForUser(ctx context.Context, userID int64) ([]GroupMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.group_name, g.parent_group_id, g.created_by, g.created_at, g.type,
		       gp.`+"`read`"+`, gp.`+"`write`"+`, gp.moderate, gp.admin
		FROM `+"`groups`"+` g
		JOIN group_permissions gp ON gp.group_id = g.id
		WHERE gp.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query groups: %w", err)
	}
	defer rows.Close()

	var memberships []GroupMembership
	for rows.Next() {
		var m GroupMembership
		if err := rows.Scan(
			&m.ID, &m.Name, &m.ParentGroupID, &m.CreatedBy, &m.CreatedAt, &m.Type,
			&m.Read, &m.Write, &m.Moderate, &m.Admin,
		); err != nil {
			return nil, fmt.Errorf("mysql: failed to scan group: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: error iterating groups: %w", err)
	}
	return memberships, nil
}

// GroupMembers returns the members of a group with their permissions.
func (s *MySQLStore) GroupMembers(ctx context.Context, groupID int64) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.role,
		       gp.`+"`read`"+`, gp.`+"`write`"+`, gp.moderate, gp.admin
		FROM group_permissions gp
		JOIN users u ON gp.user_id = u.id
		WHERE gp.group_id = ?`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(
			&m.UserID, &m.Username, &m.Email, &m.Role,
			&m.Read, &m.Write, &m.Moderate, &m.Admin,
		); err != nil {
			return nil, fmt.Errorf("mysql: failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: error iterating members: %w", err)
	}
	return members, nil
}

// Permissions returns the user's permissions in the group.
func (s *MySQLStore) Permissions(ctx context.Context, userID, groupID int64) (Permissions, error) {
	var p Permissions
	err := s.db.QueryRowContext(ctx,
		"SELECT `read`, `write`, moderate, admin FROM group_permissions WHERE user_id = ? AND group_id = ?",
		userID, groupID,
	).Scan(&p.Read, &p.Write, &p.Moderate, &p.Admin)
	if errors.Is(err, sql.ErrNoRows) {
		return Permissions{}, nil
	}
	if err != nil {
		return Permissions{}, fmt.Errorf("mysql: failed to query permissions: %w", err)
	}
	return p, nil
}

// InsertMessage stores a message and returns its id.
func (s *MySQLStore) InsertMessage(ctx context.Context, groupID, senderID int64, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (sender_user_id, group_id, content, sent_at) VALUES (?, ?, ?, ?)",
		senderID, groupID, content, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("mysql: failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("mysql: failed to read message id: %w", err)
	}
	return id, nil
}

// Messages returns up to limit messages of the group, oldest first.
func (s *MySQLStore) Messages(ctx context.Context, groupID int64, limit, offset int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_user_id, group_id, content, sent_at
		FROM messages
		WHERE group_id = ?
		ORDER BY sent_at ASC, id ASC
		LIMIT ? OFFSET ?`,
		groupID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderUserID, &m.GroupID, &m.Content, &m.SentAt); err != nil {
			return nil, fmt.Errorf("mysql: failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: error iterating messages: %w", err)
	}
	return messages, nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
