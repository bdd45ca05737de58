package userdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/louisbranch/tcrt-authprobe/internal/platform/storage/sqlitemigrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when no user matches a lookup.
var ErrNotFound = errors.New("user not found")

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

const activeUsersQuery = `
SELECT id, username, email, role, is_active,
       created_at, last_login_at, full_name
FROM users
WHERE is_active = 1
ORDER BY id
`

const userColumns = `id, username, email, role, is_active, created_at, last_login_at, full_name, hashed_password`

// User is one row of the TCRT users table. Nullable columns read as "".
type User struct {
	ID          int64
	Username    string
	Email       string
	Role        string
	IsActive    bool
	CreatedAt   string
	LastLoginAt string
	FullName    string
}

// Credential pairs a user with its stored bcrypt hash.
type Credential struct {
	User
	PasswordHash string
}

// NewUser describes a user to insert with PutUser.
type NewUser struct {
	Username string
	Email    string
	FullName string
	Password string
	Role     string
	IsActive bool
}

// Store wraps a TCRT users database.
type Store struct {
	sqlDB    *sql.DB
	readOnly bool
}

// Open opens the database at path read-only. A missing file is an error;
// it is never created.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn, err := buildDSN(path, true)
	if err != nil {
		return nil, err
	}
	return open(ctx, dsn, true)
}

// OpenWritable opens (or creates) the database at path and applies the
// bundled users schema.
func OpenWritable(ctx context.Context, path string) (*Store, error) {
	dsn, err := buildDSN(path, false)
	if err != nil {
		return nil, err
	}
	store, err := open(ctx, dsn, false)
	if err != nil {
		return nil, err
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, store.sqlDB, migrationsFS, "migrations"); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

func buildDSN(path string, readOnly bool) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("database path is required")
	}
	mode := "rwc"
	if readOnly {
		mode = "ro"
	}
	// The path is percent-escaped so '#' and '?' stay part of the file name.
	dsn := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(filepath.Clean(path)),
		OmitHost: true,
		RawQuery: "mode=" + mode + "&_pragma=busy_timeout(5000)",
	}
	return dsn.String(), nil
}

func open(ctx context.Context, dsn string, readOnly bool) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{sqlDB: sqlDB, readOnly: readOnly}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ActiveUsers returns every active user ordered by id.
func (s *Store) ActiveUsers(ctx context.Context) ([]User, error) {
	rows, err := s.sqlDB.QueryContext(ctx, activeUsersQuery)
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u                               User
			email, createdAt, lastLogin, fn sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Username, &email, &u.Role, &u.IsActive, &createdAt, &lastLogin, &fn); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Email = email.String
		u.CreatedAt = createdAt.String
		u.LastLoginAt = lastLogin.String
		u.FullName = fn.String
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UserByLogin finds a user by username or email, active or not.
func (s *Store) UserByLogin(ctx context.Context, usernameOrEmail string) (Credential, error) {
	login := strings.TrimSpace(usernameOrEmail)
	if login == "" {
		return Credential{}, ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?1 OR email = ?1 LIMIT 1", login)
	return scanCredential(row)
}

// UserByID finds a user by primary key.
func (s *Store) UserByID(ctx context.Context, id int64) (Credential, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanCredential(row)
}

func scanCredential(row *sql.Row) (Credential, error) {
	var (
		c                               Credential
		email, createdAt, lastLogin, fn sql.NullString
	)
	err := row.Scan(&c.ID, &c.Username, &email, &c.Role, &c.IsActive, &createdAt, &lastLogin, &fn, &c.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("scan user: %w", err)
	}
	c.Email = email.String
	c.CreatedAt = createdAt.String
	c.LastLoginAt = lastLogin.String
	c.FullName = fn.String
	return c, nil
}

// PutUser inserts a user, hashing its password with bcrypt, and returns the
// new id.
func (s *Store) PutUser(ctx context.Context, u NewUser) (int64, error) {
	if s.readOnly {
		return 0, fmt.Errorf("store is read-only")
	}
	username := strings.TrimSpace(u.Username)
	if username == "" {
		return 0, fmt.Errorf("username is required")
	}
	if u.Password == "" {
		return 0, fmt.Errorf("password is required")
	}
	role := strings.ToUpper(strings.TrimSpace(u.Role))
	if role == "" {
		role = "USER"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	now := formatTimestamp(time.Now())
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (username, email, full_name, hashed_password, role, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		username, nullString(u.Email), nullString(u.FullName), string(hash), role, u.IsActive, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert user %s: %w", username, err)
	}
	return res.LastInsertId()
}

// TouchLastLogin records a successful login time.
func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if s.readOnly {
		return fmt.Errorf("store is read-only")
	}
	ts := formatTimestamp(at)
	if _, err := s.sqlDB.ExecContext(ctx, "UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?", ts, ts, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.000000")
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
