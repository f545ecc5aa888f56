package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"safarank-api/internal/model"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// Dialect selects the SQL flavour of the identity store.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect accepts the configured store type, including common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unknown identity store type %q", s)
}

// driverName returns the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	return string(d)
}

// SQLUserRepository implements UserRepository on MySQL, PostgreSQL or SQLite.
type SQLUserRepository struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex // only taken for SQLite, which allows a single writer
}

// OpenUserRepository opens the identity store and creates its table.
func OpenUserRepository(dialect Dialect, dsn string) (*SQLUserRepository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	repo, err := NewSQLUserRepository(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLUserRepository wraps an open connection and ensures the schema.
func NewSQLUserRepository(db *sql.DB, dialect Dialect) (*SQLUserRepository, error) {
	r := &SQLUserRepository{db: db, dialect: dialect}
	if _, err := db.Exec(r.schema()); err != nil {
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}
	slog.Info("identity store ready", "dialect", dialect)
	return r, nil
}

func (r *SQLUserRepository) schema() string {
	switch r.dialect {
	case DialectMySQL:
		return `
		CREATE TABLE IF NOT EXISTS usuarios (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(254) NOT NULL UNIQUE,
			nombre VARCHAR(100) NOT NULL,
			rol VARCHAR(20) NOT NULL DEFAULT 'cliente',
			password_hash VARCHAR(255) NOT NULL,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		)`
	case DialectPostgres:
		return `
		CREATE TABLE IF NOT EXISTS usuarios (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(254) NOT NULL UNIQUE,
			nombre VARCHAR(100) NOT NULL,
			rol VARCHAR(20) NOT NULL DEFAULT 'cliente',
			password_hash VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		)`
	default:
		return `
		CREATE TABLE IF NOT EXISTS usuarios (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			nombre TEXT NOT NULL,
			rol TEXT NOT NULL DEFAULT 'cliente',
			password_hash TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		)`
	}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *SQLUserRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLUserRepository) lock() func() {
	if r.dialect != DialectSQLite {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *SQLUserRepository) rlock() func() {
	if r.dialect != DialectSQLite {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

// CreateUser inserts a user and returns its id.
func (r *SQLUserRepository) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	defer r.lock()()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO usuarios (email, nombre, rol, password_hash, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	args := []interface{}{user.Email, user.Name, string(user.Role), user.PasswordHash, user.IsActive, user.CreatedAt}

	if r.dialect == DialectPostgres {
		var id int64
		if err := r.db.QueryRowContext(ctx, r.rebind(query)+" RETURNING id", args...).Scan(&id); err != nil {
			if isUniqueViolation(err) {
				return 0, ErrDuplicate
			}
			return 0, fmt.Errorf("failed to insert user: %w", err)
		}
		user.ID = id
		return id, nil
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return id, nil
}

// GetUserByEmail finds a user by email.
func (r *SQLUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.rlock()()
	return r.getUser(ctx, "email = ?", email)
}

// GetUserByID finds a user by id.
func (r *SQLUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	defer r.rlock()()
	return r.getUser(ctx, "id = ?", id)
}

func (r *SQLUserRepository) getUser(ctx context.Context, where string, arg interface{}) (*model.User, error) {
	query := r.rebind(`SELECT id, email, nombre, rol, password_hash, is_active, created_at FROM usuarios WHERE ` + where)

	var u model.User
	var role string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&role,
		&u.PasswordHash,
		&u.IsActive,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// CountUsers returns the number of accounts.
func (r *SQLUserRepository) CountUsers(ctx context.Context) (int64, error) {
	defer r.rlock()()

	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usuarios`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Ping verifies the connection.
func (r *SQLUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (r *SQLUserRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLUserRepository implements UserRepository
var _ UserRepository = (*SQLUserRepository)(nil)
