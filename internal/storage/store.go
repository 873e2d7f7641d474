package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/davidmr/geotrack/internal/domain"
)

// ErrUserNotFound is returned when no user matches the given token or id
var ErrUserNotFound = errors.New("user not found")

// Store wraps the SQLite database holding users and location history
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; serialize access at the pool level
	// so concurrent handlers queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT,
			token TEXT UNIQUE,
			created_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS locations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT,
			lat REAL,
			lng REAL,
			accuracy REAL,
			ts INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_user_ts ON locations (user_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateUser registers a new user and issues their token
func (s *Store) CreateUser(ctx context.Context, name string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, errors.New("name required")
	}

	user := domain.NewUser(name, time.Now().UnixMilli())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, token, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.Token, user.CreatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// LookupByToken resolves a token to the user identity it was issued to.
// Returns ErrUserNotFound for unknown tokens.
func (s *Store) LookupByToken(ctx context.Context, token string) (domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM users WHERE token = ?`, token).
		Scan(&user.ID, &user.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup token: %w", err)
	}
	return user, nil
}

// AppendLocation records one position update
func (s *Store) AppendLocation(ctx context.Context, ev domain.LocationEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (user_id, lat, lng, accuracy, ts) VALUES (?, ?, ?, ?, ?)`,
		ev.UserID, ev.Lat, ev.Lng, ev.Accuracy, ev.Ts)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// HistoryByUser returns every recorded position for the user, oldest first
func (s *Store) HistoryByUser(ctx context.Context, userID string) ([]domain.LocationEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lat, lng, accuracy, ts FROM locations WHERE user_id = ? ORDER BY ts ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	events := make([]domain.LocationEvent, 0)
	for rows.Next() {
		ev := domain.LocationEvent{UserID: userID}
		if err := rows.Scan(&ev.Lat, &ev.Lng, &ev.Accuracy, &ev.Ts); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return events, nil
}
