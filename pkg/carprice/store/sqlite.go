// Package store persists accounts and prediction history in SQLite.
package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// DefaultHistoryLimit is used when RecentPredictions is asked for zero rows.
const DefaultHistoryLimit = 50

// MaxHistoryLimit caps RecentPredictions.
const MaxHistoryLimit = 500

// SQLiteStore is safe for concurrent use.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path in WAL mode.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewConfigError("store", "database path is empty", nil)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the tables if they do not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS predictions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  car_model TEXT NOT NULL,
  year INTEGER NOT NULL,
  mileage INTEGER NOT NULL,
  price REAL NOT NULL,
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateUser inserts a user. A taken username yields AlreadyExistsError.
func (s *SQLiteStore) CreateUser(ctx context.Context, u dal.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, username, password_hash, created_at)
VALUES (?, ?, ?, ?)
`, u.ID, u.Username, u.PasswordHash, u.CreatedAt)
	if isUniqueViolation(err) {
		return errors.NewAlreadyExistsError("user", u.Username)
	}
	return err
}

// GetUserByUsername returns the user or ErrNotFound.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (dal.User, error) {
	var u dal.User
	err := s.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, created_at FROM users WHERE username = ?
`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dal.User{}, errors.ErrNotFound
	}
	return u, err
}

// RecordPrediction appends a prediction to the history.
func (s *SQLiteStore) RecordPrediction(ctx context.Context, p dal.PredictionLog) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO predictions (car_model, year, mileage, price, created_at)
VALUES (?, ?, ?, ?, ?)
`, p.CarModel, p.Year, p.Mileage, p.Price, p.CreatedAt)
	return err
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *SQLiteStore) RecentPredictions(ctx context.Context, limit int) ([]dal.PredictionLog, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, car_model, year, mileage, price, created_at
FROM predictions
ORDER BY id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]dal.PredictionLog, 0, limit)
	for rows.Next() {
		var p dal.PredictionLog
		if err := rows.Scan(&p.ID, &p.CarModel, &p.Year, &p.Mileage, &p.Price, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
