package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/core"
)

// SQLiteStore implements EmailRepository and MetadataRepository against a
// SQLite database, for single-box installs without a MySQL server.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens the database and ensures the metadata table exists.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ml_models (
			scope TEXT PRIMARY KEY,
			model_type TEXT,
			accuracy REAL,
			scores TEXT,
			trained_at TIMESTAMP,
			is_active BOOLEAN
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// windowModifier renders a trailing window as a SQLite datetime modifier.
func windowModifier(window time.Duration) string {
	return fmt.Sprintf("-%d days", int(window.Hours()/24))
}

// SenderFrequency counts emails from a sender within the trailing window.
func (s *SQLiteStore) SenderFrequency(ctx context.Context, sender string, window time.Duration) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM emails
		WHERE sender = ? AND received_at >= datetime('now', ?)
	`, sender, windowModifier(window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sender emails: %w", err)
	}
	return count, nil
}

// TrainingRows returns emails from the trailing window, most recent first,
// capped at limit. A userID of 0 selects all users.
func (s *SQLiteStore) TrainingRows(ctx context.Context, userID int64, window time.Duration, limit int) ([]core.EmailRecord, error) {
	query := `
		SELECT ` + emailColumns + `
		FROM emails e
		JOIN email_accounts ea ON e.email_account_id = ea.id
		JOIN users u ON ea.user_id = u.id
		WHERE e.received_at >= datetime('now', ?)
	`
	args := []interface{}{windowModifier(window)}
	if userID != 0 {
		query += " AND u.id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY e.received_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query training rows: %w", err)
	}
	defer rows.Close()

	var records []core.EmailRecord
	for rows.Next() {
		record, err := scanEmail(rows)
		if err != nil {
			s.logger.Error("Failed to scan email row", zap.Error(err))
			continue
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// CountSince counts emails for a scope received after the given time.
func (s *SQLiteStore) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM emails e
		JOIN email_accounts ea ON e.email_account_id = ea.id
		WHERE e.received_at > ?
	`
	args := []interface{}{since}
	if userID != 0 {
		query += " AND ea.user_id = ?"
		args = append(args, userID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count new emails: %w", err)
	}
	return count, nil
}

// EmailByID fetches a single email by its identifier.
func (s *SQLiteStore) EmailByID(ctx context.Context, id int64) (*core.EmailRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+emailColumns+`
		FROM emails e
		JOIN email_accounts ea ON e.email_account_id = ea.id
		JOIN users u ON ea.user_id = u.id
		WHERE e.id = ?
	`, id)
	record, err := scanEmail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("email %d not found", id)
		}
		return nil, fmt.Errorf("failed to fetch email %d: %w", id, err)
	}
	return record, nil
}

// ActiveUsers lists user IDs with at least one email in the window.
func (s *SQLiteStore) ActiveUsers(ctx context.Context, window time.Duration) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ea.user_id FROM emails e
		JOIN email_accounts ea ON e.email_account_id = ea.id
		WHERE e.received_at >= datetime('now', ?)
	`, windowModifier(window))
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// Upsert inserts or replaces the metadata row for a scope.
func (s *SQLiteStore) Upsert(ctx context.Context, meta *core.ModelMetadata) error {
	scores, err := json.Marshal(meta.Scores)
	if err != nil {
		return fmt.Errorf("failed to serialize scores: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ml_models (scope, model_type, accuracy, scores, trained_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET
			model_type = excluded.model_type,
			accuracy = excluded.accuracy,
			scores = excluded.scores,
			trained_at = excluded.trained_at,
			is_active = excluded.is_active
	`, meta.Scope, meta.ModelType, meta.Accuracy, string(scores), meta.TrainedAt, meta.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert model metadata: %w", err)
	}
	return nil
}

// Latest returns the most recent active metadata row for a scope.
func (s *SQLiteStore) Latest(ctx context.Context, scope string) (*core.ModelMetadata, error) {
	var meta core.ModelMetadata
	var scores string
	err := s.db.QueryRowContext(ctx, `
		SELECT scope, model_type, accuracy, scores, trained_at, is_active
		FROM ml_models
		WHERE scope = ? AND is_active = 1
		ORDER BY trained_at DESC
		LIMIT 1
	`, scope).Scan(&meta.Scope, &meta.ModelType, &meta.Accuracy, &scores, &meta.TrainedAt, &meta.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNoModel
		}
		return nil, fmt.Errorf("failed to query model metadata: %w", err)
	}

	if err := json.Unmarshal([]byte(scores), &meta.Scores); err != nil {
		return nil, fmt.Errorf("failed to parse scores: %w", err)
	}
	return &meta, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
