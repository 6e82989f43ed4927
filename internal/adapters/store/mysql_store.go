// Package store implements the historical-email and model-metadata ports
// on top of the relational stores the mail system already uses.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/core"
)

// MySQLStore implements EmailRepository and MetadataRepository against the
// mail system's MySQL database. The email tables are owned by the mail
// store and read-only here; only the ml_models metadata table is written.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore opens the database and ensures the metadata table exists.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ml_models (
			scope VARCHAR(64) PRIMARY KEY,
			model_type VARCHAR(64),
			accuracy DOUBLE,
			scores TEXT,
			trained_at TIMESTAMP,
			is_active BOOLEAN
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// SenderFrequency counts emails from a sender within the trailing window.
func (s *MySQLStore) SenderFrequency(ctx context.Context, sender string, window time.Duration) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM emails
		WHERE sender = ? AND received_at >= DATE_SUB(NOW(), INTERVAL ? DAY)
	`, sender, int(window.Hours()/24)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sender emails: %w", err)
	}
	return count, nil
}

const emailColumns = `
	e.id, u.id, e.sender, e.subject, e.body, e.received_at,
	e.recipients, e.attachments, e.is_read, e.is_archived, e.is_deleted, e.priority
`

// TrainingRows returns emails from the trailing window, most recent first,
// capped at limit. A userID of 0 selects all users.
func (s *MySQLStore) TrainingRows(ctx context.Context, userID int64, window time.Duration, limit int) ([]core.EmailRecord, error) {
	query := `
		SELECT ` + emailColumns + `
		FROM emails e
		JOIN email_accounts ea ON e.email_account_id = ea.id
		JOIN users u ON ea.user_id = u.id
		WHERE e.received_at >= DATE_SUB(NOW(), INTERVAL ? DAY)
	`
	args := []interface{}{int(window.Hours() / 24)}
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
func (s *MySQLStore) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
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
func (s *MySQLStore) EmailByID(ctx context.Context, id int64) (*core.EmailRecord, error) {
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
func (s *MySQLStore) ActiveUsers(ctx context.Context, window time.Duration) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ea.user_id FROM emails e
		JOIN email_accounts ea ON e.email_account_id = ea.id
		WHERE e.received_at >= DATE_SUB(NOW(), INTERVAL ? DAY)
	`, int(window.Hours()/24))
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
func (s *MySQLStore) Upsert(ctx context.Context, meta *core.ModelMetadata) error {
	scores, err := json.Marshal(meta.Scores)
	if err != nil {
		return fmt.Errorf("failed to serialize scores: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ml_models (scope, model_type, accuracy, scores, trained_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			model_type = VALUES(model_type),
			accuracy = VALUES(accuracy),
			scores = VALUES(scores),
			trained_at = VALUES(trained_at),
			is_active = VALUES(is_active)
	`, meta.Scope, meta.ModelType, meta.Accuracy, string(scores), meta.TrainedAt, meta.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert model metadata: %w", err)
	}
	return nil
}

// Latest returns the most recent active metadata row for a scope.
func (s *MySQLStore) Latest(ctx context.Context, scope string) (*core.ModelMetadata, error) {
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
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmail(row rowScanner) (*core.EmailRecord, error) {
	var record core.EmailRecord
	var recipients, attachments, priority sql.NullString
	err := row.Scan(
		&record.ID, &record.UserID, &record.Sender, &record.Subject, &record.Body,
		&record.ReceivedAt, &recipients, &attachments,
		&record.IsRead, &record.IsArchived, &record.IsDeleted, &priority,
	)
	if err != nil {
		return nil, err
	}

	record.Priority = priority.String
	if recipients.Valid && recipients.String != "" {
		if err := json.Unmarshal([]byte(recipients.String), &record.Recipients); err != nil {
			return nil, fmt.Errorf("failed to parse recipients: %w", err)
		}
	}
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &record.Attachments); err != nil {
			return nil, fmt.Errorf("failed to parse attachments: %w", err)
		}
	}
	return &record, nil
}
