package core

import (
	"context"
	"errors"
	"time"

	"github.com/rotz/email-predictor/internal/ml"
)

var (
	// ErrInsufficientData is returned when a corpus is below the minimum
	// sample threshold and training must be refused.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrNoModel is returned when no bundle exists for a scope.
	ErrNoModel = errors.New("no trained model available")
)

// EmailRepository reads historical emails from the data store.
type EmailRepository interface {
	// SenderFrequency counts emails from a sender within the trailing window.
	SenderFrequency(ctx context.Context, sender string, window time.Duration) (int, error)

	// TrainingRows returns emails from the trailing window, most recent
	// first, capped at limit. A userID of 0 selects all users.
	TrainingRows(ctx context.Context, userID int64, window time.Duration, limit int) ([]EmailRecord, error)

	// CountSince counts emails for a scope received after the given time.
	// A userID of 0 counts across all users.
	CountSince(ctx context.Context, userID int64, since time.Time) (int, error)

	// EmailByID fetches a single email by its identifier.
	EmailByID(ctx context.Context, id int64) (*EmailRecord, error)

	// ActiveUsers lists user IDs with at least one email in the window.
	ActiveUsers(ctx context.Context, window time.Duration) ([]int64, error)
}

// MetadataRepository persists per-scope training run summaries.
type MetadataRepository interface {
	// Upsert inserts or replaces the metadata row for a scope.
	Upsert(ctx context.Context, meta *ModelMetadata) error

	// Latest returns the most recent metadata row for a scope, or ErrNoModel.
	Latest(ctx context.Context, scope string) (*ModelMetadata, error)
}

// SignalCache memoizes expensive per-text signals. Implementations degrade
// to always-miss when the backing store is unavailable.
type SignalCache interface {
	// Get returns the cached value for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (value string, ok bool)

	// Set stores a value under key with the given TTL. Failures are
	// ignored by callers; the signal is simply recomputed next time.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// ModelBundle is everything needed to score an email for one scope: the
// trained classifier, the fitted preprocessing state, and run metadata.
type ModelBundle struct {
	Model          ml.Classifier
	Scaler         *ml.StandardScaler
	Encoder        *ml.LabelEncoder
	FeatureColumns []string
	ModelType      string
	Accuracy       float64
	TrainedAt      time.Time
}

// BundleStore persists model bundles keyed by scope. Save is append-only;
// Load returns the most recently written bundle for the scope.
type BundleStore interface {
	Save(scope string, bundle *ModelBundle) error
	Load(scope string) (*ModelBundle, error)
}
