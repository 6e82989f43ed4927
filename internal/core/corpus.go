package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CorpusBuilder assembles a labeled training corpus from historical
// emails. Ground-truth labels come from EmailRecord.DeriveAction.
type CorpusBuilder struct {
	emails     EmailRepository
	extractor  *FeatureExtractor
	logger     *zap.Logger
	minSamples int
	window     time.Duration
	maxRows    int
}

// NewCorpusBuilder creates a corpus builder.
func NewCorpusBuilder(
	emails EmailRepository,
	extractor *FeatureExtractor,
	logger *zap.Logger,
	minSamples int,
	window time.Duration,
	maxRows int,
) *CorpusBuilder {
	return &CorpusBuilder{
		emails:     emails,
		extractor:  extractor,
		logger:     logger,
		minSamples: minSamples,
		window:     window,
		maxRows:    maxRows,
	}
}

// Build queries the trailing window of emails (optionally for one user;
// userID 0 selects all users) and extracts one feature row per email.
// Returns ErrInsufficientData when fewer rows survive than the configured
// minimum.
func (b *CorpusBuilder) Build(ctx context.Context, userID int64) (*TrainingCorpus, error) {
	rows, err := b.emails.TrainingRows(ctx, userID, b.window, b.maxRows)
	if err != nil {
		return nil, fmt.Errorf("failed to query training rows: %w", err)
	}

	if len(rows) < b.minSamples {
		b.logger.Warn("Insufficient training data",
			zap.Int("samples", len(rows)),
			zap.Int("min_samples", b.minSamples))
		return nil, fmt.Errorf("%w: %d samples, need %d", ErrInsufficientData, len(rows), b.minSamples)
	}

	corpus := &TrainingCorpus{
		Columns: CanonicalFeatures,
		Matrix:  make([][]float64, 0, len(rows)),
		Labels:  make([]string, 0, len(rows)),
	}

	for i := range rows {
		email := &rows[i]
		features := b.extractor.Extract(ctx, email)
		// Row fills any absent column with 0.
		corpus.Matrix = append(corpus.Matrix, features.Row(corpus.Columns))
		corpus.Labels = append(corpus.Labels, email.DeriveAction())
	}

	b.logger.Info("Prepared training corpus",
		zap.Int("samples", corpus.Len()),
		zap.Int("features", len(corpus.Columns)))
	return corpus, nil
}
