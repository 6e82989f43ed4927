package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// neverTrainedWindow bounds the new-email count when a scope has no
// training history: count since now minus this window.
const neverTrainedWindow = 30 * 24 * time.Hour

// RetrainScheduler decides when a scope's model has aged enough, and has
// accumulated enough new data, to justify a fresh training run.
type RetrainScheduler struct {
	emails         EmailRepository
	metadata       MetadataRepository
	selector       *ModelSelector
	logger         *zap.Logger
	updateInterval time.Duration
	minNewEmails   int
}

// NewRetrainScheduler creates a retrain scheduler.
func NewRetrainScheduler(
	emails EmailRepository,
	metadata MetadataRepository,
	selector *ModelSelector,
	logger *zap.Logger,
	updateInterval time.Duration,
	minNewEmails int,
) *RetrainScheduler {
	return &RetrainScheduler{
		emails:         emails,
		metadata:       metadata,
		selector:       selector,
		logger:         logger,
		updateInterval: updateInterval,
		minNewEmails:   minNewEmails,
	}
}

// ShouldRetrain reports whether the scope's model is both older than the
// update interval and has accumulated enough new emails. The interval
// check runs first; a fresh model declines regardless of new-email count.
func (s *RetrainScheduler) ShouldRetrain(ctx context.Context, userID int64) (bool, error) {
	scope := GlobalScope
	if userID != 0 {
		scope = UserScope(userID)
	}

	since := time.Now().Add(-neverTrainedWindow)
	meta, err := s.metadata.Latest(ctx, scope)
	switch {
	case err == nil:
		if time.Since(meta.TrainedAt) < s.updateInterval {
			return false, nil
		}
		since = meta.TrainedAt
	case errors.Is(err, ErrNoModel):
		// Never trained; fall through with the 30-day baseline.
	default:
		return false, err
	}

	newEmails, err := s.emails.CountSince(ctx, userID, since)
	if err != nil {
		return false, err
	}
	if newEmails < s.minNewEmails {
		return false, nil
	}

	s.logger.Info("Retrain due",
		zap.String("scope", scope),
		zap.Int("new_emails", newEmails))
	return true, nil
}

// RetrainIfNeeded runs a training pass when ShouldRetrain allows it.
// Success means at least one candidate scored above zero.
func (s *RetrainScheduler) RetrainIfNeeded(ctx context.Context, userID int64) (bool, error) {
	due, err := s.ShouldRetrain(ctx, userID)
	if err != nil || !due {
		return false, err
	}

	scores, err := s.selector.Train(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, accuracy := range scores {
		if accuracy > 0 {
			return true, nil
		}
	}
	return false, nil
}
