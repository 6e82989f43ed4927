package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/config"
	"github.com/rotz/email-predictor/internal/core"
	"github.com/rotz/email-predictor/internal/di"
)

const activeUserWindow = 30 * 24 * time.Hour

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	scheduler *core.RetrainScheduler,
	emails core.EmailRepository,
	signals core.SignalCache,
) error {
	defer logger.Sync()

	sweepFreq, err := cfg.GetDuration("scheduler.sweep_frequency")
	if err != nil {
		return fmt.Errorf("invalid sweep frequency: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Retrain daemon started", zap.Duration("sweep_frequency", sweepFreq))

	ticker := time.NewTicker(sweepFreq)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// First sweep right away so a fresh deployment trains without
	// waiting a full period.
	sweep(ctx, logger, scheduler, emails)

	for {
		select {
		case <-ticker.C:
			sweep(ctx, logger, scheduler, emails)
		case <-sigCh:
			logger.Info("Shutting down...")

			// Close any resources that need closing
			if closer, ok := emails.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Error("Failed to close email store", zap.Error(err))
				}
			}
			if stopper, ok := signals.(interface{ Stop() }); ok {
				stopper.Stop()
			}

			logger.Info("Shutdown complete")
			return nil
		}
	}
}

// sweep checks the global scope plus every recently active user scope and
// retrains the stale ones.
func sweep(ctx context.Context, logger *zap.Logger, scheduler *core.RetrainScheduler, emails core.EmailRepository) {
	scopes := []int64{0}
	users, err := emails.ActiveUsers(ctx, activeUserWindow)
	if err != nil {
		logger.Error("Failed to list active users, sweeping global scope only", zap.Error(err))
	} else {
		scopes = append(scopes, users...)
	}

	for _, userID := range scopes {
		retrained, err := scheduler.RetrainIfNeeded(ctx, userID)
		if err != nil {
			logger.Error("Retrain check failed",
				zap.Int64("user_id", userID),
				zap.Error(err))
			continue
		}
		if retrained {
			logger.Info("Retrained scope", zap.Int64("user_id", userID))
		}
	}
}
