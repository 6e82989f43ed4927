package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/adapters/store"
	"github.com/rotz/email-predictor/internal/config"
	"github.com/rotz/email-predictor/internal/core"
)

// StoreFactory creates the historical email store based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates the configured store. The same instance backs both
// the email repository and the metadata repository.
func (f *StoreFactory) CreateStore() (core.EmailRepository, core.MetadataRepository, error) {
	db := f.cfg.GetDatabase()

	switch db.Driver {
	case "mysql":
		s, err := store.NewMySQLStore(db.MySQLDSN, f.logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(db.SQLitePath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		s, err := store.NewSQLiteStore(db.SQLitePath, f.logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", db.Driver)
	}
}
