// Package bundle persists trained model bundles to a directory, one
// gob-encoded file per training run.
package bundle

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/core"
)

// FSStore is a filesystem implementation of the BundleStore port. Saves
// are append-only: every run writes a new uniquely named file and older
// files are never touched, so concurrent writers cannot corrupt history.
type FSStore struct {
	dir    string
	logger *zap.Logger
}

// NewFSStore creates the model directory if absent and returns the store.
func NewFSStore(dir string, logger *zap.Logger) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	return &FSStore{dir: dir, logger: logger}, nil
}

// Save writes the bundle to <scope>_<modeltype>_<unixnano>.bin.
func (s *FSStore) Save(scope string, b *core.ModelBundle) error {
	name := fmt.Sprintf("%s_%s_%d.bin", scope, b.ModelType, time.Now().UnixNano())
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create bundle file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(b); err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	s.logger.Info("Saved model bundle",
		zap.String("scope", scope),
		zap.String("model", b.ModelType),
		zap.String("path", path))
	return nil
}

// Load decodes the most recently written bundle file for the scope, or
// returns core.ErrNoModel if none exists.
func (s *FSStore) Load(scope string) (*core.ModelBundle, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read model directory: %w", err)
	}

	prefix := scope + "_"
	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = entry.Name()
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return nil, core.ErrNoModel
	}

	path := filepath.Join(s.dir, latest)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle file: %w", err)
	}
	defer f.Close()

	var b core.ModelBundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle %s: %w", latest, err)
	}

	s.logger.Info("Loaded model bundle",
		zap.String("scope", scope),
		zap.String("path", path))
	return &b, nil
}
