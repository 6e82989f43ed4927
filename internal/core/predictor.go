package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// InferenceEngine scores emails against trained bundles. Bundles are
// loaded lazily into an in-process per-scope cache and kept until the
// process exits; a newer bundle on disk is picked up only by a restart.
type InferenceEngine struct {
	extractor           *FeatureExtractor
	bundles             BundleStore
	logger              *zap.Logger
	importanceThreshold float64

	mu     sync.Mutex
	loaded map[string]*ModelBundle
}

// NewInferenceEngine creates an inference engine with an empty bundle
// cache.
func NewInferenceEngine(
	extractor *FeatureExtractor,
	bundles BundleStore,
	logger *zap.Logger,
	importanceThreshold float64,
) *InferenceEngine {
	return &InferenceEngine{
		extractor:           extractor,
		bundles:             bundles,
		logger:              logger,
		importanceThreshold: importanceThreshold,
		loaded:              make(map[string]*ModelBundle),
	}
}

// Predict scores one email under the given scope (userID 0 means global).
// It never fails outward: any error is converted into a degraded
// prediction with the safe default action. A panic while scoring (a stale
// or corrupt bundle whose model disagrees with its feature columns) is
// recovered into the same degraded response.
func (e *InferenceEngine) Predict(ctx context.Context, email *EmailRecord, userID int64) (pred *Prediction) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("model scoring failed: %v", r)
			e.logger.Error("Prediction panicked", zap.Any("cause", r))
			pred = degraded(err)
		}
	}()

	scope := GlobalScope
	if userID != 0 {
		scope = UserScope(userID)
	}

	bundle, used, err := e.resolveBundle(scope)
	if err != nil {
		e.logger.Warn("No model available for prediction",
			zap.String("scope", scope),
			zap.Error(err))
		return degraded(err)
	}

	features := e.extractor.Extract(ctx, email)
	// Reindex to the bundle's training column order; absent columns
	// become 0.
	row := features.Row(bundle.FeatureColumns)
	if bundle.Scaler != nil {
		row = bundle.Scaler.Transform([][]float64{row})[0]
	}

	probs := bundle.Model.PredictProba([][]float64{row})[0]
	if len(probs) == 0 || len(probs) != len(bundle.Encoder.Classes) {
		err := fmt.Errorf("model returned %d probabilities for %d classes", len(probs), len(bundle.Encoder.Classes))
		e.logger.Error("Prediction failed", zap.String("scope", used), zap.Error(err))
		return degraded(err)
	}

	best := floats.MaxIdx(probs)
	action, err := bundle.Encoder.Inverse(best)
	if err != nil {
		e.logger.Error("Failed to decode predicted class", zap.Error(err))
		return degraded(err)
	}

	probabilities := make(map[string]float64, len(probs))
	for i, p := range probs {
		probabilities[bundle.Encoder.Classes[i]] = p
	}

	var importance map[string]float64
	if raw := bundle.Model.FeatureImportances(); raw != nil {
		importance = make(map[string]float64)
		for i, v := range raw {
			if i < len(bundle.FeatureColumns) && v > e.importanceThreshold {
				importance[bundle.FeatureColumns[i]] = v
			}
		}
	}

	return &Prediction{
		PredictedAction:   action,
		Confidence:        probs[best],
		Probabilities:     probabilities,
		FeatureImportance: importance,
		ModelUsed:         used,
	}
}

// resolveBundle returns the cached or freshly loaded bundle for the scope,
// falling back to the global scope when the exact one has no model.
func (e *InferenceEngine) resolveBundle(scope string) (*ModelBundle, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if bundle, ok := e.loaded[scope]; ok {
		return bundle, scope, nil
	}

	bundle, err := e.bundles.Load(scope)
	if err == nil {
		e.loaded[scope] = bundle
		e.logger.Info("Loaded model bundle",
			zap.String("scope", scope),
			zap.String("model", bundle.ModelType))
		return bundle, scope, nil
	}

	if scope == GlobalScope {
		return nil, "", ErrNoModel
	}

	if bundle, ok := e.loaded[GlobalScope]; ok {
		return bundle, GlobalScope, nil
	}
	bundle, err = e.bundles.Load(GlobalScope)
	if err != nil {
		return nil, "", ErrNoModel
	}
	e.loaded[GlobalScope] = bundle
	e.logger.Info("Loaded model bundle",
		zap.String("scope", GlobalScope),
		zap.String("model", bundle.ModelType))
	return bundle, GlobalScope, nil
}

func degraded(err error) *Prediction {
	return &Prediction{
		PredictedAction: ActionNormal,
		Confidence:      0.0,
		Error:           err.Error(),
	}
}
