package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/ml"
)

// candidate is one model type in the selection run. Candidates are tried
// in slice order; the first one to reach the maximum accuracy wins, which
// keeps selection deterministic.
type candidate struct {
	name   string
	scaled bool
	build  func(seed int64) ml.Classifier
}

var candidates = []candidate{
	{ml.ModelRandomForest, false, func(seed int64) ml.Classifier { return ml.NewRandomForest(seed) }},
	{ml.ModelGradientBoosting, false, func(seed int64) ml.Classifier { return ml.NewGradientBoosting(seed) }},
	{ml.ModelLogisticRegression, true, func(seed int64) ml.Classifier { return ml.NewSoftmaxRegression() }},
	{ml.ModelNeuralNetwork, true, func(seed int64) ml.Classifier { return ml.NewMLP(seed) }},
}

// ModelSelector trains every candidate model on the same split and keeps
// the single best by held-out accuracy.
type ModelSelector struct {
	corpus       *CorpusBuilder
	bundles      BundleStore
	metadata     MetadataRepository
	logger       *zap.Logger
	testFraction float64
	seed         int64
	candidates   []candidate
}

// NewModelSelector creates a model selector.
func NewModelSelector(
	corpus *CorpusBuilder,
	bundles BundleStore,
	metadata MetadataRepository,
	logger *zap.Logger,
	testFraction float64,
	seed int64,
) *ModelSelector {
	return &ModelSelector{
		corpus:       corpus,
		bundles:      bundles,
		metadata:     metadata,
		logger:       logger,
		testFraction: testFraction,
		seed:         seed,
		candidates:   candidates,
	}
}

// Train builds a corpus for the scope (userID 0 means the global scope),
// trains all candidates, persists the winner, and returns the per-model
// accuracy map. The map is empty when every candidate failed to train.
func (s *ModelSelector) Train(ctx context.Context, userID int64) (map[string]float64, error) {
	scope := GlobalScope
	if userID != 0 {
		scope = UserScope(userID)
	}
	s.logger.Info("Starting model training", zap.String("scope", scope))

	corpus, err := s.corpus.Build(ctx, userID)
	if err != nil {
		return nil, err
	}

	split := ml.StratifiedSplit(corpus.Matrix, corpus.Labels, s.testFraction, s.seed)

	// One scaler and one encoder are fit on the training split and shared
	// by every candidate.
	scaler := &ml.StandardScaler{}
	trainScaled := scaler.FitTransform(split.XTrain)
	testScaled := scaler.Transform(split.XTest)

	encoder := &ml.LabelEncoder{}
	yTrain := encoder.FitTransform(split.YTrain)
	yTest, err := encoder.Transform(split.YTest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode test labels: %w", err)
	}
	numClasses := len(encoder.Classes)

	scores := make(map[string]float64, len(s.candidates))
	var bestBundle *ModelBundle
	bestScore := 0.0
	failures := 0

	for _, cand := range s.candidates {
		s.logger.Info("Training candidate", zap.String("model", cand.name))

		xTrain, xTest := split.XTrain, split.XTest
		if cand.scaled {
			xTrain, xTest = trainScaled, testScaled
		}

		model := cand.build(s.seed)
		if err := model.Fit(xTrain, yTrain, numClasses); err != nil {
			s.logger.Error("Failed to train candidate",
				zap.String("model", cand.name),
				zap.Error(err))
			scores[cand.name] = 0.0
			failures++
			continue
		}

		accuracy := ml.Accuracy(yTest, model.Predict(xTest))
		scores[cand.name] = accuracy
		s.logger.Info("Candidate accuracy",
			zap.String("model", cand.name),
			zap.Float64("accuracy", accuracy))

		// Strict comparison: the first candidate to reach the maximum
		// accuracy stays the winner.
		if accuracy > bestScore {
			bestScore = accuracy
			bundle := &ModelBundle{
				Model:          model,
				Encoder:        encoder,
				FeatureColumns: corpus.Columns,
				ModelType:      cand.name,
				Accuracy:       accuracy,
				TrainedAt:      time.Now(),
			}
			if cand.scaled {
				bundle.Scaler = scaler
			}
			bestBundle = bundle
		}
	}

	if failures == len(s.candidates) {
		return map[string]float64{}, fmt.Errorf("all candidate models failed to train for scope %s", scope)
	}

	if bestBundle == nil {
		s.logger.Warn("No candidate scored above zero, keeping existing model",
			zap.String("scope", scope))
		return scores, nil
	}

	if err := s.bundles.Save(scope, bestBundle); err != nil {
		return scores, fmt.Errorf("failed to persist winning bundle: %w", err)
	}

	s.logger.Info("Best model selected",
		zap.String("scope", scope),
		zap.String("model", bestBundle.ModelType),
		zap.Float64("accuracy", bestScore))

	meta := &ModelMetadata{
		Scope:     scope,
		ModelType: bestBundle.ModelType,
		Accuracy:  bestScore,
		Scores:    scores,
		TrainedAt: bestBundle.TrainedAt,
		IsActive:  true,
	}
	if err := s.metadata.Upsert(ctx, meta); err != nil {
		// The bundle is already on disk; a metadata failure only affects
		// reporting and retrain decisions.
		s.logger.Error("Failed to update model metadata",
			zap.String("scope", scope),
			zap.Error(err))
	}

	return scores, nil
}
