package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/ml"
)

// separableEmails returns a corpus where read emails are short and normal
// emails carry a long body, so body_length alone separates the classes.
func separableEmails(perClass int) []EmailRecord {
	rows := make([]EmailRecord, 0, 2*perClass)
	long := ""
	for i := 0; i < 200; i++ {
		long += "lorem ipsum "
	}
	for i := 0; i < perClass; i++ {
		rows = append(rows, EmailRecord{
			ID:         int64(len(rows) + 1),
			Sender:     fmt.Sprintf("reader%d@example.com", i),
			Subject:    "ok",
			Body:       "fine",
			ReceivedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			IsRead:     true,
		})
		rows = append(rows, EmailRecord{
			ID:         int64(len(rows) + 1),
			Sender:     fmt.Sprintf("sender%d@example.com", i),
			Subject:    "newsletter with a much longer subject line",
			Body:       long,
			ReceivedAt: time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC),
		})
	}
	return rows
}

func newTestSelector(repo EmailRepository, bundles BundleStore, metadata MetadataRepository, minSamples int) *ModelSelector {
	builder := newTestCorpusBuilder(repo, minSamples)
	return NewModelSelector(builder, bundles, metadata, zap.NewNop(), 0.2, 42)
}

func TestTrainSelectsBestCandidate(t *testing.T) {
	repo := &fakeEmailRepo{rows: separableEmails(20)}
	bundles := newFakeBundleStore()
	metadata := newFakeMetadataRepo()
	selector := newTestSelector(repo, bundles, metadata, 20)

	scores, err := selector.Train(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, scores, 4)
	for _, name := range []string{
		ml.ModelRandomForest,
		ml.ModelGradientBoosting,
		ml.ModelLogisticRegression,
		ml.ModelNeuralNetwork,
	} {
		assert.Contains(t, scores, name)
	}

	// The classes are trivially separable, so at least the tree models
	// should score perfectly.
	assert.Equal(t, 1.0, scores[ml.ModelRandomForest])

	require.Equal(t, 1, bundles.saves)
	bundle, err := bundles.Load(GlobalScope)
	require.NoError(t, err)

	best := 0.0
	for _, accuracy := range scores {
		if accuracy > best {
			best = accuracy
		}
	}
	assert.Equal(t, best, bundle.Accuracy)
	assert.Equal(t, best, scores[bundle.ModelType])
	assert.Equal(t, CanonicalFeatures, bundle.FeatureColumns)
	assert.NotNil(t, bundle.Model)
	assert.NotNil(t, bundle.Encoder)
	assert.ElementsMatch(t, []string{ActionNormal, ActionRead}, bundle.Encoder.Classes)

	require.Equal(t, 1, metadata.upserts)
	meta, err := metadata.Latest(context.Background(), GlobalScope)
	require.NoError(t, err)
	assert.Equal(t, bundle.ModelType, meta.ModelType)
	assert.Equal(t, best, meta.Accuracy)
	assert.Equal(t, scores, meta.Scores)
	assert.True(t, meta.IsActive)
}

func TestTrainUserScope(t *testing.T) {
	repo := &fakeEmailRepo{rows: separableEmails(20)}
	bundles := newFakeBundleStore()
	metadata := newFakeMetadataRepo()
	selector := newTestSelector(repo, bundles, metadata, 20)

	_, err := selector.Train(context.Background(), 42)

	require.NoError(t, err)
	_, err = bundles.Load("user_42")
	assert.NoError(t, err)
	meta, err := metadata.Latest(context.Background(), "user_42")
	require.NoError(t, err)
	assert.Equal(t, "user_42", meta.Scope)
}

// brokenClassifier always fails to fit.
type brokenClassifier struct{}

func (brokenClassifier) Fit(X [][]float64, y []int, numClasses int) error {
	return errors.New("singular matrix")
}
func (brokenClassifier) Predict(X [][]float64) []int            { return nil }
func (brokenClassifier) PredictProba(X [][]float64) [][]float64 { return nil }
func (brokenClassifier) FeatureImportances() []float64          { return nil }

func TestTrainScoresFailedCandidateZero(t *testing.T) {
	repo := &fakeEmailRepo{rows: separableEmails(20)}
	bundles := newFakeBundleStore()
	metadata := newFakeMetadataRepo()
	selector := newTestSelector(repo, bundles, metadata, 20)
	selector.candidates = []candidate{
		{"broken", false, func(seed int64) ml.Classifier { return brokenClassifier{} }},
		{ml.ModelRandomForest, false, func(seed int64) ml.Classifier { return ml.NewRandomForest(seed) }},
	}

	scores, err := selector.Train(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, scores, 2)
	// The broken candidate is scored, not skipped, and the rest still run.
	assert.Equal(t, 0.0, scores["broken"])
	assert.Greater(t, scores[ml.ModelRandomForest], 0.0)

	require.Equal(t, 1, bundles.saves)
	bundle, err := bundles.Load(GlobalScope)
	require.NoError(t, err)
	assert.Equal(t, ml.ModelRandomForest, bundle.ModelType)
	assert.Equal(t, 1, metadata.upserts)
}

func TestTrainAllCandidatesFail(t *testing.T) {
	repo := &fakeEmailRepo{rows: separableEmails(20)}
	bundles := newFakeBundleStore()
	metadata := newFakeMetadataRepo()
	selector := newTestSelector(repo, bundles, metadata, 20)
	selector.candidates = []candidate{
		{"broken_a", false, func(seed int64) ml.Classifier { return brokenClassifier{} }},
		{"broken_b", true, func(seed int64) ml.Classifier { return brokenClassifier{} }},
	}

	scores, err := selector.Train(context.Background(), 0)

	require.Error(t, err)
	assert.Empty(t, scores)
	assert.NotNil(t, scores, "empty map, not nil")
	assert.Zero(t, bundles.saves)
	assert.Zero(t, metadata.upserts)
}

func TestTrainInsufficientData(t *testing.T) {
	repo := &fakeEmailRepo{rows: separableEmails(5)}
	bundles := newFakeBundleStore()
	metadata := newFakeMetadataRepo()
	selector := newTestSelector(repo, bundles, metadata, 1000)

	_, err := selector.Train(context.Background(), 0)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Zero(t, bundles.saves)
	assert.Zero(t, metadata.upserts)
}
