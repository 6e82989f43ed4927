package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rotz/email-predictor/internal/ml"
)

// stubClassifier returns canned probabilities and records the rows it saw.
type stubClassifier struct {
	probs       []float64
	importances []float64
	seenRows    [][]float64
}

func (s *stubClassifier) Fit(X [][]float64, y []int, numClasses int) error { return nil }

func (s *stubClassifier) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	return out
}

func (s *stubClassifier) PredictProba(X [][]float64) [][]float64 {
	s.seenRows = append(s.seenRows, X...)
	out := make([][]float64, len(X))
	for i := range out {
		out[i] = s.probs
	}
	return out
}

func (s *stubClassifier) FeatureImportances() []float64 { return s.importances }

func stubBundle(model ml.Classifier, modelType string) *ModelBundle {
	return &ModelBundle{
		Model:          model,
		Encoder:        &ml.LabelEncoder{Classes: []string{"archived", "normal", "read"}},
		FeatureColumns: CanonicalFeatures,
		ModelType:      modelType,
		Accuracy:       0.9,
		TrainedAt:      time.Now(),
	}
}

func newTestEngine(bundles BundleStore) *InferenceEngine {
	extractor := NewFeatureExtractor(&fakeEmailRepo{}, nil, zap.NewNop(), false, time.Hour)
	return NewInferenceEngine(extractor, bundles, zap.NewNop(), 0.01)
}

func TestPredictDegradesWithoutModel(t *testing.T) {
	engine := newTestEngine(newFakeBundleStore())

	pred := engine.Predict(context.Background(), sampleEmail(), 42)

	assert.Equal(t, ActionNormal, pred.PredictedAction)
	assert.Equal(t, 0.0, pred.Confidence)
	assert.NotEmpty(t, pred.Error)
	assert.Empty(t, pred.ModelUsed)
}

func TestPredictUsesUserModel(t *testing.T) {
	stub := &stubClassifier{probs: []float64{0.1, 0.2, 0.7}}
	bundles := newFakeBundleStore()
	bundles.bundles["user_42"] = stubBundle(stub, ml.ModelRandomForest)

	engine := newTestEngine(bundles)
	result := engine.Predict(context.Background(), sampleEmail(), 42)

	assert.Equal(t, "read", result.PredictedAction)
	assert.Equal(t, 0.7, result.Confidence)
	assert.Equal(t, "user_42", result.ModelUsed)
	assert.Empty(t, result.Error)
	assert.Equal(t, map[string]float64{"archived": 0.1, "normal": 0.2, "read": 0.7}, result.Probabilities)
}

func TestPredictFallsBackToGlobal(t *testing.T) {
	stub := &stubClassifier{probs: []float64{0.8, 0.1, 0.1}}
	bundles := newFakeBundleStore()
	bundles.bundles[GlobalScope] = stubBundle(stub, ml.ModelGradientBoosting)
	engine := newTestEngine(bundles)

	result := engine.Predict(context.Background(), sampleEmail(), 42)

	assert.Equal(t, "archived", result.PredictedAction)
	assert.Equal(t, GlobalScope, result.ModelUsed)
}

func TestPredictCachesBundle(t *testing.T) {
	stub := &stubClassifier{probs: []float64{0.5, 0.3, 0.2}}
	bundles := newFakeBundleStore()
	bundles.bundles[GlobalScope] = stubBundle(stub, ml.ModelRandomForest)
	engine := newTestEngine(bundles)

	engine.Predict(context.Background(), sampleEmail(), 0)
	loadsAfterFirst := bundles.loads
	engine.Predict(context.Background(), sampleEmail(), 0)

	assert.Equal(t, loadsAfterFirst, bundles.loads)
}

func TestPredictAppliesScaler(t *testing.T) {
	stub := &stubClassifier{probs: []float64{0.0, 1.0, 0.0}}
	bundle := stubBundle(stub, ml.ModelLogisticRegression)
	dims := len(CanonicalFeatures)
	scaler := &ml.StandardScaler{Mean: make([]float64, dims), Std: make([]float64, dims)}
	for i := 0; i < dims; i++ {
		scaler.Mean[i] = 1000
		scaler.Std[i] = 2
	}
	bundle.Scaler = scaler
	bundles := newFakeBundleStore()
	bundles.bundles[GlobalScope] = bundle
	engine := newTestEngine(bundles)

	engine.Predict(context.Background(), sampleEmail(), 0)

	require.Len(t, stub.seenRows, 1)
	// Raw feature values are small, so after centering on 1000 every
	// scaled value must be negative.
	for _, v := range stub.seenRows[0] {
		assert.Less(t, v, 0.0)
	}
}

func TestPredictFiltersLowImportances(t *testing.T) {
	importances := make([]float64, len(CanonicalFeatures))
	importances[0] = 0.9
	importances[1] = 0.005
	stub := &stubClassifier{probs: []float64{0.2, 0.5, 0.3}, importances: importances}
	bundles := newFakeBundleStore()
	bundles.bundles[GlobalScope] = stubBundle(stub, ml.ModelRandomForest)
	engine := newTestEngine(bundles)

	result := engine.Predict(context.Background(), sampleEmail(), 0)

	require.NotNil(t, result.FeatureImportance)
	assert.Contains(t, result.FeatureImportance, CanonicalFeatures[0])
	assert.NotContains(t, result.FeatureImportance, CanonicalFeatures[1])
}

func TestPredictDegradesOnModelColumnSkew(t *testing.T) {
	// A bundle whose model was fit on two features but whose column list
	// has since grown, as with a stale file in the model directory. The
	// dimension mismatch must surface as a degraded prediction.
	model := ml.NewSoftmaxRegression()
	require.NoError(t, model.Fit([][]float64{{0, 0}, {1, 1}}, []int{0, 1}, 2))

	skewed := stubBundle(model, ml.ModelLogisticRegression)
	skewed.FeatureColumns = CanonicalFeatures
	bundles := newFakeBundleStore()
	bundles.bundles[GlobalScope] = skewed
	engine := newTestEngine(bundles)

	var result *Prediction
	require.NotPanics(t, func() {
		result = engine.Predict(context.Background(), sampleEmail(), 0)
	})

	assert.Equal(t, ActionNormal, result.PredictedAction)
	assert.Equal(t, 0.0, result.Confidence)
	assert.NotEmpty(t, result.Error)
}

func TestPredictRejectsMismatchedProbabilities(t *testing.T) {
	stub := &stubClassifier{probs: []float64{0.5, 0.5}}
	bundles := newFakeBundleStore()
	bundles.bundles[GlobalScope] = stubBundle(stub, ml.ModelRandomForest)
	engine := newTestEngine(bundles)

	result := engine.Predict(context.Background(), sampleEmail(), 0)

	assert.Equal(t, ActionNormal, result.PredictedAction)
	assert.NotEmpty(t, result.Error)
}
