// Package ml implements the candidate estimators used for email action
// prediction, plus the preprocessing state (scaler, label encoder) that is
// persisted alongside a trained model.
package ml

import "encoding/gob"

// Model type identifiers. Candidate iteration elsewhere relies on these
// exact names appearing in score maps and bundle files.
const (
	ModelRandomForest       = "random_forest"
	ModelGradientBoosting   = "gradient_boosting"
	ModelLogisticRegression = "logistic_regression"
	ModelNeuralNetwork      = "neural_network"
)

// Classifier is a trainable multiclass estimator. Labels are dense class
// indices in [0, numClasses) as produced by a LabelEncoder.
type Classifier interface {
	// Fit trains the estimator on the given samples.
	Fit(X [][]float64, y []int, numClasses int) error

	// Predict returns the most likely class index per sample.
	Predict(X [][]float64) []int

	// PredictProba returns a per-class probability row per sample.
	PredictProba(X [][]float64) [][]float64

	// FeatureImportances returns normalized per-feature importances, or
	// nil if the estimator does not expose them.
	FeatureImportances() []float64
}

func init() {
	// Bundles hold a Classifier behind an interface; gob needs the
	// concrete types registered to round-trip them.
	gob.Register(&RandomForest{})
	gob.Register(&GradientBoosting{})
	gob.Register(&SoftmaxRegression{})
	gob.Register(&MLP{})
}
