package core

import (
	"fmt"
	"time"
)

// Action categories a user can take on an email. These are the class labels
// every model in the system is trained to predict.
const (
	ActionDeleted  = "deleted"
	ActionArchived = "archived"
	ActionRead     = "read"
	ActionPriority = "priority"
	ActionNormal   = "normal"
)

// GlobalScope is the scope key for the model shared across all users.
const GlobalScope = "global"

// UserScope returns the scope key for a single user's personalized model.
func UserScope(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// EmailRecord is one email as read from the historical data store. Records
// are owned by the store and treated as read-only by the core.
type EmailRecord struct {
	ID          int64
	UserID      int64
	Sender      string
	Subject     string
	Body        string
	ReceivedAt  time.Time
	Recipients  []string
	Attachments []string
	IsRead      bool
	IsArchived  bool
	IsDeleted   bool
	Priority    string
}

// DeriveAction maps an email's status flags to its ground-truth action label.
// Precedence is fixed: deleted > archived > read > priority > normal; the
// first matching flag wins.
func (e *EmailRecord) DeriveAction() string {
	switch {
	case e.IsDeleted:
		return ActionDeleted
	case e.IsArchived:
		return ActionArchived
	case e.IsRead:
		return ActionRead
	case e.Priority == "high":
		return ActionPriority
	default:
		return ActionNormal
	}
}

// CanonicalFeatures is the fixed feature schema every vector must satisfy
// before training or inference. Order here is the matrix column order.
var CanonicalFeatures = []string{
	"hour_of_day",
	"day_of_week",
	"month",
	"email_length",
	"subject_length",
	"sender_frequency",
	"recipient_count",
	"attachment_count",
	"has_links",
	"urgency_keywords",
	"sentiment_score",
	"readability_score",
	"spam_score",
}

// FeatureVector is a named numeric feature set extracted from one email.
// It is created once by the extractor and never mutated afterwards.
type FeatureVector map[string]float64

// Row flattens the vector into the given column order, filling any absent
// column with 0.
func (f FeatureVector) Row(columns []string) []float64 {
	row := make([]float64, len(columns))
	for i, col := range columns {
		row[i] = f[col]
	}
	return row
}

// TrainingCorpus pairs a feature matrix with a label vector, one label per
// row. Built fresh on every training run and discarded afterwards.
type TrainingCorpus struct {
	Columns []string
	Matrix  [][]float64
	Labels  []string
}

// Len returns the number of samples in the corpus.
func (c *TrainingCorpus) Len() int {
	return len(c.Matrix)
}

// Prediction is the outcome of scoring one email against a model bundle.
// A degraded prediction carries Error and the safe defaults.
type Prediction struct {
	PredictedAction   string             `json:"predicted_action"`
	Confidence        float64            `json:"confidence"`
	Probabilities     map[string]float64 `json:"probabilities,omitempty"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	ModelUsed         string             `json:"model_used,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// ModelMetadata summarizes the latest training run for a scope.
type ModelMetadata struct {
	Scope     string
	ModelType string
	Accuracy  float64
	Scores    map[string]float64
	TrainedAt time.Time
	IsActive  bool
}
