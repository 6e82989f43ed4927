package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestExtractor(repo EmailRepository, cache SignalCache) *FeatureExtractor {
	return NewFeatureExtractor(repo, cache, zap.NewNop(), true, time.Hour)
}

func sampleEmail() *EmailRecord {
	return &EmailRecord{
		Sender:     "alice@example.com",
		Subject:    "Quarterly report",
		Body:       "Please find the quarterly report attached. Let me know if anything looks off.",
		ReceivedAt: time.Date(2026, time.March, 4, 14, 30, 0, 0, time.UTC), // a Wednesday
		Recipients: []string{"bob@example.com", "carol@example.com"},
	}
}

func TestExtractCoversCanonicalFeatures(t *testing.T) {
	extractor := newTestExtractor(&fakeEmailRepo{frequency: 5}, nil)
	features := extractor.Extract(context.Background(), sampleEmail())

	for _, name := range CanonicalFeatures {
		value, ok := features[name]
		require.True(t, ok, "missing canonical feature %s", name)
		assert.False(t, math.IsNaN(value), "feature %s is NaN", name)
	}

	assert.Equal(t, 14.0, features["hour_of_day"])
	assert.Equal(t, 2.0, features["day_of_week"]) // Wednesday, Monday-based
	assert.Equal(t, 3.0, features["month"])
	assert.Equal(t, 2.0, features["recipient_count"])
	assert.Equal(t, 5.0, features["sender_frequency"])
	assert.Equal(t, 0.0, features["has_links"])
}

func TestSenderFrequencyDegradesToZero(t *testing.T) {
	repo := &fakeEmailRepo{frequencyErr: errors.New("connection refused")}
	extractor := newTestExtractor(repo, nil)

	features := extractor.Extract(context.Background(), sampleEmail())
	assert.Equal(t, 0.0, features["sender_frequency"])
}

func TestSentimentScore(t *testing.T) {
	email := sampleEmail()
	email.Body = "This is good and great, wonderful news"

	extractor := newTestExtractor(&fakeEmailRepo{}, nil)
	features := extractor.Extract(context.Background(), email)

	// 3 positive words over 7 tokens.
	assert.InDelta(t, 3.0/7.0, features["sentiment_score"], 1e-9)
}

func TestSentimentMemoized(t *testing.T) {
	email := sampleEmail()
	email.Body = "This is good and great, wonderful news"
	cache := newFakeSignalCache()
	extractor := newTestExtractor(&fakeEmailRepo{}, cache)

	first := extractor.Extract(context.Background(), email)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, time.Hour, cache.lastTTL)

	second := extractor.Extract(context.Background(), email)
	assert.Equal(t, 1, cache.sets, "cache hit must not re-store")
	assert.Equal(t, first["sentiment_score"], second["sentiment_score"])
}

func TestSentimentCacheFailureIsNotFatal(t *testing.T) {
	email := sampleEmail()
	email.Body = "good news"
	cache := newFakeSignalCache()
	cache.setErr = errors.New("redis down")

	extractor := newTestExtractor(&fakeEmailRepo{}, cache)
	features := extractor.Extract(context.Background(), email)
	assert.InDelta(t, 0.5, features["sentiment_score"], 1e-9)
}

func TestReadabilityScoreBounds(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"no sentences", "just words without punctuation"},
		{"short", "Go. Run. Win."},
		{"long sentence", "This extraordinarily complicated demonstration sentence incorporates multisyllabic vocabulary throughout."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := readabilityScore(tt.body)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}

	assert.Equal(t, 0.0, readabilityScore(""))
	assert.Equal(t, 0.0, readabilityScore("no terminal punctuation here"))
}

func TestCountSyllables(t *testing.T) {
	tests := []struct {
		word string
		want int
	}{
		{"cat", 1},
		{"hello", 2},
		{"beautiful", 3},
		{"rhythm", 1},
		{"age", 1}, // trailing 'e' is dropped
		{"e", 1},   // floor of one
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, countSyllables(tt.word), "word %q", tt.word)
	}
}

func TestSpamScoreSpammyEmail(t *testing.T) {
	spammy := &EmailRecord{
		Sender:     "winner12345@spam.example",
		Subject:    "FREE WIN CASH!!!! Act now",
		ReceivedAt: time.Now(),
	}
	plain := sampleEmail()

	spamValue := spamScore(spammy)
	plainValue := spamScore(plain)

	// Triggered: free, win, cash keywords, digit-heavy sender local part,
	// and more than three exclamation marks = 5 of 18 checks.
	assert.InDelta(t, 5.0/18.0, spamValue, 1e-9)
	assert.Greater(t, spamValue, plainValue)

	assert.GreaterOrEqual(t, spamValue, 0.0)
	assert.LessOrEqual(t, spamValue, 1.0)
}

func TestSpamScoreCapitalization(t *testing.T) {
	shouting := &EmailRecord{
		Sender:     "alice@example.com",
		Subject:    "READ THIS NOW",
		ReceivedAt: time.Now(),
	}
	assert.InDelta(t, 1.0/18.0, spamScore(shouting), 1e-9)
}

func TestUrgencyKeywordsMonotonic(t *testing.T) {
	base := "hello there"
	previous := countUrgencyKeywords(base)
	text := base
	for _, keyword := range []string{"urgent", "asap", "deadline", "critical"} {
		text += " " + keyword
		current := countUrgencyKeywords(text)
		assert.GreaterOrEqual(t, current, previous)
		previous = current
	}
	assert.Equal(t, 4, previous)
}

func TestNLPFeatures(t *testing.T) {
	features := nlpFeatures(
		"Invoice price update",
		"Contact bob@corp.example or call 5551234567890 today. See http://example.com, price is $20 dollars.",
	)

	assert.Equal(t, 1.0, features["email_count"])
	assert.Equal(t, 1.0, features["phone_count"])
	assert.Equal(t, 1.0, features["url_count"])
	assert.Equal(t, 4.0, features["money_mentions"]) // $, dollar, price x2
	assert.Greater(t, features["vocabulary_richness"], 0.0)
	assert.LessOrEqual(t, features["vocabulary_richness"], 1.0)
}

func TestExtendedFeaturesDisabled(t *testing.T) {
	extractor := NewFeatureExtractor(&fakeEmailRepo{}, nil, zap.NewNop(), false, time.Hour)
	email := sampleEmail()
	email.Body = "good and great and wonderful news with http link"

	features := extractor.Extract(context.Background(), email)

	assert.Equal(t, 0.0, features["sentiment_score"])
	_, hasExtended := features["url_count"]
	assert.False(t, hasExtended)

	// Canonical features are still all present.
	for _, name := range CanonicalFeatures {
		_, ok := features[name]
		assert.True(t, ok, "missing canonical feature %s", name)
	}
}
