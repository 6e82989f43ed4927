package core

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

var urgencyKeywords = []string{
	"urgent", "asap", "immediate", "emergency", "critical",
	"deadline", "rush", "priority", "important", "action required",
}

var spamKeywords = []string{
	"free", "win", "winner", "congratulations", "prize",
	"money", "cash", "loan", "credit", "debt", "viagra",
	"pharmacy", "casino", "gambling", "lottery",
}

var positiveWords = []string{"good", "great", "excellent", "amazing", "wonderful", "fantastic"}
var negativeWords = []string{"bad", "terrible", "awful", "horrible", "disappointing", "frustrated"}

const senderFrequencyWindow = 30 * 24 * time.Hour

// FeatureExtractor turns a raw email into a fixed-schema numeric feature
// vector. Failures of the optional collaborators (historical store, signal
// cache) degrade individual features to 0 instead of failing the vector.
type FeatureExtractor struct {
	emails     EmailRepository
	cache      SignalCache
	logger     *zap.Logger
	nlpEnabled bool
	cacheTTL   time.Duration
}

// NewFeatureExtractor creates a feature extractor. cache may be nil, in
// which case sentiment is recomputed on every call.
func NewFeatureExtractor(
	emails EmailRepository,
	cache SignalCache,
	logger *zap.Logger,
	nlpEnabled bool,
	cacheTTL time.Duration,
) *FeatureExtractor {
	return &FeatureExtractor{
		emails:     emails,
		cache:      cache,
		logger:     logger,
		nlpEnabled: nlpEnabled,
		cacheTTL:   cacheTTL,
	}
}

// Extract computes the canonical features for an email, plus the extended
// NLP features when that capability is enabled.
func (fe *FeatureExtractor) Extract(ctx context.Context, email *EmailRecord) FeatureVector {
	features := make(FeatureVector, len(CanonicalFeatures)+5)

	// Temporal features. Weekday is Monday-based to keep day_of_week in
	// step with the trained models' historical encoding.
	features["hour_of_day"] = float64(email.ReceivedAt.Hour())
	features["day_of_week"] = float64((int(email.ReceivedAt.Weekday()) + 6) % 7)
	features["month"] = float64(int(email.ReceivedAt.Month()))

	features["email_length"] = float64(len(email.Body))
	features["subject_length"] = float64(len(email.Subject))
	features["recipient_count"] = float64(len(email.Recipients))
	features["attachment_count"] = float64(len(email.Attachments))
	if strings.Contains(strings.ToLower(email.Body), "http") {
		features["has_links"] = 1
	} else {
		features["has_links"] = 0
	}

	features["sender_frequency"] = float64(fe.senderFrequency(ctx, email.Sender))
	features["urgency_keywords"] = float64(countUrgencyKeywords(email.Subject + " " + email.Body))
	features["sentiment_score"] = fe.sentimentScore(ctx, email.Body)
	features["readability_score"] = readabilityScore(email.Body)
	features["spam_score"] = spamScore(email)

	if fe.nlpEnabled {
		for name, value := range nlpFeatures(email.Subject, email.Body) {
			features[name] = value
		}
	}

	return features
}

// senderFrequency counts emails from the sender over the trailing 30 days,
// degrading to 0 when the store is unreachable.
func (fe *FeatureExtractor) senderFrequency(ctx context.Context, sender string) int {
	if fe.emails == nil {
		return 0
	}
	count, err := fe.emails.SenderFrequency(ctx, sender, senderFrequencyWindow)
	if err != nil {
		fe.logger.Error("Failed to get sender frequency",
			zap.String("sender", sender),
			zap.Error(err))
		return 0
	}
	return count
}

// sentimentScore is a bag-of-words polarity, memoized by content hash.
func (fe *FeatureExtractor) sentimentScore(ctx context.Context, text string) float64 {
	if !fe.nlpEnabled {
		return 0.0
	}

	key := sentimentCacheKey(text)
	if fe.cache != nil {
		if cached, ok := fe.cache.Get(ctx, key); ok {
			if score, err := strconv.ParseFloat(cached, 64); err == nil {
				return score
			}
		}
	}

	lower := strings.ToLower(text)
	positive := 0
	for _, word := range positiveWords {
		if strings.Contains(lower, word) {
			positive++
		}
	}
	negative := 0
	for _, word := range negativeWords {
		if strings.Contains(lower, word) {
			negative++
		}
	}

	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}
	score := float64(positive-negative) / float64(words)

	if fe.cache != nil {
		if err := fe.cache.Set(ctx, key, strconv.FormatFloat(score, 'g', -1, 64), fe.cacheTTL); err != nil {
			fe.logger.Debug("Failed to cache sentiment score", zap.Error(err))
		}
	}
	return score
}

func sentimentCacheKey(text string) string {
	sum := sha1.Sum([]byte(text))
	return "sentiment:" + hex.EncodeToString(sum[:])
}

// countUrgencyKeywords counts case-insensitive keyword occurrences. Each
// keyword contributes at most 1, so the count is monotonic in the text.
func countUrgencyKeywords(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, keyword := range urgencyKeywords {
		if strings.Contains(lower, keyword) {
			count++
		}
	}
	return count
}

// readabilityScore is a simplified Flesch Reading Ease, clamped to [0,100]
// and normalized to [0,1]. Zero sentences or zero words yields 0.
func readabilityScore(text string) float64 {
	if text == "" {
		return 0.0
	}

	sentences := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	tokens := strings.Fields(text)
	words := len(tokens)
	if sentences == 0 || words == 0 {
		return 0.0
	}

	syllables := 0
	for _, word := range tokens {
		syllables += countSyllables(word)
	}

	score := 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(float64(syllables)/float64(words))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score / 100
}

// countSyllables approximates syllables as transitions into a vowel group,
// minus one for a trailing 'e', with a floor of one per word.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	previousWasVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !previousWasVowel {
			count++
		}
		previousWasVowel = isVowel
	}
	if strings.HasSuffix(word, "e") {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

// spamScore is the fraction of triggered spam indicators over all checks:
// one check per spam keyword, plus capitalization, sender pattern, and
// exclamation checks.
func spamScore(email *EmailRecord) float64 {
	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.Body)
	sender := strings.ToLower(email.Sender)

	triggered := 0
	total := 0

	for _, keyword := range spamKeywords {
		total++
		if strings.Contains(subject, keyword) || strings.Contains(body, keyword) {
			triggered++
		}
	}

	total++
	upper := 0
	for _, r := range email.Subject {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if float64(upper) > float64(len([]rune(email.Subject)))*0.5 {
		triggered++
	}

	total++
	localPart := strings.SplitN(sender, "@", 2)[0]
	if len(localPart) > 10 && strings.ContainsAny(localPart, "0123456789") {
		triggered++
	}

	total++
	if strings.Count(email.Subject, "!")+strings.Count(email.Body, "!") > 3 {
		triggered++
	}

	return float64(triggered) / float64(total)
}

// nlpFeatures derives the extended entity-count features from the text.
func nlpFeatures(subject, body string) map[string]float64 {
	text := subject + " " + body
	lower := strings.ToLower(text)

	phoneCount := 0
	for _, token := range strings.Fields(text) {
		stripped := strings.NewReplacer("-", "", "(", "", ")", "").Replace(token)
		if stripped != "" && len(token) >= 10 && isDigits(stripped) {
			phoneCount++
		}
	}

	tokens := strings.Fields(lower)
	unique := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		unique[token] = struct{}{}
	}
	richness := 0.0
	if len(tokens) > 0 {
		richness = float64(len(unique)) / float64(len(tokens))
	}

	return map[string]float64{
		"email_count":         float64(strings.Count(text, "@")),
		"phone_count":         float64(phoneCount),
		"url_count":           float64(strings.Count(lower, "http")),
		"money_mentions":      float64(strings.Count(lower, "$") + strings.Count(lower, "dollar") + strings.Count(lower, "price")),
		"vocabulary_richness": richness,
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
