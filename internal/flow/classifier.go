package flow

import (
	"log/slog"
	"strings"

	"github.com/gramvikas/kisha/internal/models"
)

// Classifier maps free-text follow-up queries to intents. Implementations
// must return matched intents in fixed priority order; the engine applies
// eligibility rules (such as the market gating on an active advisory) and
// picks the first eligible intent.
type Classifier interface {
	Classify(text string, lang models.Language) []models.Intent
}

// intentKeywords holds the Hindi and English keyword lists for one intent.
type intentKeywords struct {
	intent models.Intent
	hi     []string
	en     []string
}

// KeywordClassifier matches case-insensitive substrings against fixed
// per-intent keyword lists. Checks run in priority order: market, weather,
// soil, thanks.
type KeywordClassifier struct {
	keywords []intentKeywords
}

// NewKeywordClassifier creates the classifier with the standing keyword lists.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		keywords: []intentKeywords{
			{intent: models.IntentMarket, hi: []string{"बाजार", "कीमत"}, en: []string{"price", "market"}},
			{intent: models.IntentWeather, hi: []string{"मौसम", "तापमान"}, en: []string{"weather", "temperature"}},
			{intent: models.IntentSoil, hi: []string{"मिट्टी"}, en: []string{"soil", "ph"}},
			{intent: models.IntentThanks, hi: []string{"धन्यवाद"}, en: []string{"thanks"}},
		},
	}
}

// Classify returns every matched intent in priority order. Farmers mix Hindi
// and English freely, so both keyword lists are consulted regardless of the
// session language.
func (c *KeywordClassifier) Classify(text string, lang models.Language) []models.Intent {
	query := strings.ToLower(text)
	var matches []models.Intent
	for _, kw := range c.keywords {
		if containsAny(query, kw.hi) || containsAny(query, kw.en) {
			matches = append(matches, kw.intent)
		}
	}
	slog.Debug("KeywordClassifier Classify", "lang", lang, "matches", len(matches))
	return matches
}

func containsAny(query string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(query, kw) {
			return true
		}
	}
	return false
}
