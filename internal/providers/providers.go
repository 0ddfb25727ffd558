// Package providers implements the external advisory data sources.
//
// Each provider returns a localized text snippet and never fails outright:
// transport errors and timeouts are rendered as a localized apology string so
// that one failing source cannot abort a composite advisory.
package providers

import (
	"context"
	"time"

	"github.com/gramvikas/kisha/internal/models"
)

// DefaultTimeout bounds each provider fetch.
const DefaultTimeout = 10 * time.Second

// Provider supplies one category of location-based advisory content.
type Provider interface {
	// Fetch returns a localized snippet for the given coordinates and crop.
	// Failures are rendered into the returned text rather than surfaced.
	Fetch(ctx context.Context, lat, lon float64, crop string, lang models.Language) string
}

// MarketProvider supplies crop market prices; it is keyed by crop rather
// than location.
type MarketProvider interface {
	// Price returns a localized market price snippet for the crop.
	Price(ctx context.Context, crop string, lang models.Language) string
}

// pick returns the Hindi or English variant for the language.
func pick(lang models.Language, hi, en string) string {
	if lang == models.LanguageEnglish {
		return en
	}
	return hi
}
