package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gramvikas/kisha/internal/models"
)

// StaticMarketProvider serves mandi prices from a fixed table.
//
// The OGD India platform requires registration, an API key, and structured
// per-state queries; this provider keeps the OGD response shape while that
// integration is pending.
type StaticMarketProvider struct {
	prices map[string]int
}

// NewStaticMarketProvider creates a market provider with the standing price table.
func NewStaticMarketProvider() *StaticMarketProvider {
	return &StaticMarketProvider{
		prices: map[string]int{
			"wheat": 2200,
			"rice":  4000,
			"corn":  1800,
		},
	}
}

var hindiCropNames = map[string]string{
	"wheat": "गेहूं",
	"rice":  "धान",
	"corn":  "मक्का",
}

// Price returns the localized market price snippet for the crop, in rupees
// per quintal.
func (p *StaticMarketProvider) Price(ctx context.Context, crop string, lang models.Language) string {
	price, ok := p.prices[strings.ToLower(crop)]
	if !ok {
		slog.Debug("StaticMarketProvider Price unavailable", "crop", crop)
		return pick(lang,
			"बाजार भाव नहीं मिल सका। (OGD API setup pending)",
			"Could not retrieve market price. (OGD API setup pending)")
	}

	if lang == models.LanguageEnglish {
		return fmt.Sprintf("The current market price for **%s** is ₹%d per quintal (OGD API setup pending).", crop, price)
	}
	hindiCrop, ok := hindiCropNames[strings.ToLower(crop)]
	if !ok {
		hindiCrop = crop
	}
	return fmt.Sprintf("बाजार में आज **%s** का भाव ₹%d प्रति क्विंटल है (OGD API setup pending).", hindiCrop, price)
}
