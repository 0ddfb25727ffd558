package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gramvikas/kisha/internal/models"
)

// DefaultSoilBaseURL is the ISRIC SoilGrids properties endpoint.
const DefaultSoilBaseURL = "https://rest.isric.org"

// SoilProvider fetches soil pH and organic carbon from ISRIC SoilGrids.
type SoilProvider struct {
	client *resty.Client
}

// NewSoilProvider creates a soil provider. An empty baseURL selects the
// public SoilGrids endpoint.
func NewSoilProvider(baseURL string, timeout time.Duration) *SoilProvider {
	if baseURL == "" {
		baseURL = DefaultSoilBaseURL
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &SoilProvider{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

type soilGridsResponse struct {
	Properties []struct {
		Property struct {
			ID string `json:"id"`
		} `json:"property"`
		Intervals []struct {
			Values struct {
				Mean *float64 `json:"mean"`
			} `json:"values"`
		} `json:"intervals"`
	} `json:"properties"`
}

// Fetch returns soil pH and organic carbon at 0-5cm depth for the coordinates.
// SoilGrids reports scaled integers: pH is mean/10, organic carbon mean/100.
func (p *SoilProvider) Fetch(ctx context.Context, lat, lon float64, crop string, lang models.Language) string {
	var out soilGridsResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lon":        fmt.Sprintf("%f", lon),
			"lat":        fmt.Sprintf("%f", lat),
			"properties": "ph_h2o,ocd",
			"depths":     "0-5cm",
		}).
		SetResult(&out).
		Get("/soilgrids/v2.0/properties/query")
	if err != nil || resp.IsError() {
		slog.Error("SoilProvider Fetch failed", "error", err, "status", resp.StatusCode(), "lat", lat, "lon", lon)
		return pick(lang,
			"मिट्टी की जानकारी नहीं मिल सकी। बाहरी सेवा में त्रुटि।",
			"Could not retrieve soil data. External service error.")
	}

	ph := "N/A"
	ocd := "N/A"
	for _, prop := range out.Properties {
		if len(prop.Intervals) == 0 || prop.Intervals[0].Values.Mean == nil {
			continue
		}
		mean := *prop.Intervals[0].Values.Mean
		switch prop.Property.ID {
		case "ph_h2o":
			ph = fmt.Sprintf("%.1f", mean/10)
		case "ocd":
			ocd = fmt.Sprintf("%.2f%%", mean/100)
		}
	}

	slog.Debug("SoilProvider Fetch succeeded", "lat", lat, "lon", lon, "ph", ph, "ocd", ocd)
	if lang == models.LanguageEnglish {
		return fmt.Sprintf("Based on ISRIC data, your soil pH is approximately **%s** and Organic Carbon is approximately **%s**. This information is vital for your crop.", ph, ocd)
	}
	return fmt.Sprintf("ISRIC डेटा के अनुसार, आपकी मिट्टी का pH स्तर लगभग **%s** है और जैविक कार्बन (Organic Carbon) लगभग **%s** है। यह जानकारी आपकी फसल के लिए बहुत महत्वपूर्ण है।", ph, ocd)
}
