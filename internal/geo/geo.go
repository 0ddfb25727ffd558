// Package geo resolves free-text addresses into coordinates.
//
// The production implementation queries the OpenStreetMap Nominatim service.
package geo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Default Nominatim configuration.
const (
	// DefaultBaseURL is the public Nominatim endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// DefaultCountryCodes biases results toward India, matching the service's audience.
	DefaultCountryCodes = "in"
	// DefaultTimeout bounds each geocoding call.
	DefaultTimeout = 10 * time.Second
	// userAgent identifies the application per the Nominatim usage policy.
	userAgent = "GramVikasApp_Kisha"
)

// Geocoder resolves an address to coordinates. ok is false when the address
// cannot be resolved; err is reserved for transport-level failures.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (lat, lon float64, ok bool, err error)
}

// Opts holds configuration for the Nominatim geocoder.
type Opts struct {
	BaseURL      string
	CountryCodes string
	Timeout      time.Duration
}

// Option configures geocoder construction.
type Option func(*Opts)

// WithBaseURL overrides the Nominatim endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithCountryCodes sets the country filter for geocoding queries.
func WithCountryCodes(codes string) Option {
	return func(o *Opts) { o.CountryCodes = codes }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Opts) { o.Timeout = timeout }
}

// NominatimGeocoder implements Geocoder against the Nominatim search API.
type NominatimGeocoder struct {
	client       *resty.Client
	countryCodes string
}

// NewNominatimGeocoder creates a geocoder with the given options.
func NewNominatimGeocoder(opts ...Option) *NominatimGeocoder {
	cfg := Opts{BaseURL: DefaultBaseURL, CountryCodes: DefaultCountryCodes, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent)

	slog.Debug("NominatimGeocoder created", "base_url", cfg.BaseURL, "country_codes", cfg.CountryCodes)
	return &NominatimGeocoder{client: client, countryCodes: cfg.CountryCodes}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve queries Nominatim for the address. An empty result set means the
// address is unknown (ok=false, err=nil).
func (g *NominatimGeocoder) Resolve(ctx context.Context, address string) (float64, float64, bool, error) {
	var results []nominatimResult
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":            address,
			"format":       "json",
			"limit":        "1",
			"countrycodes": g.countryCodes,
		}).
		SetResult(&results).
		Get("/search")
	if err != nil {
		slog.Error("NominatimGeocoder Resolve request failed", "error", err, "address", address)
		return 0, 0, false, fmt.Errorf("geocoding request failed: %w", err)
	}
	if resp.IsError() {
		slog.Error("NominatimGeocoder Resolve bad status", "status", resp.StatusCode(), "address", address)
		return 0, 0, false, fmt.Errorf("geocoding request returned status %d", resp.StatusCode())
	}
	if len(results) == 0 {
		slog.Debug("NominatimGeocoder Resolve no match", "address", address)
		return 0, 0, false, nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		slog.Error("NominatimGeocoder Resolve unparsable coordinates", "lat", results[0].Lat, "lon", results[0].Lon)
		return 0, 0, false, fmt.Errorf("geocoding returned unparsable coordinates")
	}

	slog.Debug("NominatimGeocoder Resolve succeeded", "address", address, "lat", lat, "lon", lon)
	return lat, lon, true, nil
}
