package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gramvikas/kisha/internal/models"
)

// DefaultWeatherBaseURL is the public Open-Meteo forecast endpoint. Open-Meteo
// requires no API key.
const DefaultWeatherBaseURL = "https://api.open-meteo.com"

// WeatherProvider fetches current conditions from the Open-Meteo API.
type WeatherProvider struct {
	client *resty.Client
}

// NewWeatherProvider creates a weather provider. An empty baseURL selects the
// public Open-Meteo endpoint.
func NewWeatherProvider(baseURL string, timeout time.Duration) *WeatherProvider {
	if baseURL == "" {
		baseURL = DefaultWeatherBaseURL
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &WeatherProvider{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

type openMeteoResponse struct {
	Current struct {
		Temperature   *float64 `json:"temperature_2m"`
		WindSpeed     *float64 `json:"wind_speed_10m"`
		Precipitation *float64 `json:"precipitation"`
	} `json:"current"`
}

// Fetch returns the current temperature, wind speed, and precipitation for
// the coordinates, with an irrigation planning hint.
func (p *WeatherProvider) Fetch(ctx context.Context, lat, lon float64, crop string, lang models.Language) string {
	var out openMeteoResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":      fmt.Sprintf("%f", lat),
			"longitude":     fmt.Sprintf("%f", lon),
			"current":       "temperature_2m,wind_speed_10m,precipitation",
			"forecast_days": "1",
		}).
		SetResult(&out).
		Get("/v1/forecast")
	if err != nil || resp.IsError() {
		slog.Error("WeatherProvider Fetch failed", "error", err, "status", resp.StatusCode(), "lat", lat, "lon", lon)
		return pick(lang,
			"मौसम की जानकारी नहीं मिल सकी। बाहरी सेवा में त्रुटि।",
			"Could not retrieve weather information. External service error.")
	}

	temp := formatMeasure(out.Current.Temperature)
	wind := formatMeasure(out.Current.WindSpeed)
	rain := formatMeasure(out.Current.Precipitation)

	slog.Debug("WeatherProvider Fetch succeeded", "lat", lat, "lon", lon, "temp", temp)
	if lang == models.LanguageEnglish {
		return fmt.Sprintf("Current temperature at your farm (%.2f, %.2f) is %s°C. Wind speed is %s km/h, and precipitation is %s mm. Plan irrigation accordingly.", lat, lon, temp, wind, rain)
	}
	return fmt.Sprintf("आपके खेत (%.2f, %.2f) पर आज का तापमान %s डिग्री सेल्सियस है। हवा की गति %s km/h है और वर्षा %s mm है। सिंचाई की योजना इसी के अनुसार बनाएं।", lat, lon, temp, wind, rain)
}

// formatMeasure renders a possibly-missing measurement the way the upstream
// dashboards do.
func formatMeasure(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%g", *v)
}
