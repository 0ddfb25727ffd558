package flow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gramvikas/kisha/internal/models"
)

// aggregate fans out to the weather, soil, and vegetation providers and
// composes their snippets into one advisory. The three calls are independent
// and share no mutable state, so they run concurrently; a provider that fails
// contributes its own localized error snippet and never aborts the composite.
func (e *Engine) aggregate(ctx context.Context, lat, lon float64, problem string, lang models.Language) string {
	var weather, soil, vegetation string

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		weather = e.deps.Weather.Fetch(ctx, lat, lon, AdvisoryCrop, lang)
	}()
	go func() {
		defer wg.Done()
		soil = e.deps.Soil.Fetch(ctx, lat, lon, AdvisoryCrop, lang)
	}()
	go func() {
		defer wg.Done()
		vegetation = e.deps.Vegetation.Fetch(ctx, lat, lon, AdvisoryCrop, lang)
	}()
	wg.Wait()

	slog.Debug("Engine.aggregate: composite assembled", "lat", lat, "lon", lon, "lang", lang)
	return compositeText(lang, problem, weather, soil, vegetation)
}
