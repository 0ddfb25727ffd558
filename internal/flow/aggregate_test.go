package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/gramvikas/kisha/internal/models"
	"github.com/gramvikas/kisha/internal/session"
	"github.com/gramvikas/kisha/internal/store"
)

func TestAggregateIncludesAllSections(t *testing.T) {
	engine, _ := newTestEngine(t, fakeGeocoder{ok: true})

	text := engine.aggregate(context.Background(), 18.52, 73.85, "yellow leaves", models.LanguageEnglish)
	for _, want := range []string{"yellow leaves", "sunny and 28C", "pH 6.5", "NDVI normal", "market price"} {
		if !strings.Contains(text, want) {
			t.Errorf("Aggregated advisory missing %q: %q", want, text)
		}
	}
}

func TestAggregateToleratesProviderApology(t *testing.T) {
	st := store.NewInMemoryStore()
	sessions := session.NewInMemoryManager()
	t.Cleanup(func() { sessions.Stop() })

	engine := NewEngine(Dependencies{
		Store:      st,
		Sessions:   sessions,
		Geocoder:   fakeGeocoder{ok: true},
		Weather:    staticProvider{text: "Sorry, weather data could not be fetched."},
		Soil:       staticProvider{text: "soil fine"},
		Vegetation: staticProvider{text: "crop fine"},
		Market:     staticMarket{text: "m"},
	})

	text := engine.aggregate(context.Background(), 18.52, 73.85, "pests", models.LanguageEnglish)
	if !strings.Contains(text, "Sorry, weather data could not be fetched.") {
		t.Errorf("Expected degraded weather section to be included, got %q", text)
	}
	if !strings.Contains(text, "soil fine") || !strings.Contains(text, "crop fine") {
		t.Errorf("Expected healthy sections alongside the failed one, got %q", text)
	}
}
