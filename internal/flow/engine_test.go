package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gramvikas/kisha/internal/models"
	"github.com/gramvikas/kisha/internal/session"
	"github.com/gramvikas/kisha/internal/store"
)

// Test doubles shared across the flow package tests.

type staticProvider struct {
	text string
}

func (p staticProvider) Fetch(ctx context.Context, lat, lon float64, crop string, lang models.Language) string {
	return p.text
}

type staticMarket struct {
	text string
}

func (p staticMarket) Price(ctx context.Context, crop string, lang models.Language) string {
	return p.text
}

type fakeGeocoder struct {
	lat, lon float64
	ok       bool
	err      error
}

func (g fakeGeocoder) Resolve(ctx context.Context, address string) (float64, float64, bool, error) {
	return g.lat, g.lon, g.ok, g.err
}

type fakeRenderer struct {
	url string
	err error
}

func (r fakeRenderer) Render(ctx context.Context, text string, lang models.Language, sessionID string) (string, error) {
	return r.url, r.err
}

func newTestEngine(t *testing.T, geocoder fakeGeocoder) (*Engine, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	sessions := session.NewInMemoryManager()
	t.Cleanup(func() { sessions.Stop() })

	engine := NewEngine(Dependencies{
		Store:      st,
		Sessions:   sessions,
		Geocoder:   geocoder,
		Weather:    staticProvider{text: "sunny and 28C"},
		Soil:       staticProvider{text: "pH 6.5, organic carbon 1.2%"},
		Vegetation: staticProvider{text: "NDVI normal"},
		Market:     staticMarket{text: "wheat at 2200 per quintal"},
		Speech:     fakeRenderer{url: "/audio/response_test.mp3"},
	})
	return engine, st
}

func TestStartSessionReturnsWelcome(t *testing.T) {
	engine, _ := newTestEngine(t, fakeGeocoder{ok: true})
	ctx := context.Background()

	reply, err := engine.StartSession(ctx, "s1", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if !strings.Contains(reply.Text, "Kisha") {
		t.Errorf("Expected welcome text to mention Kisha, got %q", reply.Text)
	}
	if reply.NextStep != models.StepAwaitName {
		t.Errorf("Expected next step %d, got %d", models.StepAwaitName, reply.NextStep)
	}
	if reply.AudioURL == "" {
		t.Error("Expected an audio reference for the welcome message")
	}
}

func TestStartSessionIsIdempotent(t *testing.T) {
	engine, st := newTestEngine(t, fakeGeocoder{lat: 18.52, lon: 73.85, ok: true})
	ctx := context.Background()

	if _, err := engine.StartSession(ctx, "s1", models.LanguageEnglish); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if _, err := engine.HandleTurn(ctx, "s1", "Ravi, Pune"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}

	// Restarting resets the step to 1 without duplicating the farmer.
	reply, err := engine.StartSession(ctx, "s1", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("Second StartSession failed: %v", err)
	}
	if reply.NextStep != models.StepAwaitName {
		t.Errorf("Expected restart at step %d, got %d", models.StepAwaitName, reply.NextStep)
	}
	if _, err := engine.HandleTurn(ctx, "s1", "Ravi, Pune"); err != nil {
		t.Fatalf("HandleTurn after restart failed: %v", err)
	}

	first, err := st.FindFarmerByNameAddress("Ravi", "Pune")
	if err != nil || first == nil {
		t.Fatalf("Expected farmer record, got %v, err %v", first, err)
	}
}

func TestHappyPathConversation(t *testing.T) {
	engine, st := newTestEngine(t, fakeGeocoder{lat: 18.52, lon: 73.85, ok: true})
	ctx := context.Background()

	if _, err := engine.StartSession(ctx, "s1", models.LanguageEnglish); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	reply, err := engine.HandleTurn(ctx, "s1", "Ravi, Pune")
	if err != nil {
		t.Fatalf("Name turn failed: %v", err)
	}
	if reply.NextStep != models.StepAwaitProblem {
		t.Errorf("Expected step %d after name capture, got %d", models.StepAwaitProblem, reply.NextStep)
	}
	farmer, err := st.FindFarmerByNameAddress("Ravi", "Pune")
	if err != nil || farmer == nil {
		t.Fatalf("Expected new farmer persisted, got %v, err %v", farmer, err)
	}

	reply, err = engine.HandleTurn(ctx, "s1", "my wheat leaves are yellow")
	if err != nil {
		t.Fatalf("Problem turn failed: %v", err)
	}
	if reply.NextStep != models.StepActiveChat {
		t.Errorf("Expected step %d after advisory, got %d", models.StepActiveChat, reply.NextStep)
	}
	for _, section := range []string{"Problem:", "Weather Info:", "Soil Advice:", "Crop Health Report:"} {
		if !strings.Contains(reply.Text, section) {
			t.Errorf("Composite advisory missing section %q: %q", section, reply.Text)
		}
	}

	farmer, err = st.FindFarmerByNameAddress("Ravi", "Pune")
	if err != nil || farmer == nil {
		t.Fatalf("Expected farmer after advisory, got err %v", err)
	}
	if !farmer.HasCoordinates() {
		t.Error("Expected farmer coordinates to be persisted")
	}
	if farmer.LastProblemSummary != "my wheat leaves are yellow" {
		t.Errorf("Expected problem summary persisted, got %q", farmer.LastProblemSummary)
	}

	reply, err = engine.HandleTurn(ctx, "s1", "market price")
	if err != nil {
		t.Fatalf("Market turn failed: %v", err)
	}
	if !strings.Contains(reply.Text, "2200") {
		t.Errorf("Expected market price reply, got %q", reply.Text)
	}
	if reply.NextStep != models.StepActiveChat {
		t.Errorf("Expected step to stay at %d, got %d", models.StepActiveChat, reply.NextStep)
	}
}

func TestGeocodingFailureRevertsToAddressEntry(t *testing.T) {
	engine, st := newTestEngine(t, fakeGeocoder{ok: false})
	ctx := context.Background()

	if _, err := engine.StartSession(ctx, "s1", models.LanguageEnglish); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if _, err := engine.HandleTurn(ctx, "s1", "Ravi, Xyzzzz123"); err != nil {
		t.Fatalf("Name turn failed: %v", err)
	}

	reply, err := engine.HandleTurn(ctx, "s1", "my crop is failing")
	if err != nil {
		t.Fatalf("Problem turn failed: %v", err)
	}
	if reply.NextStep != models.StepAwaitName {
		t.Errorf("Expected reversion to step %d, got %d", models.StepAwaitName, reply.NextStep)
	}
	if !strings.Contains(reply.Text, "clearer address") {
		t.Errorf("Expected clarification prompt, got %q", reply.Text)
	}

	farmer, err := st.FindFarmerByNameAddress("Ravi", "Xyzzzz123")
	if err != nil || farmer == nil {
		t.Fatalf("Expected farmer record, got err %v", err)
	}
	if farmer.HasCoordinates() {
		t.Error("Expected coordinates to remain unset after geocoding failure")
	}
}

func TestGeocoderTransportErrorFollowsFailurePath(t *testing.T) {
	engine, _ := newTestEngine(t, fakeGeocoder{err: errors.New("connection refused")})
	ctx := context.Background()

	if _, err := engine.StartSession(ctx, "s1", models.LanguageEnglish); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if _, err := engine.HandleTurn(ctx, "s1", "Ravi, Pune"); err != nil {
		t.Fatalf("Name turn failed: %v", err)
	}

	reply, err := engine.HandleTurn(ctx, "s1", "leaves turning yellow")
	if err != nil {
		t.Fatalf("Problem turn failed: %v", err)
	}
	if reply.NextStep != models.StepAwaitName {
		t.Errorf("Expected reversion to step %d, got %d", models.StepAwaitName, reply.NextStep)
	}
}

func TestReturningFarmerSkipsProblemEntry(t *testing.T) {
	engine, st := newTestEngine(t, fakeGeocoder{lat: 18.52, lon: 73.85, ok: true})
	ctx := context.Background()

	lat, lon := 18.52, 73.85
	if _, err := st.UpsertFarmer(models.Farmer{
		Name:               "Ravi",
		Address:            "Pune",
		Language:           models.LanguageEnglish,
		Latitude:           &lat,
		Longitude:          &lon,
		LastProblemSummary: "yellow leaves",
	}); err != nil {
		t.Fatalf("Seeding farmer failed: %v", err)
	}

	if _, err := engine.StartSession(ctx, "s2", models.LanguageEnglish); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	reply, err := engine.HandleTurn(ctx, "s2", "Ravi, Pune")
	if err != nil {
		t.Fatalf("Name turn failed: %v", err)
	}
	if reply.NextStep != models.StepAdvice {
		t.Errorf("Expected step %d for returning farmer, got %d", models.StepAdvice, reply.NextStep)
	}
	if !strings.Contains(reply.Text, "yellow leaves") {
		t.Errorf("Expected prior problem recap, got %q", reply.Text)
	}

	// Follow-up routes directly without re-entering the problem.
	reply, err = engine.HandleTurn(ctx, "s2", "what is the weather")
	if err != nil {
		t.Fatalf("Follow-up turn failed: %v", err)
	}
	if !strings.Contains(reply.Text, "sunny") {
		t.Errorf("Expected weather snippet, got %q", reply.Text)
	}
}

func TestReturningFarmerWithoutHistoryAsksForProblem(t *testing.T) {
	engine, st := newTestEngine(t, fakeGeocoder{lat: 18.52, lon: 73.85, ok: true})
	ctx := context.Background()

	if _, err := st.UpsertFarmer(models.Farmer{Name: "Sita", Address: "Nashik", Language: models.LanguageEnglish}); err != nil {
		t.Fatalf("Seeding farmer failed: %v", err)
	}

	if _, err := engine.StartSession(ctx, "s3", models.LanguageEnglish); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	reply, err := engine.HandleTurn(ctx, "s3", "Sita, Nashik")
	if err != nil {
		t.Fatalf("Name turn failed: %v", err)
	}
	if reply.NextStep != models.StepAwaitProblem {
		t.Errorf("Expected step %d, got %d", models.StepAwaitProblem, reply.NextStep)
	}
	if !strings.Contains(reply.Text, "Welcome back") {
		t.Errorf("Expected returning-user greeting, got %q", reply.Text)
	}
}

func TestFollowUpWithoutCoordinatesReverts(t *testing.T) {
	engine, st := newTestEngine(t, fakeGeocoder{ok: true})
	ctx := context.Background()

	if _, err := st.UpsertFarmer(models.Farmer{
		Name:               "Ravi",
		Address:            "Pune",
		Language:           models.LanguageEnglish,
		LastProblemSummary: "old problem",
	}); err != nil {
		t.Fatalf("Seeding farmer failed: %v", err)
	}

	if _, err := engine.StartSession(ctx, "s4", models.LanguageEnglish); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	// Recognized with history, lands at step 3 but has no coordinates.
	if _, err := engine.HandleTurn(ctx, "s4", "Ravi, Pune"); err != nil {
		t.Fatalf("Name turn failed: %v", err)
	}

	reply, err := engine.HandleTurn(ctx, "s4", "weather please")
	if err != nil {
		t.Fatalf("Follow-up turn failed: %v", err)
	}
	if reply.NextStep != models.StepAwaitName {
		t.Errorf("Expected reversion to step %d, got %d", models.StepAwaitName, reply.NextStep)
	}
}

func TestMissingIdentityAtProblemStepReverts(t *testing.T) {
	engine, _ := newTestEngine(t, fakeGeocoder{ok: true})
	ctx := context.Background()

	if _, err := engine.StartSession(ctx, "s7", models.LanguageEnglish); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	// Point the session at an identity that was never persisted.
	if _, err := engine.deps.Sessions.Update(ctx, "s7", func(s *models.Session) error {
		s.Step = models.StepAwaitProblem
		s.FarmerID = "f_missing"
		return nil
	}); err != nil {
		t.Fatalf("Session fixup failed: %v", err)
	}

	reply, err := engine.HandleTurn(ctx, "s7", "my crop is failing")
	if err != nil {
		t.Fatalf("Problem turn failed: %v", err)
	}
	if reply.NextStep != models.StepAwaitName {
		t.Errorf("Expected reversion to step %d, got %d", models.StepAwaitName, reply.NextStep)
	}
	if !strings.Contains(reply.Text, "Internal error") {
		t.Errorf("Expected internal error message, got %q", reply.Text)
	}
}

func TestTurnBeforeStartIsRejected(t *testing.T) {
	engine, _ := newTestEngine(t, fakeGeocoder{ok: true})

	_, err := engine.HandleTurn(context.Background(), "never-started", "hello")
	if !errors.Is(err, models.ErrInvalidStep) {
		t.Errorf("Expected ErrInvalidStep, got %v", err)
	}
}

func TestEmptyInputIsRejectedWithoutStateChange(t *testing.T) {
	engine, _ := newTestEngine(t, fakeGeocoder{ok: true})
	ctx := context.Background()

	if _, err := engine.StartSession(ctx, "s5", models.LanguageEnglish); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if _, err := engine.HandleTurn(ctx, "s5", "   "); !errors.Is(err, models.ErrMissingQuery) {
		t.Errorf("Expected ErrMissingQuery, got %v", err)
	}

	reply, err := engine.HandleTurn(ctx, "s5", "Ravi, Pune")
	if err != nil {
		t.Fatalf("Valid turn after rejection failed: %v", err)
	}
	if reply.NextStep != models.StepAwaitProblem {
		t.Errorf("Expected step %d, got %d", models.StepAwaitProblem, reply.NextStep)
	}
}

func TestSpeechFailureDegradesToTextOnly(t *testing.T) {
	st := store.NewInMemoryStore()
	sessions := session.NewInMemoryManager()
	t.Cleanup(func() { sessions.Stop() })

	engine := NewEngine(Dependencies{
		Store:      st,
		Sessions:   sessions,
		Geocoder:   fakeGeocoder{ok: true},
		Weather:    staticProvider{text: "w"},
		Soil:       staticProvider{text: "s"},
		Vegetation: staticProvider{text: "v"},
		Market:     staticMarket{text: "m"},
		Speech:     fakeRenderer{err: errors.New("tts unavailable")},
	})

	reply, err := engine.StartSession(context.Background(), "s6", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if reply.Text == "" {
		t.Error("Expected text despite speech failure")
	}
	if reply.AudioURL != "" {
		t.Errorf("Expected empty audio reference, got %q", reply.AudioURL)
	}
}

func TestParseNameAddress(t *testing.T) {
	cases := []struct {
		input   string
		name    string
		address string
	}{
		{"Ravi, Pune", "Ravi", "Pune"},
		{"ravi kumar, pune maharashtra", "Ravi Kumar", "Pune Maharashtra"},
		{"Ravi Pune", "Ravi", "Pune"},
		{"Ravi", "Ravi", "Unknown Address"},
		{"  ravi , pune ", "Ravi", "Pune"},
		{"Ravi,", "Ravi", "Unknown Address"},
		{",Pune", "Pune", "Unknown Address"},
	}
	for _, tc := range cases {
		name, address := parseNameAddress(tc.input)
		if name != tc.name || address != tc.address {
			t.Errorf("parseNameAddress(%q) = (%q, %q), want (%q, %q)", tc.input, name, address, tc.name, tc.address)
		}
	}
}
