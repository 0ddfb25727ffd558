// Package flow implements the Kisha conversation engine.
//
// The engine owns the per-session state machine: it dispatches each inbound
// turn on the session's current step, decides which external calls to make,
// and produces the next outbound message plus target step. Steps: 0
// uninitialized, 1 awaiting name+address, 2 awaiting problem statement, 3
// transient geocode/aggregate, 4+ active follow-up chat.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gramvikas/kisha/internal/geo"
	"github.com/gramvikas/kisha/internal/models"
	"github.com/gramvikas/kisha/internal/providers"
	"github.com/gramvikas/kisha/internal/session"
	"github.com/gramvikas/kisha/internal/speech"
	"github.com/gramvikas/kisha/internal/store"
)

// Fixed crops. Crop extraction from the problem text is not implemented; the
// advisory pass uses AdvisoryCrop and active-chat follow-ups use FollowUpCrop.
const (
	AdvisoryCrop = "rice"
	FollowUpCrop = "wheat"
)

// Fallbacks when name/address parsing finds nothing usable. Parsing never
// fails outright; a bad address is caught later by the geocoding failure path.
const (
	defaultName    = "Kisan"
	defaultAddress = "Unknown Address"
)

// Dependencies holds everything the conversation engine calls out to.
type Dependencies struct {
	Store      store.Store
	Sessions   session.Manager
	Geocoder   geo.Geocoder
	Weather    providers.Provider
	Soil       providers.Provider
	Vegetation providers.Provider
	Market     providers.MarketProvider
	Speech     speech.Renderer
	Classifier Classifier
}

// Engine drives the conversation state machine.
type Engine struct {
	deps Dependencies
}

// NewEngine creates a conversation engine.
func NewEngine(deps Dependencies) *Engine {
	if deps.Classifier == nil {
		deps.Classifier = NewKeywordClassifier()
	}
	slog.Debug("Creating conversation engine")
	return &Engine{deps: deps}
}

// StartSession creates or resets the session and returns the welcome prompt.
// Re-invoking for the same session restarts at step 1 without unlinking an
// already-recognized farmer.
func (e *Engine) StartSession(ctx context.Context, sessionID string, lang models.Language) (models.TurnReply, error) {
	if sessionID == "" {
		return models.TurnReply{}, models.ErrMissingSessionID
	}
	lang = lang.Normalize()

	sess, err := e.deps.Sessions.Update(ctx, sessionID, func(s *models.Session) error {
		s.Language = lang
		s.Step = models.StepAwaitName
		s.ProblemText = ""
		return nil
	})
	if err != nil {
		return models.TurnReply{}, fmt.Errorf("failed to start session %s: %w", sessionID, err)
	}

	text := welcomeText(lang)
	slog.Info("Engine.StartSession: session started", "sessionID", sessionID, "lang", lang)
	return models.TurnReply{
		Text:     text,
		AudioURL: e.renderAudio(ctx, text, lang, sessionID),
		NextStep: sess.Step,
	}, nil
}

// HandleTurn processes one inbound message for the session, dispatching on
// the session's current step. The session is read-modify-written atomically;
// concurrent turns for one session serialize.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, input string) (models.TurnReply, error) {
	if sessionID == "" {
		return models.TurnReply{}, models.ErrMissingSessionID
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return models.TurnReply{}, models.ErrMissingQuery
	}

	var text string
	sess, err := e.deps.Sessions.Update(ctx, sessionID, func(s *models.Session) error {
		switch {
		case s.Step == models.StepAwaitName:
			text = e.handleNameAddress(ctx, s, input)
			return nil
		case s.Step == models.StepAwaitProblem:
			text = e.handleProblem(ctx, s, input)
			return nil
		case s.Step >= models.StepAdvice:
			text = e.handleFollowUp(ctx, s, input)
			return nil
		default:
			return models.ErrInvalidStep
		}
	})
	if err != nil {
		return models.TurnReply{}, err
	}

	return models.TurnReply{
		Text:     text,
		AudioURL: e.renderAudio(ctx, text, sess.Language, sessionID),
		NextStep: sess.Step,
	}, nil
}

// handleNameAddress parses the name/address input, recognizes returning
// farmers, and persists new ones before leaving step 1.
func (e *Engine) handleNameAddress(ctx context.Context, s *models.Session, input string) string {
	name, address := parseNameAddress(input)
	s.Name = name
	s.Address = address

	farmer, err := e.deps.Store.FindFarmerByNameAddress(name, address)
	if err != nil {
		slog.Error("Engine.handleNameAddress: lookup failed", "error", err, "sessionID", s.ID)
		return internalErrorText(s.Language)
	}

	if farmer != nil {
		s.FarmerID = farmer.ID
		if farmer.LastProblemSummary != "" {
			// Returning farmer with an advisory history skips problem re-entry.
			s.Step = models.StepAdvice
			slog.Info("Engine.handleNameAddress: returning farmer recognized", "sessionID", s.ID, "farmerID", farmer.ID)
			return recapText(s.Language, farmer.Name, farmer.LastProblemSummary)
		}
		s.Step = models.StepAwaitProblem
		slog.Info("Engine.handleNameAddress: returning farmer without history", "sessionID", s.ID, "farmerID", farmer.ID)
		return welcomeBackText(s.Language, farmer.Name)
	}

	created, err := e.deps.Store.UpsertFarmer(models.Farmer{
		Name:     name,
		Address:  address,
		Language: s.Language,
	})
	if err != nil {
		slog.Error("Engine.handleNameAddress: upsert failed", "error", err, "sessionID", s.ID)
		return internalErrorText(s.Language)
	}
	s.FarmerID = created.ID
	s.Step = models.StepAwaitProblem
	slog.Info("Engine.handleNameAddress: new farmer registered", "sessionID", s.ID, "farmerID", created.ID)
	return newUserText(s.Language, name)
}

// handleProblem stores the problem statement, geocodes the farmer's address,
// and on success runs the advisory aggregation. Geocoding failure reverts to
// step 1 so the farmer can supply a better address.
func (e *Engine) handleProblem(ctx context.Context, s *models.Session, input string) string {
	s.ProblemText = input
	s.Step = models.StepAdvice

	farmer, err := e.deps.Store.GetFarmer(s.FarmerID)
	if err != nil || farmer == nil {
		slog.Error("Engine.handleProblem: farmer record missing", "error", err, "sessionID", s.ID, "farmerID", s.FarmerID)
		s.Step = models.StepAwaitName
		return internalErrorText(s.Language)
	}

	lat, lon, ok, err := e.deps.Geocoder.Resolve(ctx, farmer.Address)
	if err != nil {
		// Transport failures follow the same recovery path as an unknown address.
		slog.Warn("Engine.handleProblem: geocoding error", "error", err, "sessionID", s.ID, "address", farmer.Address)
		ok = false
	}
	if !ok {
		s.Step = models.StepAwaitName
		slog.Info("Engine.handleProblem: geocoding failed, reverting to address entry", "sessionID", s.ID, "address", farmer.Address)
		return clarifyAddressText(s.Language)
	}

	farmer.Latitude = &lat
	farmer.Longitude = &lon
	farmer.LastProblemSummary = input
	if _, err := e.deps.Store.UpsertFarmer(*farmer); err != nil {
		slog.Error("Engine.handleProblem: failed to persist coordinates", "error", err, "farmerID", farmer.ID)
	}

	text := e.aggregate(ctx, lat, lon, input, s.Language)
	s.Step = models.StepActiveChat
	slog.Info("Engine.handleProblem: advisory delivered", "sessionID", s.ID, "farmerID", farmer.ID)
	return text
}

// handleFollowUp routes active-chat input to market, weather, soil, or the
// closing message. The step is left unchanged unless the farmer's
// coordinates went missing, which reverts to address entry.
func (e *Engine) handleFollowUp(ctx context.Context, s *models.Session, input string) string {
	farmer, err := e.deps.Store.GetFarmer(s.FarmerID)
	if err != nil || farmer == nil || !farmer.HasCoordinates() {
		slog.Warn("Engine.handleFollowUp: no usable farmer coordinates", "error", err, "sessionID", s.ID, "farmerID", s.FarmerID)
		s.Step = models.StepAwaitName
		return provideAddressText(s.Language)
	}

	for _, intent := range e.deps.Classifier.Classify(input, s.Language) {
		switch intent {
		case models.IntentMarket:
			// Market routing requires an active advisory context; without one
			// the input falls through to the lower-priority checks.
			if farmer.LastProblemSummary == "" {
				continue
			}
			return e.deps.Market.Price(ctx, FollowUpCrop, s.Language)
		case models.IntentWeather:
			return e.deps.Weather.Fetch(ctx, *farmer.Latitude, *farmer.Longitude, FollowUpCrop, s.Language)
		case models.IntentSoil:
			return e.deps.Soil.Fetch(ctx, *farmer.Latitude, *farmer.Longitude, FollowUpCrop, s.Language)
		case models.IntentThanks:
			return closingText(s.Language)
		}
	}
	return capabilityText(s.Language)
}

// renderAudio renders reply audio, degrading to an empty reference on failure.
func (e *Engine) renderAudio(ctx context.Context, text string, lang models.Language, sessionID string) string {
	if e.deps.Speech == nil {
		return ""
	}
	url, err := e.deps.Speech.Render(ctx, text, lang, sessionID)
	if err != nil {
		slog.Warn("Engine.renderAudio: speech rendering failed", "error", err, "sessionID", sessionID)
		return ""
	}
	return url
}

// parseNameAddress splits free text into a name token and an address
// remainder: primary split on comma, fallback split on whitespace. Parts are
// trimmed and title-cased. Parsing always yields something; placeholders
// stand in for missing pieces.
func parseNameAddress(input string) (name, address string) {
	parts := splitClean(input, ",")
	if len(parts) < 2 {
		// Stray separators must not survive into the name ("Ravi," parses as
		// just the name Ravi).
		parts = splitClean(strings.ReplaceAll(input, ",", " "), "")
	}

	name = defaultName
	address = defaultAddress
	if len(parts) > 0 {
		name = parts[0]
	}
	if len(parts) > 1 {
		address = strings.Join(parts[1:], " ")
	}
	return name, address
}

// splitClean splits on sep (or on whitespace when sep is empty), trimming and
// title-casing each part and dropping empties.
func splitClean(input, sep string) []string {
	var raw []string
	if sep == "" {
		raw = strings.Fields(input)
	} else {
		raw = strings.Split(input, sep)
	}
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = titleCase(strings.TrimSpace(p))
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// titleCase upper-cases the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
