// Package models defines the core data structures for Kisha.
//
// It includes types for farmers, conversation sessions, and API payloads,
// which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Language selects the advisory language for a session.
type Language string

const (
	// LanguageHindi is the default advisory language.
	LanguageHindi Language = "hi"
	// LanguageEnglish selects English advisories.
	LanguageEnglish Language = "en"
)

// Normalize maps any unrecognized language code to the Hindi default.
func (l Language) Normalize() Language {
	if l == LanguageEnglish {
		return LanguageEnglish
	}
	return LanguageHindi
}

// Step marks a session's progress through the conversation.
type Step int

const (
	// StepUninitialized is the state of a session that was never started.
	StepUninitialized Step = 0
	// StepAwaitName means the session is waiting for a name and address.
	StepAwaitName Step = 1
	// StepAwaitProblem means the session is waiting for a problem statement.
	StepAwaitProblem Step = 2
	// StepAdvice is the transient state while geocoding and aggregation run.
	StepAdvice Step = 3
	// StepActiveChat and above means the composite advisory was delivered
	// and free-text follow-ups are routed by keyword.
	StepActiveChat Step = 4
)

// Intent classifies a follow-up query in active chat.
type Intent string

const (
	// IntentMarket requests the market price for the active crop.
	IntentMarket Intent = "market"
	// IntentWeather requests a fresh weather report.
	IntentWeather Intent = "weather"
	// IntentSoil requests a fresh soil report.
	IntentSoil Intent = "soil"
	// IntentThanks closes the conversation politely.
	IntentThanks Intent = "thanks"
	// IntentUnknown is the fallback for unrecognized input.
	IntentUnknown Intent = "unknown"
)

// Validation error variables for better error handling and testability.
var (
	ErrMissingSessionID = errors.New("missing session ID")
	ErrMissingQuery     = errors.New("missing query text")
	ErrInvalidStep      = errors.New("invalid conversation step")
)

// Farmer is the persistent record for a recognized farmer.
// The (Name, Address) pair is unique across all farmers.
type Farmer struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Address            string    `json:"address"`
	Language           Language  `json:"language"`
	Latitude           *float64  `json:"latitude,omitempty"`
	Longitude          *float64  `json:"longitude,omitempty"`
	LastProblemSummary string    `json:"last_problem_summary,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HasCoordinates reports whether the farmer's address was ever geocoded.
func (f *Farmer) HasCoordinates() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Session is the ephemeral per-conversation state, keyed by a caller-supplied
// session identifier. It lives in the session store for the configured TTL.
type Session struct {
	ID          string    `json:"id"`
	Step        Step      `json:"step"`
	Language    Language  `json:"language"`
	Name        string    `json:"name,omitempty"`
	Address     string    `json:"address,omitempty"`
	FarmerID    string    `json:"farmer_id,omitempty"`
	ProblemText string    `json:"problem_text,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StartSessionRequest is the payload for POST /api/start_session.
type StartSessionRequest struct {
	SessionID string   `json:"session_id"`
	Lang      Language `json:"lang,omitempty"`
}

// Validate checks required fields of a StartSessionRequest.
func (r *StartSessionRequest) Validate() error {
	if r.SessionID == "" {
		return ErrMissingSessionID
	}
	return nil
}

// ChatRequest is the payload for POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// Validate checks required fields of a ChatRequest.
func (r *ChatRequest) Validate() error {
	if r.SessionID == "" {
		return ErrMissingSessionID
	}
	if r.Query == "" {
		return ErrMissingQuery
	}
	return nil
}

// TurnReply is the outcome of one conversation turn. NextStep is advisory for
// client-side UI hints only; the server session remains authoritative.
type TurnReply struct {
	Text     string `json:"text_response"`
	AudioURL string `json:"audio_url,omitempty"`
	NextStep Step   `json:"next_step"`
}
