// Package speech renders reply text into speech audio artifacts.
//
// The production renderer uses the Google Translate TTS endpoint (the same
// service gTTS wraps) and writes MP3 files into the audio directory served by
// the transport layer. Rendering failures degrade gracefully: the caller
// still returns text with no audio reference.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gramvikas/kisha/internal/models"
)

// Default renderer configuration.
const (
	// DefaultBaseURL is the Google Translate TTS endpoint.
	DefaultBaseURL = "https://translate.google.com"
	// DefaultTimeout bounds each render call.
	DefaultTimeout = 15 * time.Second
	// AudioURLPrefix is the public path under which audio files are served.
	AudioURLPrefix = "/audio"
	// audioDirPermissions is the mode for the audio artifact directory.
	audioDirPermissions = 0755
)

// Renderer converts reply text into an audio artifact and returns its URL path.
type Renderer interface {
	Render(ctx context.Context, text string, lang models.Language, sessionID string) (string, error)
}

// Opts holds configuration for renderer construction.
type Opts struct {
	BaseURL  string
	AudioDir string
	Timeout  time.Duration
}

// Option configures renderer construction.
type Option func(*Opts)

// WithBaseURL overrides the TTS endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithAudioDir sets the directory audio artifacts are written to.
func WithAudioDir(dir string) Option {
	return func(o *Opts) { o.AudioDir = dir }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Opts) { o.Timeout = timeout }
}

// GoogleRenderer renders speech through the Google Translate TTS endpoint.
type GoogleRenderer struct {
	client   *resty.Client
	audioDir string
}

// NewGoogleRenderer creates a renderer writing MP3 artifacts under the audio
// directory, creating the directory if needed.
func NewGoogleRenderer(opts ...Option) (*GoogleRenderer, error) {
	cfg := Opts{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AudioDir == "" {
		return nil, fmt.Errorf("audio directory not set")
	}
	if err := os.MkdirAll(cfg.AudioDir, audioDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	slog.Debug("GoogleRenderer created", "base_url", cfg.BaseURL, "audio_dir", cfg.AudioDir)
	return &GoogleRenderer{
		client:   resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(cfg.Timeout),
		audioDir: cfg.AudioDir,
	}, nil
}

// Render fetches TTS audio for the text and saves it as
// response_<sessionID>.mp3, overwriting the session's previous artifact.
func (r *GoogleRenderer) Render(ctx context.Context, text string, lang models.Language, sessionID string) (string, error) {
	ttsLang := "hi"
	if lang == models.LanguageEnglish {
		ttsLang = "en"
	}

	filename := AudioFileName(sessionID)
	path := filepath.Join(r.audioDir, filename)

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ie":     "UTF-8",
			"client": "tw-ob",
			"tl":     ttsLang,
			"q":      text,
		}).
		SetOutput(path).
		Get("/translate_tts")
	if err != nil {
		slog.Error("GoogleRenderer Render request failed", "error", err, "sessionID", sessionID)
		return "", fmt.Errorf("tts request failed: %w", err)
	}
	if resp.IsError() {
		slog.Error("GoogleRenderer Render bad status", "status", resp.StatusCode(), "sessionID", sessionID)
		return "", fmt.Errorf("tts request returned status %d", resp.StatusCode())
	}

	slog.Debug("GoogleRenderer Render succeeded", "sessionID", sessionID, "path", path)
	return AudioURLPrefix + "/" + filename, nil
}

// AudioFileName returns the artifact filename for a session.
func AudioFileName(sessionID string) string {
	return "response_" + sessionID + ".mp3"
}

// CleanupAudioDir removes leftover MP3 artifacts from previous runs.
func CleanupAudioDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read audio directory: %w", err)
	}
	var removed int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			slog.Warn("CleanupAudioDir failed to remove artifact", "error", err, "file", entry.Name())
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("CleanupAudioDir removed stale artifacts", "count", removed)
	}
	return nil
}
