package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gramvikas/kisha/internal/models"
)

func TestRenderWritesArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate_tts" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("tl"); got != "hi" {
			t.Errorf("Unexpected tl %q", got)
		}
		if got := r.URL.Query().Get("client"); got != "tw-ob" {
			t.Errorf("Unexpected client %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "नमस्ते" {
			t.Errorf("Unexpected q %q", got)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	r, err := NewGoogleRenderer(WithBaseURL(srv.URL), WithAudioDir(dir))
	if err != nil {
		t.Fatalf("NewGoogleRenderer failed: %v", err)
	}

	url, err := r.Render(context.Background(), "नमस्ते", models.LanguageHindi, "s1")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if url != "/audio/response_s1.mp3" {
		t.Errorf("Unexpected audio URL %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "response_s1.mp3"))
	if err != nil {
		t.Fatalf("Expected artifact on disk: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("Unexpected artifact contents %q", data)
	}
}

func TestRenderErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	r, err := NewGoogleRenderer(WithBaseURL(srv.URL), WithAudioDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewGoogleRenderer failed: %v", err)
	}
	if _, err := r.Render(context.Background(), "hello", models.LanguageEnglish, "s1"); err == nil {
		t.Fatal("Expected error for bad TTS status")
	}
}

func TestNewGoogleRendererRequiresAudioDir(t *testing.T) {
	if _, err := NewGoogleRenderer(); err == nil {
		t.Fatal("Expected error when audio directory is not set")
	}
}

func TestCleanupAudioDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"response_a.mp3", "response_b.mp3", "keep.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to seed file: %v", err)
		}
	}

	if err := CleanupAudioDir(dir); err != nil {
		t.Fatalf("CleanupAudioDir failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "keep.txt" {
		t.Errorf("Expected only keep.txt to remain, got %v", entries)
	}
}

func TestCleanupAudioDirMissingDirIsNoop(t *testing.T) {
	if err := CleanupAudioDir(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Errorf("Expected nil for missing directory, got %v", err)
	}
}
