package voicevox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/httpclient"
	"ai-shorts-factory/internal/types"
)

func newClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := config.Default().Voice
	cfg.BaseURL = srv.URL + "/"
	c := New(cfg, zaptest.NewLogger(t))
	c.policy.Sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSynthesize(t *testing.T) {
	var gotQuery map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Query().Get("text") != "こんにちは" || r.URL.Query().Get("speaker") != "3" {
			http.Error(w, "bad query", http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"accent_phrases": []any{}, "speedScale": 1.0, "outputSamplingRate": 24000})
	})
	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("speaker") != "3" {
			http.Error(w, "speaker", http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotQuery)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF....WAVE"))
	})
	c := newClient(t, mux)

	wav, err := c.Synthesize(context.Background(), "こんにちは", types.VoiceSettings{SpeakerID: 3, Speed: 1.2, Pitch: 0.05, Intonation: 1, Volume: 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(wav) != "RIFF....WAVE" {
		t.Fatalf("wav=%q", wav)
	}
	if gotQuery["speedScale"] != 1.2 || gotQuery["pitchScale"] != 0.05 {
		t.Fatalf("query sent to synthesis=%v", gotQuery)
	}
	if gotQuery["outputSamplingRate"] != float64(24000) {
		t.Fatalf("engine fields must pass through, got %v", gotQuery)
	}
}

func TestSynthesize_RetriesThenFails(t *testing.T) {
	var calls int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	_, err := c.Synthesize(context.Background(), "x", types.VoiceSettings{SpeakerID: 1})
	var se *httpclient.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("err=%v", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d want 3", calls)
	}
}

func TestSynthesize_BadRequestNotRetried(t *testing.T) {
	var calls int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown speaker", http.StatusUnprocessableEntity)
	}))
	if _, err := c.Synthesize(context.Background(), "x", types.VoiceSettings{SpeakerID: 999}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls=%d want 1", calls)
	}
}

func TestVersionAndSpeakers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"0.14.7"`))
	})
	mux.HandleFunc("/speakers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"ずんだもん","speaker_uuid":"u1","styles":[{"name":"ノーマル","id":3}]}]`))
	})
	c := newClient(t, mux)

	v, err := c.Version(context.Background())
	if err != nil || v != "0.14.7" {
		t.Fatalf("version=%q err=%v", v, err)
	}
	sp, err := c.Speakers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sp) != 1 || sp[0].Styles[0].ID != 3 {
		t.Fatalf("speakers=%+v", sp)
	}
}
