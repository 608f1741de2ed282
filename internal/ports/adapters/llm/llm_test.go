package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/httpclient"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/retry"
)

const goodScript = `{"title":"Deep Sea","hook":"You have never seen this.","narration":[{"text":"line one","duration":2.5,"image_prompt":"abyss"},{"text":"line two","image_prompt":"squid"}],"tags":["ocean"],"description":"d"}`

type fakeLLM struct {
	mu       sync.Mutex
	replies  []func(w http.ResponseWriter)
	requests []map[string]any
}

func (f *fakeLLM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, body)
	reply := f.replies[min(n, len(f.replies)-1)]
	f.mu.Unlock()
	reply(w)
}

func content(s string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": s},
			}},
		})
	}
}

func status(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"server_error"}}`))
	}
}

func newProvider(t *testing.T, fake *fakeLLM) *Provider {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := config.Default().Script
	cfg.APIKey = "hf_test"
	cfg.BaseURL = srv.URL + "/v1"
	p, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	p.policy.Sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { p.Close() })
	return p
}

func TestGenerate_FencedReply(t *testing.T) {
	fake := &fakeLLM{replies: []func(http.ResponseWriter){content("Sure!\n```json\n" + goodScript + "\n```")}}
	p := newProvider(t, fake)

	s, err := p.Generate(context.Background(), ports.ScriptRequest{Theme: "deep sea", Keywords: []string{"ocean"}})
	if err != nil {
		t.Fatal(err)
	}
	if s.Title != "Deep Sea" || len(s.Narration) != 2 {
		t.Fatalf("script=%+v", s)
	}
	if s.Narration[1].Duration != 3.0 {
		t.Fatalf("missing duration should default, got %v", s.Narration[1].Duration)
	}
	if s.Metadata.Theme != "deep sea" || s.Metadata.TargetDuration != 45 || s.Metadata.Model == "" {
		t.Fatalf("metadata=%+v", s.Metadata)
	}
	if len(fake.requests) != 1 {
		t.Fatalf("requests=%d", len(fake.requests))
	}
}

func TestGenerate_CorrectiveRetry(t *testing.T) {
	fake := &fakeLLM{replies: []func(http.ResponseWriter){content("here is your script: title Deep Sea"), content(goodScript)}}
	p := newProvider(t, fake)

	if _, err := p.Generate(context.Background(), ports.ScriptRequest{Theme: "deep sea"}); err != nil {
		t.Fatal(err)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("requests=%d", len(fake.requests))
	}
	msgs := fake.requests[1]["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("corrective request should carry 4 messages, got %d", len(msgs))
	}
}

func TestGenerate_Unparseable(t *testing.T) {
	fake := &fakeLLM{replies: []func(http.ResponseWriter){content(`{"title":""}`)}}
	p := newProvider(t, fake)

	_, err := p.Generate(context.Background(), ports.ScriptRequest{Theme: "x"})
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("err=%v want ErrUnparseable", err)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("requests=%d, want exactly one corrective retry", len(fake.requests))
	}
}

func TestGenerate_RetriesServerBusy(t *testing.T) {
	fake := &fakeLLM{replies: []func(http.ResponseWriter){status(503), content(goodScript)}}
	p := newProvider(t, fake)

	if _, err := p.Generate(context.Background(), ports.ScriptRequest{Theme: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("requests=%d", len(fake.requests))
	}
}

func TestGenerate_AuthFailureIsPermanent(t *testing.T) {
	fake := &fakeLLM{replies: []func(http.ResponseWriter){status(401)}}
	p := newProvider(t, fake)

	_, err := p.Generate(context.Background(), ports.ScriptRequest{Theme: "x"})
	var se *httpclient.StatusError
	if !errors.As(err, &se) || se.Code != 401 {
		t.Fatalf("err=%v", err)
	}
	if retry.Classify(err) != retry.KindAuth {
		t.Fatalf("kind=%v", retry.Classify(err))
	}
	if len(fake.requests) != 1 {
		t.Fatalf("requests=%d", len(fake.requests))
	}
}

func TestGenerate_ErrorMessageHidesKey(t *testing.T) {
	fake := &fakeLLM{replies: []func(http.ResponseWriter){func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid token hf_test","type":"invalid_request_error"}}`))
	}}}
	p := newProvider(t, fake)

	_, err := p.Generate(context.Background(), ports.ScriptRequest{Theme: "x"})
	var se *httpclient.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Fatalf("err=%v", err)
	}
	if strings.Contains(se.Body, "hf_test") || strings.Contains(se.Error(), "hf_test") {
		t.Fatalf("key leaked: %q", se.Body)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(config.Default().Script, zaptest.NewLogger(t))
	if !errors.Is(err, httpclient.ErrMissingCredential) {
		t.Fatalf("err=%v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"text ```\n{\"a\":2}``` more", `{"a":2}`},
		{"  {\"a\":3}  ", `{"a":3}`},
	}
	for _, tt := range tests {
		if got := ExtractJSON(tt.in); got != tt.want {
			t.Errorf("ExtractJSON(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt(ports.ScriptRequest{Theme: "space", Keywords: []string{"moon", "mars"}, TargetAudience: "kids", TargetDuration: 30, Language: "ja"})
	for _, want := range []string{"Theme: space", "moon, mars", "kids", "about 30 seconds", "language: ja"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}
