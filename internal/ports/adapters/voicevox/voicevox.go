// Package voicevox talks to a VOICEVOX engine over its HTTP API.
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/httpclient"
	"ai-shorts-factory/internal/retry"
	"ai-shorts-factory/internal/types"
)

const service = "voicevox"

// Client implements ports.SpeechSynthesizer.
type Client struct {
	baseURL string
	pool    *httpclient.Pool
	policy  retry.Policy
	log     *zap.Logger
}

func New(cfg config.VoiceConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		pool:    httpclient.NewPool(time.Duration(cfg.TimeoutSec) * time.Second),
		policy:  retry.Default,
		log:     log.Named("voicevox"),
	}
}

func (c *Client) Close() error {
	c.pool.Close()
	return nil
}

// Version returns the engine version. It doubles as a health check.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.pool.Do(service, req)
	if err != nil {
		return "", fmt.Errorf("voicevox engine at %s unreachable: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(string(b)), `"`), nil
}

// Style is one voice style of a speaker. Its ID is the speaker id used for
// synthesis.
type Style struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

type Speaker struct {
	Name        string  `json:"name"`
	SpeakerUUID string  `json:"speaker_uuid"`
	Styles      []Style `json:"styles"`
}

// Speakers lists the voices the engine offers.
func (c *Client) Speakers(ctx context.Context) ([]Speaker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/speakers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.pool.Do(service, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out []Speaker
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode speakers: %w", err)
	}
	return out, nil
}

// Synthesize runs audio_query then synthesis and returns WAV bytes.
func (c *Client) Synthesize(ctx context.Context, text string, voice types.VoiceSettings) ([]byte, error) {
	query, err := retry.Value(ctx, c.policy, c.log, "audio_query", func(ctx context.Context) (map[string]any, error) {
		return c.audioQuery(ctx, text, voice.SpeakerID)
	})
	if err != nil {
		return nil, fmt.Errorf("audio query: %w", err)
	}
	applySettings(query, voice)

	wav, err := retry.Value(ctx, c.policy, c.log, "synthesis", func(ctx context.Context) ([]byte, error) {
		return c.synthesis(ctx, query, voice.SpeakerID)
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	return wav, nil
}

func (c *Client) audioQuery(ctx context.Context, text string, speaker int) (map[string]any, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker", strconv.Itoa(speaker))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio_query?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.pool.Do(service, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var query map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("decode audio query: %w", err)
	}
	return query, nil
}

func (c *Client) synthesis(ctx context.Context, query map[string]any, speaker int) ([]byte, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/synthesis?speaker="+strconv.Itoa(speaker), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.pool.Do(service, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// applySettings overwrites the prosody fields of an audio query. Zero values
// leave the engine's defaults alone, except pitch where zero is the default.
func applySettings(query map[string]any, v types.VoiceSettings) {
	if v.Speed > 0 {
		query["speedScale"] = v.Speed
	}
	query["pitchScale"] = v.Pitch
	if v.Intonation > 0 {
		query["intonationScale"] = v.Intonation
	}
	if v.Volume > 0 {
		query["volumeScale"] = v.Volume
	}
}
