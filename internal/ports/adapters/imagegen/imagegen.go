// Package imagegen generates background images with a FLUX model, either
// through Pollinations (no key) or the Hugging Face inference router.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/domain/assets"
	"ai-shorts-factory/internal/httpclient"
	"ai-shorts-factory/internal/retry"
)

const (
	BackendPollinations = "pollinations"
	BackendHuggingFace  = "huggingface"

	defaultPollinationsURL = "https://image.pollinations.ai"
	defaultHuggingFaceURL  = "https://router.huggingface.co/hf-inference/models"

	// minImageBytes filters out tiny error pages served with a 200.
	minImageBytes = 100
)

// Generator implements ports.ImageGenerator.
type Generator struct {
	cfg     config.ImageConfig
	baseURL string
	pool    *httpclient.Pool
	policy  retry.Policy
	log     *zap.Logger
}

func New(cfg config.ImageConfig, log *zap.Logger) (*Generator, error) {
	base := cfg.BaseURL
	switch cfg.Backend {
	case BackendPollinations:
		if base == "" {
			base = defaultPollinationsURL
		}
	case BackendHuggingFace:
		if cfg.APIToken == "" {
			return nil, &httpclient.CredentialError{Name: "HUGGINGFACE_API_TOKEN"}
		}
		if base == "" {
			base = defaultHuggingFaceURL
		}
	default:
		return nil, fmt.Errorf("unknown image backend %q", cfg.Backend)
	}
	return &Generator{
		cfg:     cfg,
		baseURL: strings.TrimRight(base, "/"),
		pool:    httpclient.NewPool(time.Duration(cfg.TimeoutSec) * time.Second).Redact(cfg.APIToken),
		policy:  retry.ImageGeneration,
		log:     log.Named("imagegen"),
	}, nil
}

func (g *Generator) Close() error {
	g.pool.Close()
	return nil
}

// RequestSize is the size actually sent to the model for a w x h target.
func (g *Generator) RequestSize(w, h int) (int, int) {
	return assets.FitWithinLimit(w, h, g.cfg.MaxWidth, g.cfg.MaxHeight)
}

// Generate returns encoded image bytes. The request is shrunk to the
// model's maximum size; callers cover-resize the result to their canvas.
func (g *Generator) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("empty image prompt")
	}
	w, h := g.RequestSize(width, height)
	if w != width || h != height {
		g.log.Debug("request size clamped", zap.Int("width", w), zap.Int("height", h))
	}

	return retry.Value(ctx, g.policy, g.log, "generate image", func(ctx context.Context) ([]byte, error) {
		data, err := g.generateOnce(ctx, prompt, w, h)
		if err != nil {
			// A failed inference call can leave a stuck connection; start
			// the next attempt on a fresh client.
			g.pool.Reset()
			return nil, err
		}
		return data, nil
	})
}

func (g *Generator) generateOnce(ctx context.Context, prompt string, w, h int) ([]byte, error) {
	req, err := g.newRequest(ctx, prompt, w, h)
	if err != nil {
		return nil, err
	}
	resp, err := g.pool.Do(g.cfg.Backend, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) < minImageBytes {
		return nil, fmt.Errorf("%s returned %d bytes, not an image", g.cfg.Backend, len(data))
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%s returned undecodable image: %w", g.cfg.Backend, err)
	}
	return data, nil
}

func (g *Generator) newRequest(ctx context.Context, prompt string, w, h int) (*http.Request, error) {
	if g.cfg.Backend == BackendHuggingFace {
		body, err := json.Marshal(map[string]any{
			"inputs": prompt,
			"parameters": map[string]any{
				"width":  w,
				"height": h,
			},
		})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/"+g.cfg.Model, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "image/png")
		return req, nil
	}

	q := url.Values{}
	q.Set("width", strconv.Itoa(w))
	q.Set("height", strconv.Itoa(h))
	q.Set("nologo", "true")
	q.Set("model", "flux")
	u := g.baseURL + "/prompt/" + url.PathEscape(prompt) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ai-shorts-factory/1.0)")
	return req, nil
}
