// Package pexels searches and downloads stock footage from the Pexels video API.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/httpclient"
	"ai-shorts-factory/internal/retry"
	"ai-shorts-factory/internal/types"
)

const service = "pexels"

// Client implements ports.VideoSearcher. Searches and downloads use
// separate pools since their timeouts differ.
type Client struct {
	apiKey    string
	videosURL string
	search    *httpclient.Pool
	download  *httpclient.Pool
	policy    retry.Policy
	log       *zap.Logger
}

func New(cfg config.MediaConfig, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &httpclient.CredentialError{Name: "PEXELS_API_KEY"}
	}
	return &Client{
		apiKey:    cfg.APIKey,
		videosURL: strings.TrimRight(cfg.VideosURL, "/"),
		search:    httpclient.NewPool(time.Duration(cfg.SearchTimeoutSec) * time.Second).Redact(cfg.APIKey),
		download:  httpclient.NewPool(time.Duration(cfg.DownloadTimeoutSec) * time.Second).Redact(cfg.APIKey),
		policy:    retry.Default,
		log:       log.Named("pexels"),
	}, nil
}

func (c *Client) Close() error {
	c.search.Close()
	c.download.Close()
	return nil
}

type searchResponse struct {
	Videos []struct {
		ID       int     `json:"id"`
		URL      string  `json:"url"`
		Duration float64 `json:"duration"`
		Width    int     `json:"width"`
		Height   int     `json:"height"`
		User     struct {
			Name string `json:"name"`
		} `json:"user"`
		VideoFiles []struct {
			Quality  string `json:"quality"`
			FileType string `json:"file_type"`
			Width    int    `json:"width"`
			Height   int    `json:"height"`
			Link     string `json:"link"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Search looks for portrait, medium-size clips matching query.
func (c *Client) Search(ctx context.Context, query string, perPage int) ([]types.SearchResult, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("orientation", "portrait")
	q.Set("size", "medium")
	q.Set("per_page", strconv.Itoa(perPage))
	endpoint := c.videosURL + "/search?" + q.Encode()

	return retry.Value(ctx, c.policy, c.log, "search", func(ctx context.Context) ([]types.SearchResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.apiKey)
		resp, err := c.search.Do(service, req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var sr searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		out := make([]types.SearchResult, 0, len(sr.Videos))
		for _, v := range sr.Videos {
			r := types.SearchResult{
				ID:           v.ID,
				URL:          v.URL,
				Duration:     v.Duration,
				Width:        v.Width,
				Height:       v.Height,
				Photographer: v.User.Name,
			}
			for _, f := range v.VideoFiles {
				if f.Link == "" || (f.FileType != "" && f.FileType != "video/mp4") {
					continue
				}
				r.Files = append(r.Files, types.Candidate{
					Width:   f.Width,
					Height:  f.Height,
					Quality: types.ParseQuality(f.Quality),
					Link:    f.Link,
				})
			}
			out = append(out, r)
		}
		c.log.Debug("search", zap.String("query", query), zap.Int("results", len(out)))
		return out, nil
	})
}

// Download streams link into dest. A partial file never replaces dest.
func (c *Client) Download(ctx context.Context, link, dest string) error {
	return retry.Do(ctx, c.policy, c.log, "download", func(ctx context.Context) error {
		return c.downloadOnce(ctx, link, dest)
	})
}

func (c *Client) downloadOnce(ctx context.Context, link, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	resp, err := c.download.Do(service, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".part-"+filepath.Base(dest))
	if err != nil {
		return err
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("download %s: %w", link, err)
	}
	if n == 0 {
		os.Remove(tmp.Name())
		return fmt.Errorf("download %s: empty body", link)
	}
	return os.Rename(tmp.Name(), dest)
}
