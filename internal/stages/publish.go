package stages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

var ErrNotShorts = errors.New("video does not meet shorts requirements")

// Prober reads a video's duration and frame size.
type Prober interface {
	Probe(ctx context.Context, path string) (*types.MediaInfo, error)
}

// Publish checks a rendered video against the shorts limits and uploads it.
type Publish struct {
	publisher ports.Publisher
	prober    Prober
	cfg       config.PublishConfig
	logDir    string
	now       func() time.Time
	log       *zap.Logger
}

func NewPublish(cfg *config.Config, publisher ports.Publisher, prober Prober, log *zap.Logger) *Publish {
	return &Publish{
		publisher: publisher,
		prober:    prober,
		cfg:       cfg.Publish,
		logDir:    cfg.Paths.UploadLogDir,
		now:       time.Now,
		log:       log.Named("upload"),
	}
}

// CheckShorts returns an error for a video longer than the shorts maximum and
// warnings for a short, landscape or low-resolution one.
func CheckShorts(info types.MediaInfo, cfg config.PublishConfig) (warnings []string, err error) {
	if cfg.MaxDurationSec > 0 && info.Duration > cfg.MaxDurationSec {
		return nil, fmt.Errorf("%w: %.1fs is longer than %.0fs", ErrNotShorts, info.Duration, cfg.MaxDurationSec)
	}
	if cfg.MinDurationSec > 0 && info.Duration > 0 && info.Duration < cfg.MinDurationSec {
		warnings = append(warnings, fmt.Sprintf("video may be too short: %.1fs (recommended at least %.0fs)", info.Duration, cfg.MinDurationSec))
	}
	if ar := info.AspectRatio(); info.Width > 0 && cfg.AspectRatio > 0 && ar < cfg.AspectRatio*0.9 {
		warnings = append(warnings, fmt.Sprintf("video is not vertical: aspect ratio %.2f (recommended %.2f)", ar, cfg.AspectRatio))
	}
	if info.Width > 0 && info.Height > 0 && (info.Width < 540 || info.Height < 960) {
		warnings = append(warnings, fmt.Sprintf("resolution may be too low: %dx%d (recommended 1080x1920)", info.Width, info.Height))
	}
	return warnings, nil
}

// ShortsRequest adds the #Shorts marker to the description unless the title
// or description already has it, and the Shorts tag.
func ShortsRequest(req types.UploadRequest) types.UploadRequest {
	req.IsShorts = true
	if !strings.Contains(strings.ToLower(req.Title), "#shorts") && !strings.Contains(strings.ToLower(req.Description), "#shorts") {
		if req.Description == "" {
			req.Description = "#Shorts"
		} else {
			req.Description += "\n\n#Shorts"
		}
	}
	req.Tags = slices.Clone(req.Tags)
	if !slices.Contains(req.Tags, "Shorts") {
		req.Tags = append(req.Tags, "Shorts")
	}
	return req
}

// Run validates and uploads videoPath. When req.IsShorts is set the shorts
// checks run first and a failing video is never sent.
func (p *Publish) Run(ctx context.Context, videoPath string, req types.UploadRequest) (*types.UploadResponse, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file: %w", err)
	}
	if req.CategoryID == "" {
		req.CategoryID = p.cfg.CategoryID
	}
	if req.Privacy == "" {
		req.Privacy = p.cfg.Privacy
	}

	if req.IsShorts {
		info, err := p.prober.Probe(ctx, videoPath)
		if err != nil {
			return nil, err
		}
		warnings, err := CheckShorts(*info, p.cfg)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			p.log.Warn(w)
		}
		req = ShortsRequest(req)
	}

	resp, err := p.publisher.Upload(ctx, videoPath, req)
	if err != nil {
		return nil, err
	}
	if err := p.writeLog(videoPath, resp); err != nil {
		p.log.Warn("could not write upload log", zap.Error(err))
	}
	return resp, nil
}

// RunFromScript uploads with the script's title, description and tags.
func (p *Publish) RunFromScript(ctx context.Context, videoPath string, script *types.ScriptData, privacy string) (*types.UploadResponse, error) {
	title := script.Title
	if title == "" {
		title = "Untitled"
	}
	return p.Run(ctx, videoPath, types.UploadRequest{
		Title:       title,
		Description: script.Description,
		Tags:        script.Tags,
		Privacy:     privacy,
		IsShorts:    true,
	})
}

// Update changes the metadata of an uploaded video.
func (p *Publish) Update(ctx context.Context, videoID string, req types.UploadRequest) error {
	if videoID == "" {
		return errors.New("video id is required")
	}
	return p.publisher.Update(ctx, videoID, req)
}

type uploadLog struct {
	VideoID    string `json:"video_id"`
	VideoURL   string `json:"video_url"`
	ShortsURL  string `json:"shorts_url,omitempty"`
	Title      string `json:"title"`
	Privacy    string `json:"privacy_status"`
	UploadedAt string `json:"uploaded_at"`
	VideoFile  string `json:"video_file"`
}

func (p *Publish) writeLog(videoPath string, resp *types.UploadResponse) error {
	if p.logDir == "" {
		return nil
	}
	now := p.now()
	return store.SaveJSON(filepath.Join(p.logDir, "upload_"+store.Stamp(now)+".json"), uploadLog{
		VideoID:    resp.VideoID,
		VideoURL:   resp.VideoURL,
		ShortsURL:  resp.ShortsURL,
		Title:      resp.Title,
		Privacy:    resp.Privacy,
		UploadedAt: now.UTC().Format(time.RFC3339),
		VideoFile:  videoPath,
	})
}
