package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/domain/timeline"
	"ai-shorts-factory/internal/media"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

// Compose turns the hand-off files of the earlier stages into a video.
type Compose struct {
	renderer    ports.Renderer
	transcriber ports.Transcriber
	cfg         *config.Config
	now         func() time.Time
	log         *zap.Logger
}

// ComposeInput names the metadata files to assemble. Only AudioMetadata is
// required; segments without a visual fall back to the background color.
type ComposeInput struct {
	AudioMetadata string
	ImageMetadata string
	MediaMetadata string
	Output        string
}

// NewCompose builds the stage. transcriber may be nil, in which case
// captions always come from narration timing.
func NewCompose(cfg *config.Config, renderer ports.Renderer, transcriber ports.Transcriber, log *zap.Logger) *Compose {
	return &Compose{renderer: renderer, transcriber: transcriber, cfg: cfg, now: time.Now, log: log.Named("compose")}
}

// Run loads the metadata files and renders the short.
func (c *Compose) Run(ctx context.Context, in ComposeInput) (*types.VideoResult, error) {
	if in.AudioMetadata == "" {
		return nil, fmt.Errorf("audio metadata is required")
	}
	audio, err := store.LoadJSON[store.AudioMetadata](in.AudioMetadata)
	if err != nil {
		return nil, fmt.Errorf("load audio metadata: %w", err)
	}
	for i, a := range audio.Files {
		if a.Duration > 0 {
			continue
		}
		// metadata without a measured duration: read it from the WAV header
		d, err := media.WAVFileDuration(a.FilePath)
		if err != nil {
			return nil, fmt.Errorf("audio segment %d: %w", a.Index, err)
		}
		audio.Files[i].Duration = d
	}
	var images []types.ImageAsset
	if in.ImageMetadata != "" {
		im, err := store.LoadJSON[store.ImageMetadata](in.ImageMetadata)
		if err != nil {
			return nil, fmt.Errorf("load image metadata: %w", err)
		}
		images = im.Files
	}
	var clips []types.SelectedAsset
	if in.MediaMetadata != "" {
		mm, err := store.LoadJSON[store.MediaMetadata](in.MediaMetadata)
		if err != nil {
			return nil, fmt.Errorf("load media metadata: %w", err)
		}
		clips = mm.Files
	}
	return c.Compose(ctx, audio.Files, images, clips, in.Output)
}

// Compose builds the timeline from measured audio and renders it.
func (c *Compose) Compose(ctx context.Context, audio []types.AudioAsset, images []types.ImageAsset, clips []types.SelectedAsset, output string) (*types.VideoResult, error) {
	stamp := c.now()
	plan := c.Plan(audio, images, clips)
	if len(plan.Entries) == 0 {
		return nil, timeline.ErrNoContent
	}
	if output == "" {
		output = filepath.Join(c.cfg.Dir("videos"), "short_"+store.Stamp(stamp)+".mp4")
	}
	plan.Output = output
	plan.WorkDir = filepath.Join(c.cfg.Dir("temp"), "compose_"+store.Stamp(stamp))

	c.log.Info("timeline built",
		zap.Int("entries", len(plan.Entries)),
		zap.Float64("duration", timeline.TotalDuration(plan.Entries)))

	if c.cfg.Subtitles.Enabled && c.cfg.Subtitles.Engine == "whisper" && c.transcriber != nil {
		if srt, err := c.transcribe(ctx, plan); err != nil {
			c.log.Warn("whisper captions failed, using narration timing", zap.Error(err))
		} else {
			plan.SubtitlePath = srt
		}
	}

	res, err := c.renderer.Render(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return res, nil
}

// Plan assembles the render plan without touching the filesystem.
func (c *Compose) Plan(audio []types.AudioAsset, images []types.ImageAsset, clips []types.SelectedAsset) ports.RenderPlan {
	entries := timeline.Build(timeline.FromAudio(audio), timeline.MergeVisuals(images, clips))
	plan := ports.RenderPlan{
		Entries: entries,
		Style: ports.SubtitleStyle{
			FontFile:     c.cfg.Paths.SubtitleFont,
			FontSize:     c.cfg.Subtitles.FontSize,
			StrokeWidth:  c.cfg.Subtitles.StrokeWidth,
			MarginBottom: c.cfg.Subtitles.MarginBottom,
		},
		Width:      c.cfg.Video.Width,
		Height:     c.cfg.Video.Height,
		FPS:        c.cfg.Video.FPS,
		Codec:      c.cfg.Video.Codec,
		AudioCodec: c.cfg.Video.AudioCodec,
		Background: c.cfg.Video.Background,
	}
	if c.cfg.Subtitles.Enabled {
		plan.Cues = timeline.Cues(entries)
	}
	return plan
}

func (c *Compose) transcribe(ctx context.Context, plan ports.RenderPlan) (string, error) {
	if err := os.MkdirAll(plan.WorkDir, 0755); err != nil {
		return "", err
	}
	narration := filepath.Join(plan.WorkDir, "narration_full.wav")
	if err := c.renderer.ConcatAudio(ctx, plan.Entries, narration); err != nil {
		return "", err
	}
	return c.transcriber.Transcribe(ctx, narration, plan.WorkDir)
}
