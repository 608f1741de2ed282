// Package pipeline runs every stage end to end for one short:
// topic, script, then audio and visuals in parallel, compose and publish.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/research"
	"ai-shorts-factory/internal/stages"
	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

// Stages holds the configured stages. Images, Media, Publish and Topics are
// optional.
type Stages struct {
	Script  *stages.Script
	Voice   *stages.Voice
	Images  *stages.Images
	Media   *stages.Media
	Compose *stages.Compose
	Publish *stages.Publish
	Topics  *research.Finder
}

// Request describes one run. An empty Theme asks the topic finder.
type Request struct {
	Theme   string
	Publish bool
	Privacy string
}

type Pipeline struct {
	cfg    *config.Config
	stages Stages
	now    func() time.Time
	log    *zap.Logger
}

func New(cfg *config.Config, st Stages, log *zap.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, stages: st, now: time.Now, log: log.Named("pipeline")}
}

// Run executes one full run. The returned state is always non-nil and is
// also written to the run directory, including on failure.
func (p *Pipeline) Run(ctx context.Context, req Request) (state *types.PipelineState, err error) {
	runID := uuid.NewString()[:8]
	runDir := filepath.Join(p.cfg.Paths.Output, "runs", runID)
	log := p.log.With(zap.String("run", runID))

	state = &types.PipelineState{
		RunID:     runID,
		StartedAt: p.now().UTC().Format(time.RFC3339),
		Theme:     req.Theme,
	}
	log.Info("pipeline starting", zap.String("dir", runDir))

	defer func() {
		state.CompletedAt = p.now().UTC().Format(time.RFC3339)
		if err != nil {
			state.Error = err.Error()
		}
		if serr := store.SaveState(runDir, state); serr != nil {
			log.Warn("could not save state", zap.Error(serr))
		}
		if err != nil {
			log.Error("pipeline failed", zap.Error(err))
			return
		}
		log.Info("pipeline complete", zap.String("video", state.Video.FilePath))
	}()

	// Stage 1: topic
	sreq := ports.ScriptRequest{Theme: req.Theme}
	if req.Theme == "" {
		if p.stages.Topics == nil {
			return state, fmt.Errorf("stage 1 topic: no theme given and no topic source configured")
		}
		topic, err := p.stages.Topics.Next(ctx)
		if err != nil {
			return state, fmt.Errorf("stage 1 topic: %w", err)
		}
		state.Topic = topic
		state.Theme = research.Theme(topic)
		sreq.Topic = topic
		sreq.Theme = state.Theme
	}

	// Stage 2: script
	script, scriptPath, err := p.stages.Script.Run(ctx, sreq)
	if err != nil {
		return state, fmt.Errorf("stage 2 script: %w", err)
	}
	state.ScriptFile = scriptPath
	p.checkpoint(runDir, state, log)

	// Stage 3: audio and visuals
	audio, images, clips, err := p.assets(ctx, script, runID, state, log)
	if err != nil {
		return state, err
	}
	p.checkpoint(runDir, state, log)

	// Stage 4: compose
	video, err := p.stages.Compose.Compose(ctx, audio, images, clips, "")
	if err != nil {
		return state, fmt.Errorf("stage 4 compose: %w", err)
	}
	state.Video = video
	p.checkpoint(runDir, state, log)

	// Stage 5: publish
	if req.Publish {
		if p.stages.Publish == nil {
			return state, fmt.Errorf("stage 5 publish: publisher not configured")
		}
		up, err := p.stages.Publish.RunFromScript(ctx, video.FilePath, script, req.Privacy)
		if err != nil {
			return state, fmt.Errorf("stage 5 publish: %w", err)
		}
		state.Upload = up
	}
	return state, nil
}

// assets runs voice alongside images and media and joins them. Only a voice
// failure aborts the run; missing visuals fall back to the background.
func (p *Pipeline) assets(ctx context.Context, script *types.ScriptData, runID string, state *types.PipelineState, log *zap.Logger) ([]types.AudioAsset, []types.ImageAsset, []types.SelectedAsset, error) {
	var (
		audio  []types.AudioAsset
		images []types.ImageAsset
		clips  []types.SelectedAsset
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := p.stages.Voice.Run(gctx, script, "voice_"+runID)
		if err != nil {
			return fmt.Errorf("stage 3 audio: %w", err)
		}
		log.Info("audio", zap.String("result", res.Summary))
		state.AudioMetadata = res.MetadataPath
		if len(res.Metadata.Files) == 0 {
			return fmt.Errorf("stage 3 audio: no segment was synthesized (%s)", res.Summary)
		}
		audio = res.Metadata.Files
		return nil
	})
	if p.stages.Images != nil {
		g.Go(func() error {
			res, err := p.stages.Images.Run(gctx, script, "image_"+runID)
			if err != nil {
				log.Warn("images failed, continuing without", zap.Error(err))
				return nil
			}
			log.Info("images", zap.String("result", res.Summary))
			state.ImageMetadata = res.MetadataPath
			images = res.Metadata.Files
			return nil
		})
	}
	if p.stages.Media != nil {
		g.Go(func() error {
			queries, err := stages.Queries(script)
			if err != nil {
				log.Warn("no stock footage queries", zap.Error(err))
				return nil
			}
			res, err := p.stages.Media.Run(gctx, queries, "media_"+runID)
			if err != nil {
				log.Warn("media failed, continuing without", zap.Error(err))
				return nil
			}
			log.Info("media", zap.String("result", res.Summary))
			state.MediaMetadata = res.MetadataPath
			clips = res.Metadata.Files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return audio, images, clips, nil
}

func (p *Pipeline) checkpoint(dir string, state *types.PipelineState, log *zap.Logger) {
	if err := store.SaveState(dir, state); err != nil {
		log.Warn("could not save state", zap.Error(err))
	}
}
