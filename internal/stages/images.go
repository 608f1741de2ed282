package stages

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/batch"
	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/domain/assets"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

// Images generates one still per narration segment and cover-fits it to the
// video frame.
type Images struct {
	gen ports.ImageGenerator
	cfg config.ImageConfig
	dir string
	now func() time.Time
	log *zap.Logger
}

type ImagesResult struct {
	MetadataPath string
	Metadata     store.ImageMetadata
	Summary      string
}

func NewImages(cfg *config.Config, gen ports.ImageGenerator, log *zap.Logger) *Images {
	return &Images{gen: gen, cfg: cfg.Image, dir: cfg.Dir("images"), now: time.Now, log: log.Named("images")}
}

type imageItem struct {
	index  int
	prompt string
	text   string
}

type imageOut struct {
	png  []byte
	path string
}

// Run generates images for every segment with an image prompt. Failed
// segments stay in the metadata with a null filepath so indices line up with
// the narration.
func (s *Images) Run(ctx context.Context, script *types.ScriptData, prefix string) (*ImagesResult, error) {
	if prefix == "" {
		prefix = Prefix("image", s.now())
	}
	reqW, reqH := assets.FitWithinLimit(s.cfg.Width, s.cfg.Height, s.cfg.MaxWidth, s.cfg.MaxHeight)

	var items []imageItem
	for i, n := range script.Narration {
		if strings.TrimSpace(n.ImagePrompt) == "" {
			s.log.Warn("segment has no image prompt", zap.Int("index", i))
			continue
		}
		items = append(items, imageItem{index: i, prompt: n.ImagePrompt, text: n.Text})
	}

	res, err := batch.Run(ctx, items, func(ctx context.Context, _ int, it imageItem) (imageOut, error) {
		raw, err := s.gen.Generate(ctx, it.prompt, reqW, reqH)
		if err != nil {
			return imageOut{}, err
		}
		png, err := assets.CoverResizeBytes(raw, s.cfg.Width, s.cfg.Height)
		if err != nil {
			return imageOut{}, err
		}
		return imageOut{png: png}, nil
	}, batch.Options[imageItem, imageOut]{
		Name: "images",
		Persist: func(_ context.Context, i int, out imageOut) (imageOut, error) {
			if err := os.MkdirAll(s.dir, 0755); err != nil {
				return out, err
			}
			out.path = store.AssetPath(s.dir, prefix, items[i].index, ".png")
			if err := os.WriteFile(out.path, out.png, 0644); err != nil {
				return out, err
			}
			out.png = nil
			return out, nil
		},
		Log: s.log,
	})
	if err != nil {
		return nil, err
	}

	meta := store.ImageMetadata{
		ScriptTitle: script.Title,
		Files:       make([]types.ImageAsset, 0, len(items)),
		Settings: store.ImageSettings{
			Backend:       s.cfg.Backend,
			Model:         s.cfg.Model,
			Width:         s.cfg.Width,
			Height:        s.cfg.Height,
			RequestWidth:  reqW,
			RequestHeight: reqH,
		},
	}
	for i, it := range res.Items {
		asset := types.ImageAsset{Index: items[i].index, Prompt: items[i].prompt, Text: items[i].text, Error: errString(it.Err)}
		if it.Err == nil {
			asset.FilePath = types.StringPtr(it.Value.path)
		}
		meta.Files = append(meta.Files, asset)
	}
	path := store.MetadataPath(s.dir, prefix)
	if err := store.SaveJSON(path, meta); err != nil {
		return nil, err
	}
	s.log.Info("images ready", zap.String("metadata", path), zap.String("result", res.Summary()))
	return &ImagesResult{MetadataPath: path, Metadata: meta, Summary: res.Summary()}, nil
}
