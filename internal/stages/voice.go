package stages

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/batch"
	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/media"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

// healthChecker is implemented by engines that expose a version endpoint.
type healthChecker interface {
	Version(ctx context.Context) (string, error)
}

// Voice synthesizes one WAV per narration segment.
type Voice struct {
	synth    ports.SpeechSynthesizer
	settings types.VoiceSettings
	dir      string
	now      func() time.Time
	log      *zap.Logger
}

// VoiceResult is what the voice stage produced.
type VoiceResult struct {
	MetadataPath string
	Metadata     store.AudioMetadata
	Summary      string
}

func NewVoice(cfg *config.Config, synth ports.SpeechSynthesizer, log *zap.Logger) *Voice {
	return &Voice{
		synth: synth,
		settings: types.VoiceSettings{
			SpeakerID:  cfg.Voice.SpeakerID,
			Speed:      cfg.Voice.Speed,
			Pitch:      cfg.Voice.Pitch,
			Intonation: cfg.Voice.Intonation,
			Volume:     cfg.Voice.Volume,
		},
		dir: cfg.Dir("audio"),
		now: time.Now,
		log: log.Named("audio"),
	}
}

type voiceItem struct {
	index   int
	segment types.NarrationSegment
}

type voiceOut struct {
	wav   []byte
	asset types.AudioAsset
}

// Run synthesizes every segment with text. Each WAV is written as soon as it
// arrives and its duration is measured from the file header.
func (v *Voice) Run(ctx context.Context, script *types.ScriptData, prefix string) (*VoiceResult, error) {
	if prefix == "" {
		prefix = Prefix("voice", v.now())
	}
	if hc, ok := v.synth.(healthChecker); ok {
		ver, err := hc.Version(ctx)
		if err != nil {
			return nil, fmt.Errorf("voice engine unreachable: %w", err)
		}
		v.log.Info("voice engine ready", zap.String("version", ver))
	}

	var items []voiceItem
	for i, n := range script.Narration {
		if strings.TrimSpace(n.Text) == "" {
			v.log.Warn("skipping segment without text", zap.Int("index", i))
			continue
		}
		items = append(items, voiceItem{index: i, segment: n})
	}

	res, err := batch.Run(ctx, items, func(ctx context.Context, _ int, it voiceItem) (voiceOut, error) {
		wav, err := v.synth.Synthesize(ctx, it.segment.Text, v.settings)
		if err != nil {
			return voiceOut{}, err
		}
		d, err := media.WAVDuration(wav)
		if err != nil {
			return voiceOut{}, fmt.Errorf("segment %d: %w", it.index, err)
		}
		return voiceOut{wav: wav, asset: types.AudioAsset{
			Index:       it.index,
			Text:        it.segment.Text,
			Duration:    d,
			ImagePrompt: it.segment.ImagePrompt,
		}}, nil
	}, batch.Options[voiceItem, voiceOut]{
		Name: "voice",
		Persist: func(_ context.Context, _ int, out voiceOut) (voiceOut, error) {
			out.asset.FilePath = store.AssetPath(v.dir, prefix, out.asset.Index, ".wav")
			if err := os.MkdirAll(v.dir, 0755); err != nil {
				return out, err
			}
			if err := os.WriteFile(out.asset.FilePath, out.wav, 0644); err != nil {
				return out, err
			}
			out.wav = nil
			return out, nil
		},
		Log: v.log,
	})
	if err != nil {
		return nil, err
	}

	meta := store.AudioMetadata{ScriptTitle: script.Title, Files: []types.AudioAsset{}, Settings: v.settings}
	for _, it := range res.Items {
		if it.Err != nil {
			continue
		}
		meta.Files = append(meta.Files, it.Value.asset)
		meta.TotalDuration += it.Value.asset.Duration
	}
	path := store.MetadataPath(v.dir, prefix)
	if err := store.SaveJSON(path, meta); err != nil {
		return nil, err
	}
	v.log.Info("audio ready",
		zap.String("metadata", path),
		zap.Int("files", len(meta.Files)),
		zap.Float64("total_duration", meta.TotalDuration))
	return &VoiceResult{MetadataPath: path, Metadata: meta, Summary: res.Summary()}, nil
}
