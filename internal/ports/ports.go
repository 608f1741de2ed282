// Package ports declares the remote collaborators the stages depend on.
// Implementations live under ports/adapters.
package ports

import (
	"context"

	"ai-shorts-factory/internal/types"
)

// ScriptRequest describes the script to write.
type ScriptRequest struct {
	Theme          string
	Keywords       []string
	TargetDuration int
	TargetAudience string
	Language       string
	Topic          *types.Topic
}

type ScriptProvider interface {
	Generate(ctx context.Context, req ScriptRequest) (*types.ScriptData, error)
}

// SpeechSynthesizer returns WAV bytes for text. Callers measure the
// duration themselves.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, voice types.VoiceSettings) ([]byte, error)
}

type VideoSearcher interface {
	Search(ctx context.Context, query string, perPage int) ([]types.SearchResult, error)
	Download(ctx context.Context, link, dest string) error
}

// ImageGenerator returns encoded image bytes (PNG or JPEG) for prompt at
// roughly the requested size.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, width, height int) ([]byte, error)
}

// SubtitleStyle is passed through to the renderer's caption burn.
type SubtitleStyle struct {
	FontFile     string
	FontSize     int
	StrokeWidth  int
	MarginBottom int
}

// RenderPlan is everything the renderer needs for one video.
type RenderPlan struct {
	Entries      []types.TimelineEntry
	Cues         []types.SubtitleCue
	SubtitlePath string
	Style        SubtitleStyle
	Output       string
	WorkDir      string
	Width        int
	Height       int
	FPS          int
	Codec        string
	AudioCodec   string
	Background   string
}

type Renderer interface {
	Render(ctx context.Context, plan RenderPlan) (*types.VideoResult, error)
	Probe(ctx context.Context, path string) (*types.MediaInfo, error)
	// ConcatAudio joins the entries' narration in timeline order, padding
	// entries without audio with silence.
	ConcatAudio(ctx context.Context, entries []types.TimelineEntry, out string) error
}

// Transcriber writes an SRT for audioPath into outDir and returns its path.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, outDir string) (string, error)
}

type Publisher interface {
	Upload(ctx context.Context, videoPath string, req types.UploadRequest) (*types.UploadResponse, error)
	Update(ctx context.Context, videoID string, req types.UploadRequest) error
}

type TopicSource interface {
	Fetch(ctx context.Context) ([]types.Topic, error)
}
