package stages

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Output = t.TempDir()
	cfg.Paths.UploadLogDir = filepath.Join(cfg.Paths.Output, "logs")
	return cfg
}

// monoWAV is 24 kHz 16-bit mono silence lasting frames/24000 seconds.
func monoWAV(frames int) []byte {
	dataLen := frames * 2
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataLen))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint32(24000))
	binary.Write(&b, binary.LittleEndian, uint32(48000))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataLen))
	b.Write(make([]byte, dataLen))
	return b.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeProvider struct {
	script *types.ScriptData
	err    error
	got    ports.ScriptRequest
}

func (f *fakeProvider) Generate(_ context.Context, req ports.ScriptRequest) (*types.ScriptData, error) {
	f.got = req
	return f.script, f.err
}

type fakeSynth struct {
	mu         sync.Mutex
	texts      []string
	versionErr error
}

func (f *fakeSynth) Version(context.Context) (string, error) { return "0.14.0", f.versionErr }

func (f *fakeSynth) Synthesize(_ context.Context, text string, _ types.VoiceSettings) ([]byte, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if text == "fail" {
		return nil, errors.New("engine error")
	}
	return monoWAV(36000), nil // 1.5s
}

type fakeImageGen struct {
	t        *testing.T
	mu       sync.Mutex
	requests [][2]int
}

func (f *fakeImageGen) Generate(_ context.Context, prompt string, w, h int) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, [2]int{w, h})
	f.mu.Unlock()
	if prompt == "fail" {
		return nil, errors.New("model overloaded")
	}
	return pngBytes(f.t, 40, 40), nil
}

type fakeSearcher struct {
	mu        sync.Mutex
	results   map[string][]types.SearchResult
	downloads map[string]string
}

func (f *fakeSearcher) Search(_ context.Context, q string, _ int) ([]types.SearchResult, error) {
	if q == "error" {
		return nil, errors.New("search failed")
	}
	return f.results[q], nil
}

func (f *fakeSearcher) Download(_ context.Context, link, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloads == nil {
		f.downloads = map[string]string{}
	}
	f.downloads[dest] = link
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("mp4"), 0o644)
}

type fakeRenderer struct {
	plan      ports.RenderPlan
	concatOut string
	info      types.MediaInfo
	renderErr error
}

func (f *fakeRenderer) Render(_ context.Context, plan ports.RenderPlan) (*types.VideoResult, error) {
	f.plan = plan
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	return &types.VideoResult{FilePath: plan.Output, Duration: 3, Resolution: "1080x1920", FPS: plan.FPS}, nil
}

func (f *fakeRenderer) Probe(context.Context, string) (*types.MediaInfo, error) {
	info := f.info
	return &info, nil
}

func (f *fakeRenderer) ConcatAudio(_ context.Context, _ []types.TimelineEntry, out string) error {
	f.concatOut = out
	return nil
}

type fakeTranscriber struct {
	err error
}

func (f fakeTranscriber) Transcribe(_ context.Context, _, outDir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(outDir, "subtitles.srt"), nil
}

type fakePublisher struct {
	uploads []types.UploadRequest
	updated map[string]types.UploadRequest
}

func (f *fakePublisher) Upload(_ context.Context, _ string, req types.UploadRequest) (*types.UploadResponse, error) {
	f.uploads = append(f.uploads, req)
	resp := &types.UploadResponse{VideoID: "vid1", VideoURL: "https://www.youtube.com/watch?v=vid1", Title: req.Title, Privacy: req.Privacy}
	if req.IsShorts {
		resp.ShortsURL = "https://www.youtube.com/shorts/vid1"
	}
	return resp, nil
}

func (f *fakePublisher) Update(_ context.Context, id string, req types.UploadRequest) error {
	if f.updated == nil {
		f.updated = map[string]types.UploadRequest{}
	}
	f.updated[id] = req
	return nil
}
