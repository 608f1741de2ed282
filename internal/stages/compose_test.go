package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"ai-shorts-factory/internal/domain/timeline"
	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

func composeInputs() ([]types.AudioAsset, []types.ImageAsset, []types.SelectedAsset) {
	audio := []types.AudioAsset{
		{Index: 0, FilePath: "a0.wav", Text: "first", Duration: 1.5},
		{Index: 2, FilePath: "a2.wav", Text: "third", Duration: 2.0},
	}
	images := []types.ImageAsset{
		{Index: 2, FilePath: types.StringPtr("i2.png")},
		{Index: 0, Error: types.StringPtr("boom")},
	}
	clips := []types.SelectedAsset{
		{Index: 0, FilePath: types.StringPtr("c0.mp4")},
		{Index: 2, FilePath: types.StringPtr("c2.mp4")},
	}
	return audio, images, clips
}

func TestCompose_Plan(t *testing.T) {
	cfg := testConfig(t)
	c := NewCompose(cfg, &fakeRenderer{}, nil, zaptest.NewLogger(t))
	plan := c.Plan(composeInputs())

	if len(plan.Entries) != 2 {
		t.Fatalf("entries=%+v", plan.Entries)
	}
	e0, e1 := plan.Entries[0], plan.Entries[1]
	if e0.Visual == nil || e0.Visual.Kind != types.AssetVideo || e0.Visual.FilePath != "c0.mp4" {
		t.Fatalf("entry 0 visual=%+v", e0.Visual)
	}
	if e1.Visual == nil || e1.Visual.Kind != types.AssetImage || e1.Start != 1.5 {
		t.Fatalf("entry 1=%+v visual=%+v", e1, e1.Visual)
	}
	if len(plan.Cues) != 2 || plan.Cues[1].End != 3.5 {
		t.Fatalf("cues=%+v", plan.Cues)
	}
	if plan.Style.MarginBottom != 200 || plan.Width != 1080 {
		t.Fatalf("plan=%+v", plan)
	}
}

func TestCompose_RunFromMetadata(t *testing.T) {
	cfg := testConfig(t)
	audio, images, clips := composeInputs()
	audioPath := filepath.Join(cfg.Dir("audio"), "voice_metadata.json")
	imagePath := filepath.Join(cfg.Dir("images"), "image_metadata.json")
	mediaPath := filepath.Join(cfg.Dir("media"), "media_metadata.json")
	for path, v := range map[string]any{
		audioPath: store.AudioMetadata{Files: audio},
		imagePath: store.ImageMetadata{Files: images},
		mediaPath: store.MediaMetadata{Files: clips, TotalFetched: 2},
	} {
		if err := store.SaveJSON(path, v); err != nil {
			t.Fatal(err)
		}
	}

	r := &fakeRenderer{}
	res, err := NewCompose(cfg, r, nil, zaptest.NewLogger(t)).Run(context.Background(), ComposeInput{
		AudioMetadata: audioPath, ImageMetadata: imagePath, MediaMetadata: mediaPath,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(filepath.Base(res.FilePath), "short_") || filepath.Dir(res.FilePath) != cfg.Dir("videos") {
		t.Fatalf("output=%s", res.FilePath)
	}
	if r.plan.SubtitlePath != "" || len(r.plan.Cues) != 2 {
		t.Fatalf("narration captions expected, plan=%+v", r.plan)
	}
}

func TestCompose_Whisper(t *testing.T) {
	cfg := testConfig(t)
	cfg.Subtitles.Engine = "whisper"
	r := &fakeRenderer{}
	audio, images, clips := composeInputs()

	_, err := NewCompose(cfg, r, fakeTranscriber{}, zaptest.NewLogger(t)).Compose(context.Background(), audio, images, clips, "")
	if err != nil {
		t.Fatal(err)
	}
	if r.concatOut == "" || filepath.Base(r.plan.SubtitlePath) != "subtitles.srt" {
		t.Fatalf("concat=%q srt=%q", r.concatOut, r.plan.SubtitlePath)
	}

	// a failing transcription falls back to narration cues
	r2 := &fakeRenderer{}
	_, err = NewCompose(cfg, r2, fakeTranscriber{err: errors.New("no whisper")}, zaptest.NewLogger(t)).Compose(context.Background(), audio, images, clips, "")
	if err != nil {
		t.Fatal(err)
	}
	if r2.plan.SubtitlePath != "" || len(r2.plan.Cues) != 2 {
		t.Fatalf("plan=%+v", r2.plan)
	}
}

func TestCompose_NoContent(t *testing.T) {
	_, err := NewCompose(testConfig(t), &fakeRenderer{}, nil, zaptest.NewLogger(t)).Compose(context.Background(), nil, nil, nil, "")
	if !errors.Is(err, timeline.ErrNoContent) {
		t.Fatalf("err=%v", err)
	}
}

func TestCompose_RunMeasuresMissingDurations(t *testing.T) {
	cfg := testConfig(t)
	wav := filepath.Join(cfg.Dir("audio"), "voice_00.wav")
	if err := os.MkdirAll(filepath.Dir(wav), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(wav, monoWAV(48000), 0o644); err != nil {
		t.Fatal(err)
	}
	meta := filepath.Join(cfg.Dir("audio"), "voice_metadata.json")
	if err := store.SaveJSON(meta, store.AudioMetadata{Files: []types.AudioAsset{
		{Index: 0, FilePath: wav, Text: "hello"},
	}}); err != nil {
		t.Fatal(err)
	}

	r := &fakeRenderer{}
	if _, err := NewCompose(cfg, r, nil, zaptest.NewLogger(t)).Run(context.Background(), ComposeInput{AudioMetadata: meta}); err != nil {
		t.Fatal(err)
	}
	if len(r.plan.Entries) != 1 || r.plan.Entries[0].Duration != 2 {
		t.Fatalf("entries=%+v", r.plan.Entries)
	}

	if err := store.SaveJSON(meta, store.AudioMetadata{Files: []types.AudioAsset{
		{Index: 0, FilePath: filepath.Join(cfg.Dir("audio"), "gone.wav")},
	}}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCompose(cfg, r, nil, zaptest.NewLogger(t)).Run(context.Background(), ComposeInput{AudioMetadata: meta}); err == nil {
		t.Fatal("expected error for unreadable audio")
	}
}
