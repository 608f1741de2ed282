package stages

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"go.uber.org/zap/zaptest"

	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

func TestVoice_Run(t *testing.T) {
	cfg := testConfig(t)
	synth := &fakeSynth{}
	script := sampleScript()
	script.Narration = append(script.Narration, types.NarrationSegment{Text: "fail"})

	res, err := NewVoice(cfg, synth, zaptest.NewLogger(t)).Run(context.Background(), script, "voice_test")
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary != "2/3 completed" {
		t.Fatalf("summary=%q", res.Summary)
	}
	if len(synth.texts) != 3 {
		t.Fatalf("empty text should be skipped, synthesized %v", synth.texts)
	}

	meta, err := store.LoadJSON[store.AudioMetadata](res.MetadataPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Files) != 2 || meta.Files[0].Index != 0 || meta.Files[1].Index != 2 {
		t.Fatalf("files=%+v", meta.Files)
	}
	if math.Abs(meta.TotalDuration-3.0) > 1e-9 || math.Abs(meta.Files[1].Duration-1.5) > 1e-9 {
		t.Fatalf("durations total=%v files=%+v", meta.TotalDuration, meta.Files)
	}
	if meta.Files[1].FilePath != store.AssetPath(cfg.Dir("audio"), "voice_test", 2, ".wav") {
		t.Fatalf("path=%s", meta.Files[1].FilePath)
	}
	if _, err := os.Stat(meta.Files[1].FilePath); err != nil {
		t.Fatal(err)
	}
	if meta.Settings.SpeakerID != 3 || meta.ScriptTitle != "Octopus facts" {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestVoice_EngineDown(t *testing.T) {
	synth := &fakeSynth{versionErr: errors.New("connection refused")}
	_, err := NewVoice(testConfig(t), synth, zaptest.NewLogger(t)).Run(context.Background(), sampleScript(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(synth.texts) != 0 {
		t.Fatal("no synthesis expected when the engine is down")
	}
}
