package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ai-shorts-factory/internal/types"
)

func TestPaths(t *testing.T) {
	if got := AssetPath("out/audio", "narration", 3, ".wav"); got != filepath.Join("out/audio", "narration_03.wav") {
		t.Fatalf("AssetPath=%s", got)
	}
	if got := MetadataPath("out/images", "image"); got != filepath.Join("out/images", "image_metadata.json") {
		t.Fatalf("MetadataPath=%s", got)
	}
	ts := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	if got := ScriptPath("out/scripts", ts); got != filepath.Join("out/scripts", "script_20240309_070501.json") {
		t.Fatalf("ScriptPath=%s", got)
	}
}

func TestMediaMetadataShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media_metadata.json")
	errMsg := "no results"
	meta := MediaMetadata{
		Files: []types.SelectedAsset{
			{Index: 0, Query: "ocean", FilePath: types.StringPtr("media_00.mp4"), PexelsID: 42, Quality: types.QualityHD},
			{Index: 1, Query: "moon", Error: &errMsg},
		},
		TotalFetched: 1,
	}
	if err := SaveJSON(path, meta); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	files := generic["files"].([]any)
	failed := files[1].(map[string]any)
	if v, ok := failed["filepath"]; !ok || v != nil {
		t.Fatalf("failed entry must carry filepath: null, got %v", failed)
	}
	if failed["error"] != "no results" {
		t.Fatalf("error=%v", failed["error"])
	}
	ok := files[0].(map[string]any)
	if v, present := ok["error"]; !present || v != nil {
		t.Fatalf("ok entry must carry error: null, got %v", ok)
	}
	if generic["total_fetched"].(float64) != 1 {
		t.Fatalf("total_fetched=%v", generic["total_fetched"])
	}

	back, err := LoadJSON[MediaMetadata](path)
	if err != nil {
		t.Fatal(err)
	}
	if *back.Files[0].FilePath != "media_00.mp4" || back.Files[1].FilePath != nil {
		t.Fatalf("back=%+v", back)
	}
}

func TestSaveJSON_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := SaveJSON(filepath.Join(dir, "nested", "a.json"), map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%v", entries)
	}
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.json")
	if err := SaveJSON(path, types.ScriptData{
		Title:     "t",
		Narration: []types.NarrationSegment{{Text: "a"}, {Text: "b", Duration: 4}},
	}); err != nil {
		t.Fatal(err)
	}
	s, err := LoadScript(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Narration[0].Duration != types.DefaultSegmentDuration || s.Narration[1].Duration != 4 {
		t.Fatalf("narration=%+v", s.Narration)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := SaveJSON(empty, types.ScriptData{Title: "t"}); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScript(empty); err == nil {
		t.Fatal("expected error for empty narration")
	}
}
