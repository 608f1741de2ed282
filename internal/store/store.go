package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ai-shorts-factory/internal/types"
)

// StateFile is the name of the per-run state record.
const StateFile = "pipeline_state.json"

// AudioMetadata is the voice stage hand-off file.
type AudioMetadata struct {
	ScriptTitle   string              `json:"script_title"`
	TotalDuration float64             `json:"total_duration"`
	Files         []types.AudioAsset  `json:"files"`
	Settings      types.VoiceSettings `json:"settings"`
}

// ImageSettings records how images were produced.
type ImageSettings struct {
	Backend       string `json:"backend"`
	Model         string `json:"model"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	RequestWidth  int    `json:"request_width"`
	RequestHeight int    `json:"request_height"`
}

// ImageMetadata is the image stage hand-off file.
type ImageMetadata struct {
	ScriptTitle string             `json:"script_title"`
	Files       []types.ImageAsset `json:"files"`
	Settings    ImageSettings      `json:"settings"`
}

// MediaMetadata is the stock-footage stage hand-off file.
type MediaMetadata struct {
	Files        []types.SelectedAsset `json:"files"`
	TotalFetched int                   `json:"total_fetched"`
}

// MetadataPath is {dir}/{prefix}_metadata.json.
func MetadataPath(dir, prefix string) string {
	return filepath.Join(dir, prefix+"_metadata.json")
}

// AssetPath is {dir}/{prefix}_{index:02d}{ext}.
func AssetPath(dir, prefix string, index int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%02d%s", prefix, index, ext))
}

// Stamp formats t the way output files are named.
func Stamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// ScriptPath is {dir}/script_{stamp}.json.
func ScriptPath(dir string, t time.Time) string {
	return filepath.Join(dir, "script_"+Stamp(t)+".json")
}

// SaveJSON writes v as indented JSON. The file is replaced atomically so a
// reader never sees a partial hand-off file.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadJSON reads a JSON file into a fresh T.
func LoadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// LoadScript reads a script file and checks it has something to narrate.
func LoadScript(path string) (*types.ScriptData, error) {
	s, err := LoadJSON[types.ScriptData](path)
	if err != nil {
		return nil, err
	}
	if len(s.Narration) == 0 {
		return nil, fmt.Errorf("script %s has no narration", path)
	}
	for i := range s.Narration {
		if s.Narration[i].Duration <= 0 {
			s.Narration[i].Duration = types.DefaultSegmentDuration
		}
	}
	return &s, nil
}

// SaveState writes the run state into dir.
func SaveState(dir string, st *types.PipelineState) error {
	return SaveJSON(filepath.Join(dir, StateFile), st)
}
