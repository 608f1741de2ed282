package timeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"ai-shorts-factory/internal/types"
)

// ErrNoContent is returned when there is nothing to compose.
var ErrNoContent = errors.New("no content to compose")

// Segment is one timed slot of narration. Index is the position the segment
// had in the script and is the key visuals are matched on.
type Segment struct {
	Index     int
	Text      string
	Duration  float64
	AudioPath string
}

// FromNarration uses the requested script durations. Missing or
// non-positive durations fall back to types.DefaultSegmentDuration.
func FromNarration(narration []types.NarrationSegment) []Segment {
	segs := make([]Segment, 0, len(narration))
	for i, n := range narration {
		d := n.Duration
		if d <= 0 {
			d = types.DefaultSegmentDuration
		}
		segs = append(segs, Segment{Index: i, Text: n.Text, Duration: d})
	}
	return segs
}

// FromAudio uses the measured WAV durations, which are authoritative once
// the voice stage has run.
func FromAudio(audio []types.AudioAsset) []Segment {
	segs := make([]Segment, 0, len(audio))
	for _, a := range audio {
		segs = append(segs, Segment{Index: a.Index, Text: a.Text, Duration: a.Duration, AudioPath: a.FilePath})
	}
	return segs
}

// Build lays segments end to end starting at zero. Each entry starts where
// the previous one ended. A segment with no visual at its index gets a nil
// Visual and is rendered over the background color.
func Build(segs []Segment, visuals []types.Visual) []types.TimelineEntry {
	byIndex := make(map[int]types.Visual, len(visuals))
	for _, v := range visuals {
		if _, seen := byIndex[v.Index]; !seen {
			byIndex[v.Index] = v
		}
	}

	entries := make([]types.TimelineEntry, 0, len(segs))
	cursor := 0.0
	for _, s := range segs {
		e := types.TimelineEntry{
			Index:        s.Index,
			Start:        cursor,
			Duration:     s.Duration,
			AudioPath:    s.AudioPath,
			SubtitleText: s.Text,
		}
		if v, ok := byIndex[s.Index]; ok {
			e.Visual = &v
		}
		entries = append(entries, e)
		cursor += s.Duration
	}
	return entries
}

// Cues derives subtitle cues from the same cursor walk. Entries with blank
// text get no cue but still take up their time.
func Cues(entries []types.TimelineEntry) []types.SubtitleCue {
	var cues []types.SubtitleCue
	cursor := 0.0
	for _, e := range entries {
		if text := strings.TrimSpace(e.SubtitleText); text != "" {
			cues = append(cues, types.SubtitleCue{Start: cursor, End: cursor + e.Duration, Text: text})
		}
		cursor += e.Duration
	}
	return cues
}

// TotalDuration is the end of the last entry.
func TotalDuration(entries []types.TimelineEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].End()
}

const tolerance = 1e-6

// Validate checks a plan loaded from disk: it must be non-empty, start at
// zero and have no gaps or overlaps.
func Validate(entries []types.TimelineEntry) error {
	if len(entries) == 0 {
		return ErrNoContent
	}
	cursor := 0.0
	for i, e := range entries {
		if e.Duration < 0 {
			return fmt.Errorf("entry %d: negative duration %.3f", i, e.Duration)
		}
		if math.Abs(e.Start-cursor) > tolerance {
			return fmt.Errorf("entry %d: starts at %.3f, expected %.3f", i, e.Start, cursor)
		}
		cursor = e.End()
	}
	return nil
}

// MergeVisuals combines generated images and fetched stock clips into one
// visual per index. A successful image takes precedence over a clip.
func MergeVisuals(images []types.ImageAsset, clips []types.SelectedAsset) []types.Visual {
	byIndex := map[int]types.Visual{}
	order := []int{}
	put := func(v types.Visual) {
		if _, ok := byIndex[v.Index]; ok {
			return
		}
		byIndex[v.Index] = v
		order = append(order, v.Index)
	}
	for _, img := range images {
		if img.FilePath != nil && img.Error == nil {
			put(types.Visual{Index: img.Index, Kind: types.AssetImage, FilePath: *img.FilePath})
		}
	}
	for _, c := range clips {
		if c.FilePath != nil && c.Error == nil {
			put(types.Visual{Index: c.Index, Kind: types.AssetVideo, FilePath: *c.FilePath})
		}
	}
	out := make([]types.Visual, 0, len(order))
	for _, i := range order {
		out = append(out, byIndex[i])
	}
	return out
}
