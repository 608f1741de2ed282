package timeline

import (
	"errors"
	"math"
	"testing"

	"ai-shorts-factory/internal/types"
)

func sp(s string) *string { return &s }

func TestBuild_StartsAccumulate(t *testing.T) {
	narr := []types.NarrationSegment{
		{Text: "one", Duration: 2.5},
		{Text: "two", Duration: 3.0},
		{Text: "three", Duration: 2.0},
	}
	entries := Build(FromNarration(narr), nil)
	if len(entries) != 3 {
		t.Fatalf("len=%d", len(entries))
	}
	wantStarts := []float64{0, 2.5, 5.5}
	for i, e := range entries {
		if e.Start != wantStarts[i] {
			t.Fatalf("entry %d start=%v want %v", i, e.Start, wantStarts[i])
		}
		if e.Index != i {
			t.Fatalf("entry %d index=%d", i, e.Index)
		}
		if e.Visual != nil {
			t.Fatalf("entry %d: expected no visual", i)
		}
	}
	if got := TotalDuration(entries); got != 7.5 {
		t.Fatalf("total=%v want 7.5", got)
	}
}

func TestBuild_Contiguous(t *testing.T) {
	durs := []float64{0.37, 1.91, 4.2, 0.05, 2.333, 3}
	var segs []Segment
	for i, d := range durs {
		segs = append(segs, Segment{Index: i, Text: "x", Duration: d})
	}
	entries := Build(segs, nil)
	sum := 0.0
	for i, e := range entries {
		if math.Abs(e.Start-sum) > 1e-9 {
			t.Fatalf("entry %d start=%v want %v", i, e.Start, sum)
		}
		if i+1 < len(entries) && e.End() != entries[i+1].Start {
			t.Fatalf("gap after entry %d", i)
		}
		sum += durs[i]
	}
	if err := Validate(entries); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestBuild_Empty(t *testing.T) {
	entries := Build(nil, nil)
	if len(entries) != 0 {
		t.Fatalf("len=%d", len(entries))
	}
	if err := Validate(entries); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err=%v want ErrNoContent", err)
	}
}

func TestBuild_MatchesVisualsByIndex(t *testing.T) {
	segs := []Segment{
		{Index: 0, Duration: 1},
		{Index: 2, Duration: 1},
		{Index: 3, Duration: 1},
	}
	visuals := []types.Visual{
		{Index: 3, Kind: types.AssetImage, FilePath: "img3.png"},
		{Index: 0, Kind: types.AssetVideo, FilePath: "clip0.mp4"},
	}
	entries := Build(segs, visuals)
	if entries[0].Visual == nil || entries[0].Visual.FilePath != "clip0.mp4" {
		t.Fatalf("entry 0 visual=%+v", entries[0].Visual)
	}
	if entries[1].Visual != nil {
		t.Fatalf("entry 1 should fall back to background, got %+v", entries[1].Visual)
	}
	if entries[2].Visual == nil || entries[2].Visual.Kind != types.AssetImage {
		t.Fatalf("entry 2 visual=%+v", entries[2].Visual)
	}
}

func TestFromNarration_DefaultDuration(t *testing.T) {
	segs := FromNarration([]types.NarrationSegment{{Text: "a"}, {Text: "b", Duration: -1}})
	for i, s := range segs {
		if s.Duration != types.DefaultSegmentDuration {
			t.Fatalf("seg %d duration=%v", i, s.Duration)
		}
	}
}

func TestFromAudio_UsesMeasuredDuration(t *testing.T) {
	audio := []types.AudioAsset{
		{Index: 0, FilePath: "a_00.wav", Text: "hi", Duration: 1.25},
		{Index: 2, FilePath: "a_02.wav", Text: "there", Duration: 0.75},
	}
	entries := Build(FromAudio(audio), nil)
	if entries[1].Index != 2 || entries[1].Start != 1.25 || entries[1].AudioPath != "a_02.wav" {
		t.Fatalf("entry=%+v", entries[1])
	}
}

func TestCues_SkipBlankButAdvance(t *testing.T) {
	entries := Build([]Segment{
		{Index: 0, Text: "first", Duration: 2},
		{Index: 1, Text: "   ", Duration: 1.5},
		{Index: 2, Text: "third", Duration: 1},
	}, nil)
	cues := Cues(entries)
	if len(cues) != 2 {
		t.Fatalf("cues=%+v", cues)
	}
	if cues[0] != (types.SubtitleCue{Start: 0, End: 2, Text: "first"}) {
		t.Fatalf("cue 0=%+v", cues[0])
	}
	if cues[1] != (types.SubtitleCue{Start: 3.5, End: 4.5, Text: "third"}) {
		t.Fatalf("cue 1=%+v", cues[1])
	}
}

func TestValidate_DetectsGap(t *testing.T) {
	entries := []types.TimelineEntry{
		{Index: 0, Start: 0, Duration: 1},
		{Index: 1, Start: 1.5, Duration: 1},
	}
	if err := Validate(entries); err == nil {
		t.Fatal("expected gap error")
	}
}

func TestMergeVisuals_ImageWins(t *testing.T) {
	images := []types.ImageAsset{
		{Index: 0, FilePath: sp("img0.png")},
		{Index: 1, Error: sp("boom")},
	}
	clips := []types.SelectedAsset{
		{Index: 0, FilePath: sp("clip0.mp4")},
		{Index: 1, FilePath: sp("clip1.mp4")},
		{Index: 2, Error: sp("no results")},
	}
	got := MergeVisuals(images, clips)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Kind != types.AssetImage || got[0].FilePath != "img0.png" {
		t.Fatalf("index 0=%+v", got[0])
	}
	if got[1].Kind != types.AssetVideo || got[1].FilePath != "clip1.mp4" {
		t.Fatalf("index 1=%+v", got[1])
	}
}
