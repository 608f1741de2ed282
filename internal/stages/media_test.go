package stages

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

func TestQueries_Fallback(t *testing.T) {
	s := sampleScript()
	q, err := Queries(s)
	if err != nil || len(q) != 2 || q[0] != "octopus" {
		t.Fatalf("q=%v err=%v", q, err)
	}

	s.Metadata.Keywords = []string{" "}
	q, err = Queries(s)
	if err != nil || len(q) != 2 || q[0] != "ocean" {
		t.Fatalf("tags fallback q=%v err=%v", q, err)
	}

	s.Tags = nil
	if _, err := Queries(s); !errors.Is(err, ErrNoQueries) {
		t.Fatalf("err=%v", err)
	}
}

func TestMedia_Run(t *testing.T) {
	cfg := testConfig(t)
	d := 20.0
	searcher := &fakeSearcher{results: map[string][]types.SearchResult{
		"ocean": {{
			ID: 7, URL: "https://www.pexels.com/video/7", Duration: 20, Photographer: "Ana",
			Files: []types.Candidate{
				{Width: 1920, Height: 1080, Quality: types.QualityHD, Link: "landscape.mp4"},
				{Width: 1080, Height: 1920, Quality: types.QualityHD, Duration: &d, Link: "portrait.mp4"},
			},
		}},
	}}

	m, err := NewMedia(cfg, searcher, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	res, err := m.Run(context.Background(), []string{"ocean", "nothing", "error"}, "media_test")
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary != "1/3 completed" {
		t.Fatalf("summary=%q", res.Summary)
	}

	meta, err := store.LoadJSON[store.MediaMetadata](res.MetadataPath)
	if err != nil {
		t.Fatal(err)
	}
	if meta.TotalFetched != 1 || len(meta.Files) != 3 {
		t.Fatalf("meta=%+v", meta)
	}
	for i, f := range meta.Files {
		if f.Index != i {
			t.Fatalf("file %d has index %d", i, f.Index)
		}
	}
	got := meta.Files[0]
	if got.FilePath == nil || *got.FilePath != store.AssetPath(cfg.Dir("media"), "media_test", 0, ".mp4") {
		t.Fatalf("got=%+v", got)
	}
	if searcher.downloads[*got.FilePath] != "portrait.mp4" {
		t.Fatalf("downloaded %q", searcher.downloads[*got.FilePath])
	}
	if got.PexelsID != 7 || got.Photographer != "Ana" || got.Width != 1080 {
		t.Fatalf("got=%+v", got)
	}
	if meta.Files[1].Error == nil || meta.Files[2].Error == nil || meta.Files[1].FilePath != nil {
		t.Fatalf("failures=%+v", meta.Files[1:])
	}
}

func TestMedia_UnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Media.SelectionPolicy = "random"
	if _, err := NewMedia(cfg, &fakeSearcher{}, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected error")
	}
}
