package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/batch"
	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/domain/assets"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

var ErrNoQueries = errors.New("no search queries: script has no keywords or tags")

// mediaParallelism bounds concurrent search+download pairs.
const mediaParallelism = 3

// Media finds and downloads one stock clip per query.
type Media struct {
	searcher ports.VideoSearcher
	perPage  int
	policy   assets.Policy
	dir      string
	now      func() time.Time
	log      *zap.Logger
}

type MediaResult struct {
	MetadataPath string
	Metadata     store.MediaMetadata
	Summary      string
}

func NewMedia(cfg *config.Config, searcher ports.VideoSearcher, log *zap.Logger) (*Media, error) {
	policy, err := assets.ParsePolicy(cfg.Media.SelectionPolicy)
	if err != nil {
		return nil, err
	}
	perPage := cfg.Media.PerPage
	if perPage <= 0 {
		perPage = 5
	}
	return &Media{
		searcher: searcher,
		perPage:  perPage,
		policy:   policy,
		dir:      cfg.Dir("media"),
		now:      time.Now,
		log:      log.Named("media"),
	}, nil
}

// Queries derives search terms from a script: metadata keywords first, then
// tags.
func Queries(script *types.ScriptData) ([]string, error) {
	q := nonBlank(script.Metadata.Keywords)
	if len(q) == 0 {
		q = nonBlank(script.Tags)
	}
	if len(q) == 0 {
		return nil, ErrNoQueries
	}
	return q, nil
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Run fetches one clip per query. Every query keeps its slot in the
// metadata, failed ones with a null filepath and the error.
func (m *Media) Run(ctx context.Context, queries []string, prefix string) (*MediaResult, error) {
	if prefix == "" {
		prefix = Prefix("media", m.now())
	}

	res, err := batch.Run(ctx, queries, func(ctx context.Context, i int, q string) (types.SelectedAsset, error) {
		results, err := m.searcher.Search(ctx, q, m.perPage)
		if err != nil {
			return types.SelectedAsset{}, err
		}
		pick, ok := assets.Choose(m.policy, results)
		if !ok {
			return types.SelectedAsset{}, fmt.Errorf("no downloadable video for %q", q)
		}
		dest := store.AssetPath(m.dir, prefix, i, ".mp4")
		if err := m.searcher.Download(ctx, pick.File.Link, dest); err != nil {
			return types.SelectedAsset{}, err
		}
		m.log.Debug("clip selected",
			zap.String("query", q),
			zap.Int("pexels_id", pick.Result.ID),
			zap.Float64("score", pick.Score))
		return types.SelectedAsset{
			Index:        i,
			Query:        q,
			FilePath:     types.StringPtr(dest),
			PexelsID:     pick.Result.ID,
			Duration:     pick.Result.Duration,
			Width:        pick.File.Width,
			Height:       pick.File.Height,
			Quality:      pick.File.Quality,
			Photographer: pick.Result.Photographer,
			PexelsURL:    pick.Result.URL,
		}, nil
	}, batch.Options[string, types.SelectedAsset]{
		Name:        "media",
		Parallelism: mediaParallelism,
		Log:         m.log,
	})
	if err != nil {
		return nil, err
	}

	meta := store.MediaMetadata{Files: make([]types.SelectedAsset, 0, len(queries)), TotalFetched: res.SuccessCount}
	for i, it := range res.Items {
		if it.Err != nil {
			meta.Files = append(meta.Files, types.SelectedAsset{Index: i, Query: queries[i], Error: errString(it.Err)})
			continue
		}
		meta.Files = append(meta.Files, it.Value)
	}
	path := store.MetadataPath(m.dir, prefix)
	if err := store.SaveJSON(path, meta); err != nil {
		return nil, err
	}
	m.log.Info("media ready", zap.String("metadata", path), zap.String("result", res.Summary()))
	return &MediaResult{MetadataPath: path, Metadata: meta, Summary: res.Summary()}, nil
}
