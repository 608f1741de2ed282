// Package reddit pulls hot posts from configured subreddits as topic
// candidates.
package reddit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vartanbeno/go-reddit/v2/reddit"
	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/types"
)

// Source implements ports.TopicSource with a read-only Reddit client.
type Source struct {
	cfg    config.ResearchConfig
	client *reddit.Client
	now    func() time.Time
	log    *zap.Logger
}

// Option adjusts the underlying client.
type Option = reddit.Opt

func WithBaseURL(u string) Option { return reddit.WithBaseURL(u) }

func WithHTTPClient(c *http.Client) Option { return reddit.WithHTTPClient(c) }

func New(cfg config.ResearchConfig, log *zap.Logger, opts ...Option) (*Source, error) {
	ua := cfg.UserAgent
	if ua == "" {
		ua = "ai-shorts-factory/1.0"
	}
	opts = append([]Option{reddit.WithUserAgent(ua)}, opts...)
	client, err := reddit.NewReadonlyClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &Source{cfg: cfg, client: client, now: time.Now, log: log.Named("research")}, nil
}

// Fetch returns recent, popular posts from every subreddit. A failing
// subreddit is logged and skipped.
func (s *Source) Fetch(ctx context.Context) ([]types.Topic, error) {
	limit := s.cfg.PostsPerSource
	if limit <= 0 {
		limit = 25
	}
	var cutoff time.Time
	if s.cfg.LookbackDays > 0 {
		cutoff = s.now().AddDate(0, 0, -s.cfg.LookbackDays)
	}

	var topics []types.Topic
	var failed int
	for _, sub := range s.cfg.Subreddits {
		posts, _, err := s.client.Subreddit.HotPosts(ctx, sub, &reddit.ListOptions{Limit: limit})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("subreddit fetch failed", zap.String("subreddit", sub), zap.Error(err))
			failed++
			continue
		}
		n := 0
		for _, p := range posts {
			if !s.keep(p, cutoff) {
				continue
			}
			topics = append(topics, toTopic(sub, p, s.cfg.HookKeywords))
			n++
		}
		s.log.Info("subreddit scanned", zap.String("subreddit", sub), zap.Int("posts", len(posts)), zap.Int("kept", n))
	}
	if failed > 0 && failed == len(s.cfg.Subreddits) {
		return nil, fmt.Errorf("reddit: all %d subreddits failed", failed)
	}
	return topics, nil
}

func (s *Source) keep(p *reddit.Post, cutoff time.Time) bool {
	if p == nil || p.Stickied || p.NSFW {
		return false
	}
	if p.Score < s.cfg.MinScore || p.NumberOfComments < s.cfg.MinComments {
		return false
	}
	if !cutoff.IsZero() && p.Created != nil && p.Created.Before(cutoff) {
		return false
	}
	return true
}

func toTopic(sub string, p *reddit.Post, hooks []string) types.Topic {
	t := types.Topic{
		ID:        "reddit_" + p.ID,
		Title:     p.Title,
		Body:      p.Body,
		Source:    "r/" + sub,
		SourceURL: "https://reddit.com" + p.Permalink,
		Score:     p.Score,
		Comments:  p.NumberOfComments,
		Keywords:  MatchKeywords(p.Title+" "+p.Body, hooks),
	}
	if p.Created != nil {
		t.Created = p.Created.UTC().Format(time.RFC3339)
	}
	return t
}

// MatchKeywords returns the hooks that occur in text, case-insensitively.
func MatchKeywords(text string, hooks []string) []string {
	text = strings.ToLower(text)
	var found []string
	for _, kw := range hooks {
		if strings.Contains(text, strings.ToLower(kw)) {
			found = append(found, kw)
		}
	}
	return found
}
