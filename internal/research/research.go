// Package research picks the next unused topic to turn into a short.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/types"
)

var (
	ErrNoTopics      = errors.New("no topics found")
	ErrAllTopicsUsed = errors.New("all candidate topics have been used already")
)

// Finder scores candidates from a TopicSource and remembers what it handed out.
type Finder struct {
	source  ports.TopicSource
	hooks   []string
	usedLog string
	now     func() time.Time
	log     *zap.Logger

	mu   sync.Mutex
	used map[string]bool
}

func NewFinder(source ports.TopicSource, hooks []string, usedLog string, log *zap.Logger) *Finder {
	return &Finder{
		source:  source,
		hooks:   hooks,
		usedLog: usedLog,
		now:     time.Now,
		log:     log.Named("research"),
		used:    LoadUsed(usedLog),
	}
}

// Next returns the best-scoring topic not used before and records it.
func (f *Finder) Next(ctx context.Context) (*types.Topic, error) {
	candidates, err := f.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoTopics
	}

	for i := range candidates {
		if candidates[i].ID == "" {
			candidates[i].ID = "topic_" + uuid.NewString()[:8]
		}
		candidates[i].Score = Score(candidates[i], f.hooks, f.now())
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range candidates {
		if f.used[c.ID] {
			continue
		}
		f.used[c.ID] = true
		if err := f.saveUsed(); err != nil {
			return nil, err
		}
		f.log.Info("selected topic", zap.String("title", c.Title), zap.Int("score", c.Score))
		topic := c
		return &topic, nil
	}
	return nil, ErrAllTopicsUsed
}

// Score ranks a topic: the source's own popularity plus hook-keyword, recency
// and body-length bonuses.
func Score(t types.Topic, hooks []string, now time.Time) int {
	score := t.Score

	text := strings.ToLower(t.Title + " " + t.Body)
	for _, kw := range hooks {
		if strings.Contains(text, strings.ToLower(kw)) {
			score += 50
		}
	}

	if created, err := time.Parse(time.RFC3339, t.Created); err == nil && now.Sub(created) < 72*time.Hour {
		score += 200
	}

	if len(t.Body) > 500 {
		score += 75
	}
	if len(t.Body) > 1500 {
		score += 75
	}
	return score
}

// LoadUsed reads the used-topics log. A missing or corrupt log is empty.
func LoadUsed(path string) map[string]bool {
	used := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return used
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return used
	}
	for _, id := range ids {
		used[id] = true
	}
	return used
}

func (f *Finder) saveUsed() error {
	if f.usedLog == "" {
		return nil
	}
	ids := make([]string, 0, len(f.used))
	for id := range f.used {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.usedLog), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(f.usedLog, data, 0644); err != nil {
		return fmt.Errorf("save used topics: %w", err)
	}
	return nil
}

// Theme turns a topic into a script theme.
func Theme(t *types.Topic) string {
	if t == nil {
		return ""
	}
	return strings.TrimSpace(t.Title)
}
