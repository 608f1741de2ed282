package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/store"
	"ai-shorts-factory/internal/types"
)

// Script writes a narration script for a theme or topic.
type Script struct {
	provider ports.ScriptProvider
	cfg      config.ScriptConfig
	dir      string
	now      func() time.Time
	log      *zap.Logger
}

func NewScript(cfg *config.Config, provider ports.ScriptProvider, log *zap.Logger) *Script {
	return &Script{
		provider: provider,
		cfg:      cfg.Script,
		dir:      cfg.Dir("scripts"),
		now:      time.Now,
		log:      log.Named("script"),
	}
}

// Run generates, checks and saves a script. It returns the script and the
// path it was written to.
func (s *Script) Run(ctx context.Context, req ports.ScriptRequest) (*types.ScriptData, string, error) {
	if req.Theme == "" && req.Topic != nil {
		req.Theme = req.Topic.Title
	}
	if strings.TrimSpace(req.Theme) == "" {
		return nil, "", fmt.Errorf("%w: theme is required", ErrInvalidScript)
	}
	if req.TargetDuration <= 0 {
		req.TargetDuration = s.cfg.TargetDuration
	}
	if req.TargetAudience == "" {
		req.TargetAudience = s.cfg.TargetAudience
	}
	if len(req.Keywords) == 0 && req.Topic != nil {
		req.Keywords = req.Topic.Keywords
	}

	script, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("generate script: %w", err)
	}
	if err := ValidateScript(script); err != nil {
		return nil, "", err
	}

	path := store.ScriptPath(s.dir, s.now())
	if err := store.SaveJSON(path, script); err != nil {
		return nil, "", err
	}
	s.log.Info("script saved",
		zap.String("file", path),
		zap.String("title", script.Title),
		zap.Int("segments", len(script.Narration)))
	return script, path, nil
}

// ValidateScript requires a title and at least one segment with text.
func ValidateScript(s *types.ScriptData) error {
	if s == nil {
		return fmt.Errorf("%w: empty", ErrInvalidScript)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: no title", ErrInvalidScript)
	}
	for _, n := range s.Narration {
		if strings.TrimSpace(n.Text) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: no narration text", ErrInvalidScript)
}
