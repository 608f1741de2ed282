// Package whisper transcribes narration audio into SRT captions with the
// openai-whisper CLI.
package whisper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/domain/subtitles"
	"ai-shorts-factory/internal/ports/adapters/ffmpeg"
)

// Transcriber implements ports.Transcriber.
type Transcriber struct {
	command  string
	model    string
	language string
	run      ffmpeg.Runner
	log      *zap.Logger
}

func New(paths config.PathsConfig, cfg config.SubtitlesConfig, log *zap.Logger) *Transcriber {
	return &Transcriber{
		command:  paths.WhisperCommand,
		model:    cfg.WhisperModel,
		language: cfg.Language,
		run:      ffmpeg.ExecRunner,
		log:      log.Named("whisper"),
	}
}

// WithRunner swaps the command runner.
func (t *Transcriber) WithRunner(run ffmpeg.Runner) *Transcriber {
	t.run = run
	return t
}

// Args is the whisper command line for one audio file.
func (t *Transcriber) Args(audioPath, outDir string) []string {
	args := []string{
		audioPath,
		"--model", t.model,
		"--output_format", "srt",
		"--output_dir", outDir,
	}
	if t.language != "" {
		args = append(args, "--language", t.language)
	}
	return args
}

// Transcribe writes outDir/subtitles.srt and returns its path.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	t.log.Info("transcribing", zap.String("audio", audioPath), zap.String("model", t.model))

	if _, err := t.run(ctx, t.command, t.Args(audioPath, outDir)...); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	// whisper names its output after the input file
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	produced := filepath.Join(outDir, base+".srt")
	srtPath := filepath.Join(outDir, "subtitles.srt")
	if produced != srtPath {
		if err := os.Rename(produced, srtPath); err != nil {
			return "", fmt.Errorf("whisper output: %w", err)
		}
	}
	if err := subtitles.ValidateSRT(srtPath); err != nil {
		return "", err
	}
	t.log.Info("captions ready", zap.String("file", srtPath))
	return srtPath, nil
}
