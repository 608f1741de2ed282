// Package stages runs one pipeline step each: script, voice, images, media,
// compose and publish. Every stage reads and writes the JSON hand-off files
// in the output tree so it can be run on its own from the CLI.
package stages

import (
	"errors"
	"time"

	"ai-shorts-factory/internal/store"
)

var ErrInvalidScript = errors.New("invalid script")

// Prefix names a stage's output files, e.g. voice_20260310_120000.
func Prefix(kind string, t time.Time) string {
	return kind + "_" + store.Stamp(t)
}

// errString returns nil for a nil error.
func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
