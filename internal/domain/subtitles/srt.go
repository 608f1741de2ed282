package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"ai-shorts-factory/internal/types"
)

// FormatSRTTime renders seconds as HH:MM:SS,mmm.
func FormatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms %= 3_600_000
	m := ms / 60_000
	ms %= 60_000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ParseSRTTime is the inverse of FormatSRTTime. A dot is accepted in place of
// the comma.
func ParseSRTTime(s string) (float64, error) {
	s = strings.TrimSpace(strings.Replace(s, ".", ",", 1))
	hms, msPart, ok := strings.Cut(s, ",")
	if !ok {
		return 0, fmt.Errorf("srt time %q: missing milliseconds", s)
	}
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("srt time %q: want HH:MM:SS", s)
	}
	var total float64
	for i, unit := range []float64{3600, 60, 1} {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, fmt.Errorf("srt time %q: %w", s, err)
		}
		total += float64(n) * unit
	}
	ms, err := strconv.Atoi(msPart)
	if err != nil {
		return 0, fmt.Errorf("srt time %q: %w", s, err)
	}
	return total + float64(ms)/1000, nil
}

// WriteSRT writes cues numbered from 1.
func WriteSRT(w io.Writer, cues []types.SubtitleCue) error {
	bw := bufio.NewWriter(w)
	for i, c := range cues {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatSRTTime(c.Start), FormatSRTTime(c.End), c.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSRTFile writes cues to path.
func WriteSRTFile(path string, cues []types.SubtitleCue) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSRT(f, cues); err != nil {
		f.Close()
		return fmt.Errorf("write srt %s: %w", path, err)
	}
	return f.Close()
}

// ParseSRT reads cues back. Multi-line captions are joined with "\n".
func ParseSRT(r io.Reader) ([]types.SubtitleCue, error) {
	var (
		cues  []types.SubtitleCue
		cur   *types.SubtitleCue
		lines []string
		state int // 0 number, 1 timing, 2 text
	)
	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(lines, "\n")
			cues = append(cues, *cur)
		}
		cur, lines, state = nil, nil, 0
	}

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		switch state {
		case 0:
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, err := strconv.Atoi(strings.TrimSpace(line)); err != nil {
				return nil, fmt.Errorf("line %d: expected cue number, got %q", lineNo, line)
			}
			state = 1
		case 1:
			from, to, ok := strings.Cut(line, "-->")
			if !ok {
				return nil, fmt.Errorf("line %d: expected timing, got %q", lineNo, line)
			}
			start, err := ParseSRTTime(from)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			end, err := ParseSRTTime(to)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur = &types.SubtitleCue{Start: start, End: end}
			state = 2
		case 2:
			if strings.TrimSpace(line) == "" {
				flush()
				continue
			}
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if state == 1 {
		return nil, fmt.Errorf("line %d: cue without timing", lineNo)
	}
	flush()
	return cues, nil
}

// ValidateSRT checks that path parses, is non-empty and that every cue ends
// after it starts.
func ValidateSRT(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cues, err := ParseSRT(f)
	if err != nil {
		return fmt.Errorf("srt %s: %w", path, err)
	}
	if len(cues) == 0 {
		return fmt.Errorf("srt %s: no cues", path)
	}
	for i, c := range cues {
		if c.End <= c.Start {
			return fmt.Errorf("srt %s: cue %d ends at %s before it starts at %s",
				path, i+1, FormatSRTTime(c.End), FormatSRTTime(c.Start))
		}
	}
	return nil
}

// EscapeFilterPath quotes a path for ffmpeg's subtitles filter.
func EscapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "\\'")
	return path
}
