// Package ffmpeg renders timeline plans into vertical MP4s with the ffmpeg
// and ffprobe binaries.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/domain/subtitles"
	"ai-shorts-factory/internal/domain/timeline"
	"ai-shorts-factory/internal/media"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/types"
)

// Runner executes a binary and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command and folds the tail of stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, tail(stderr.String(), 600))
	}
	return stdout.Bytes(), nil
}

// silenceRate matches VOICEVOX output so concatenated audio needs no resample.
const silenceRate = 24000

// Renderer implements ports.Renderer.
type Renderer struct {
	ffmpeg  string
	ffprobe string
	run     Runner
	log     *zap.Logger
}

func New(paths config.PathsConfig, log *zap.Logger) *Renderer {
	return &Renderer{
		ffmpeg:  paths.FFmpeg,
		ffprobe: paths.FFprobe,
		run:     ExecRunner,
		log:     log.Named("render"),
	}
}

// WithRunner swaps the command runner.
func (r *Renderer) WithRunner(run Runner) *Renderer {
	r.run = run
	return r
}

// Render builds one clip per timeline entry, joins them, lays the narration
// under them and optionally burns captions.
func (r *Renderer) Render(ctx context.Context, plan ports.RenderPlan) (*types.VideoResult, error) {
	if err := timeline.Validate(plan.Entries); err != nil {
		return nil, err
	}
	if plan.WorkDir == "" {
		plan.WorkDir = filepath.Join(filepath.Dir(plan.Output), "tmp")
	}
	if err := os.MkdirAll(plan.WorkDir, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(plan.Output), 0755); err != nil {
		return nil, err
	}

	r.log.Info("rendering", zap.Int("segments", len(plan.Entries)), zap.String("output", plan.Output))

	var clips []string
	for i, e := range plan.Entries {
		clip := filepath.Join(plan.WorkDir, fmt.Sprintf("segment_%02d.mp4", i))
		if _, err := r.run(ctx, r.ffmpeg, SegmentArgs(plan, e, clip)...); err != nil {
			return nil, fmt.Errorf("segment %d: %w", e.Index, err)
		}
		clips = append(clips, clip)
	}

	listFile := filepath.Join(plan.WorkDir, "segments.txt")
	if err := writeConcatList(listFile, clips); err != nil {
		return nil, err
	}
	visuals := filepath.Join(plan.WorkDir, "visuals.mp4")
	if _, err := r.run(ctx, r.ffmpeg, "-y", "-f", "concat", "-safe", "0", "-i", listFile, "-c", "copy", visuals); err != nil {
		return nil, fmt.Errorf("concat segments: %w", err)
	}

	narration := filepath.Join(plan.WorkDir, "narration.wav")
	if err := r.ConcatAudio(ctx, plan.Entries, narration); err != nil {
		return nil, err
	}

	subPath := plan.SubtitlePath
	if subPath == "" && len(plan.Cues) > 0 {
		subPath = filepath.Join(plan.WorkDir, "subtitles.srt")
		if err := subtitles.WriteSRTFile(subPath, plan.Cues); err != nil {
			return nil, err
		}
	}
	if _, err := r.run(ctx, r.ffmpeg, FinalArgs(plan, visuals, narration, subPath)...); err != nil {
		return nil, fmt.Errorf("mux final video: %w", err)
	}

	info, err := r.Probe(ctx, plan.Output)
	if err != nil {
		return nil, err
	}
	size, err := media.FileSizeMB(plan.Output)
	if err != nil {
		return nil, err
	}
	res := &types.VideoResult{
		FilePath:   plan.Output,
		Duration:   info.Duration,
		FileSizeMB: size,
		Resolution: fmt.Sprintf("%dx%d", info.Width, info.Height),
		FPS:        plan.FPS,
	}
	r.log.Info("video ready",
		zap.String("file", res.FilePath),
		zap.Float64("duration", res.Duration),
		zap.String("resolution", res.Resolution))
	return res, nil
}

// ConcatAudio joins narration in entry order. Entries without a file get
// silence of their duration so the track stays aligned with the visuals.
func (r *Renderer) ConcatAudio(ctx context.Context, entries []types.TimelineEntry, out string) error {
	if len(entries) == 0 {
		return timeline.ErrNoContent
	}
	if _, err := r.run(ctx, r.ffmpeg, AudioArgs(entries, out)...); err != nil {
		return fmt.Errorf("concat audio: %w", err)
	}
	return nil
}

// SegmentArgs renders one entry's background at the output size.
func SegmentArgs(plan ports.RenderPlan, e types.TimelineEntry, out string) []string {
	dur := secs(e.Duration)
	args := []string{"-y"}
	switch {
	case e.Visual != nil && e.Visual.Kind == types.AssetVideo:
		args = append(args, "-stream_loop", "-1", "-i", e.Visual.FilePath)
	case e.Visual != nil && e.Visual.Kind == types.AssetImage:
		args = append(args, "-loop", "1", "-i", e.Visual.FilePath)
	default:
		bg := plan.Background
		if bg == "" {
			bg = "black"
		}
		args = append(args, "-f", "lavfi", "-i",
			fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", bg, plan.Width, plan.Height, plan.FPS))
	}
	args = append(args,
		"-t", dur,
		"-vf", coverFilter(plan.Width, plan.Height, plan.FPS),
		"-an",
		"-c:v", plan.Codec,
		"-preset", "fast",
		"-crf", "22",
		"-pix_fmt", "yuv420p",
		out,
	)
	return args
}

// coverFilter scales to cover the canvas and center-crops the overflow.
func coverFilter(w, h, fps int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d", w, h, w, h, fps)
}

// AudioArgs builds a filter_complex concat over the narration files.
func AudioArgs(entries []types.TimelineEntry, out string) []string {
	args := []string{"-y"}
	var labels strings.Builder
	for i, e := range entries {
		if e.AudioPath != "" {
			args = append(args, "-i", e.AudioPath)
		} else {
			args = append(args, "-f", "lavfi", "-t", secs(e.Duration),
				"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", silenceRate))
		}
		fmt.Fprintf(&labels, "[%d:a]", i)
	}
	filter := fmt.Sprintf("%sconcat=n=%d:v=0:a=1[aout]", labels.String(), len(entries))
	return append(args, "-filter_complex", filter, "-map", "[aout]", out)
}

// FinalArgs muxes visuals and narration and burns captions when subPath is set.
func FinalArgs(plan ports.RenderPlan, visuals, narration, subPath string) []string {
	args := []string{"-y", "-i", visuals, "-i", narration}
	if subPath != "" {
		args = append(args, "-vf", SubtitleFilter(subPath, plan.Style), "-c:v", plan.Codec, "-preset", "fast", "-crf", "20")
	} else {
		args = append(args, "-c:v", "copy")
	}
	args = append(args,
		"-c:a", plan.AudioCodec,
		"-b:a", "192k",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		"-movflags", "+faststart",
		plan.Output,
	)
	return args
}

// SubtitleFilter styles captions bottom-center, margin_bottom pixels above
// the lower edge.
func SubtitleFilter(srtPath string, st ports.SubtitleStyle) string {
	style := fmt.Sprintf("FontSize=%d,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,BorderStyle=1,Outline=%d,Alignment=2,MarginV=%d",
		st.FontSize, st.StrokeWidth, st.MarginBottom)
	f := "subtitles=" + subtitles.EscapeFilterPath(srtPath)
	if st.FontFile != "" {
		f += ":fontsdir=" + subtitles.EscapeFilterPath(filepath.Dir(st.FontFile))
		name := strings.TrimSuffix(filepath.Base(st.FontFile), filepath.Ext(st.FontFile))
		style = "FontName=" + name + "," + style
	}
	return f + ":force_style='" + style + "'"
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads duration, size and frame rate with ffprobe.
func (r *Renderer) Probe(ctx context.Context, path string) (*types.MediaInfo, error) {
	out, err := r.run(ctx, r.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return ParseProbe(out)
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(data []byte) (*types.MediaInfo, error) {
	var p probeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	info := &types.MediaInfo{}
	if p.Format.Duration != "" {
		d, err := strconv.ParseFloat(p.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", p.Format.Duration, err)
		}
		info.Duration = d
	}
	for _, s := range p.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width, info.Height = s.Width, s.Height
		rate := s.AvgFrameRate
		if rate == "" || rate == "0/0" {
			rate = s.RFrameRate
		}
		info.FPS = parseRate(rate)
		break
	}
	return info, nil
}

func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func writeConcatList(path string, files []string) error {
	var sb strings.Builder
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func secs(d float64) string {
	return strconv.FormatFloat(d, 'f', 3, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}
