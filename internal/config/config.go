package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Script    ScriptConfig    `yaml:"script"`
	Voice     VoiceConfig     `yaml:"voice"`
	Image     ImageConfig     `yaml:"image"`
	Media     MediaConfig     `yaml:"media"`
	Video     VideoConfig     `yaml:"video"`
	Subtitles SubtitlesConfig `yaml:"subtitles"`
	Publish   PublishConfig   `yaml:"publish"`
	Research  ResearchConfig  `yaml:"research"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Queue     QueueConfig     `yaml:"queue"`
	Log       LogConfig       `yaml:"log"`
}

type PathsConfig struct {
	Output         string `yaml:"output"`
	UsedTopicsLog  string `yaml:"used_topics_log"`
	UploadLogDir   string `yaml:"upload_log_dir"`
	SubtitleFont   string `yaml:"subtitle_font"`
	FFmpeg         string `yaml:"ffmpeg"`
	FFprobe        string `yaml:"ffprobe"`
	WhisperCommand string `yaml:"whisper_command"`
}

type ScriptConfig struct {
	APIKey           string  `yaml:"-"`
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
	TargetDuration   int     `yaml:"target_duration"`
	TargetAudience   string  `yaml:"target_audience"`
	StructuredOutput bool    `yaml:"structured_output"`
	TimeoutSec       int     `yaml:"timeout_sec"`
}

type VoiceConfig struct {
	BaseURL    string  `yaml:"base_url"`
	SpeakerID  int     `yaml:"speaker_id"`
	Speed      float64 `yaml:"speed"`
	Pitch      float64 `yaml:"pitch"`
	Intonation float64 `yaml:"intonation"`
	Volume     float64 `yaml:"volume"`
	TimeoutSec int     `yaml:"timeout_sec"`
}

type ImageConfig struct {
	Backend    string `yaml:"backend"` // pollinations | huggingface
	BaseURL    string `yaml:"base_url"`
	APIToken   string `yaml:"-"`
	Model      string `yaml:"model"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	MaxWidth   int    `yaml:"max_width"`
	MaxHeight  int    `yaml:"max_height"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type MediaConfig struct {
	APIKey             string `yaml:"-"`
	VideosURL          string `yaml:"videos_url"`
	PerPage            int    `yaml:"per_page"`
	SelectionPolicy    string `yaml:"selection_policy"` // scored | first_match
	SearchTimeoutSec   int    `yaml:"search_timeout_sec"`
	DownloadTimeoutSec int    `yaml:"download_timeout_sec"`
}

type VideoConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FPS        int    `yaml:"fps"`
	Codec      string `yaml:"codec"`
	AudioCodec string `yaml:"audio_codec"`
	Background string `yaml:"background"` // ffmpeg color used when a segment has no visual
}

type SubtitlesConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Engine       string `yaml:"engine"` // narration | whisper
	WhisperModel string `yaml:"whisper_model"`
	Language     string `yaml:"language"`
	FontSize     int    `yaml:"font_size"`
	StrokeWidth  int    `yaml:"stroke_width"`
	MarginBottom int    `yaml:"margin_bottom"`
}

type PublishConfig struct {
	ClientSecretsFile string  `yaml:"client_secrets_file"`
	TokenFile         string  `yaml:"token_file"`
	ClientID          string  `yaml:"-"`
	ClientSecret      string  `yaml:"-"`
	RefreshToken      string  `yaml:"-"`
	CategoryID        string  `yaml:"category_id"`
	Privacy           string  `yaml:"privacy"`
	MadeForKids       bool    `yaml:"made_for_kids"`
	DefaultLanguage   string  `yaml:"default_language"`
	MaxDurationSec    float64 `yaml:"max_duration_sec"`
	MinDurationSec    float64 `yaml:"min_duration_sec"`
	AspectRatio       float64 `yaml:"aspect_ratio"`
}

type ResearchConfig struct {
	Subreddits     []string `yaml:"subreddits"`
	HookKeywords   []string `yaml:"hook_keywords"`
	MinScore       int      `yaml:"min_score"`
	MinComments    int      `yaml:"min_comments"`
	LookbackDays   int      `yaml:"lookback_days"`
	PostsPerSource int      `yaml:"posts_per_source"`
	UserAgent      string   `yaml:"user_agent"`
}

type ScheduleConfig struct {
	Specs   []string `yaml:"specs"`
	Themes  []string `yaml:"themes"`
	Publish bool     `yaml:"publish"`
}

type QueueConfig struct {
	RedisURL string `yaml:"redis_url"`
	Name     string `yaml:"name"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// Default returns a Config populated with the values the pipeline runs with
// when no config file is present.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Output:         "output",
			UsedTopicsLog:  "output/used_topics.json",
			UploadLogDir:   "output/logs",
			FFmpeg:         "ffmpeg",
			FFprobe:        "ffprobe",
			WhisperCommand: "whisper",
		},
		Script: ScriptConfig{
			BaseURL:        "https://router.huggingface.co/v1",
			Model:          "Qwen/Qwen2.5-72B-Instruct",
			MaxTokens:      2048,
			Temperature:    0.7,
			TargetDuration: 45,
			TargetAudience: "general",
			TimeoutSec:     120,
		},
		Voice: VoiceConfig{
			BaseURL:    "http://localhost:50021",
			SpeakerID:  3,
			Speed:      1.0,
			Pitch:      0.0,
			Intonation: 1.0,
			Volume:     1.0,
			TimeoutSec: 60,
		},
		Image: ImageConfig{
			Backend:    "pollinations",
			Model:      "black-forest-labs/FLUX.1-schnell",
			Width:      1080,
			Height:     1920,
			MaxWidth:   1024,
			MaxHeight:  1024,
			TimeoutSec: 120,
		},
		Media: MediaConfig{
			VideosURL:          "https://api.pexels.com/videos",
			PerPage:            5,
			SelectionPolicy:    "scored",
			SearchTimeoutSec:   30,
			DownloadTimeoutSec: 120,
		},
		Video: VideoConfig{
			Width:      1080,
			Height:     1920,
			FPS:        30,
			Codec:      "libx264",
			AudioCodec: "aac",
			Background: "black",
		},
		Subtitles: SubtitlesConfig{
			Enabled:      true,
			Engine:       "narration",
			WhisperModel: "base",
			Language:     "ja",
			FontSize:     60,
			StrokeWidth:  3,
			MarginBottom: 200,
		},
		Publish: PublishConfig{
			ClientSecretsFile: "client_secrets.json",
			TokenFile:         "youtube_token.json",
			CategoryID:        "22",
			Privacy:           "private",
			DefaultLanguage:   "ja",
			MaxDurationSec:    60,
			MinDurationSec:    15,
			AspectRatio:       16.0 / 9.0,
		},
		Research: ResearchConfig{
			Subreddits:     []string{"todayilearned", "interestingasfuck"},
			HookKeywords:   []string{"secret", "unknown", "shocking", "first", "mystery", "record", "hidden", "why"},
			MinScore:       500,
			MinComments:    20,
			LookbackDays:   7,
			PostsPerSource: 25,
			UserAgent:      "ai-shorts-factory/1.0",
		},
		Schedule: ScheduleConfig{
			Specs: []string{"0 9 * * *"},
		},
		Queue: QueueConfig{
			RedisURL: "redis://localhost:6379/0",
			Name:     "q_shorts_run",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv copies credentials and endpoint overrides from the environment.
func (c *Config) ApplyEnv() {
	setString(&c.Script.APIKey, "HUGGINGFACE_API_TOKEN")
	setString(&c.Script.APIKey, "OPENAI_API_KEY")
	setString(&c.Script.BaseURL, "LLM_BASE_URL")
	setString(&c.Script.Model, "LLM_MODEL")
	setString(&c.Image.APIToken, "HUGGINGFACE_API_TOKEN")
	setString(&c.Media.APIKey, "PEXELS_API_KEY")
	setString(&c.Voice.BaseURL, "VOICEVOX_BASE_URL")
	setInt(&c.Voice.SpeakerID, "VOICEVOX_SPEAKER_ID")
	setString(&c.Publish.ClientID, "YOUTUBE_CLIENT_ID")
	setString(&c.Publish.ClientSecret, "YOUTUBE_CLIENT_SECRET")
	setString(&c.Publish.RefreshToken, "YOUTUBE_REFRESH_TOKEN")
	setString(&c.Research.UserAgent, "REDDIT_USER_AGENT")
	setString(&c.Queue.RedisURL, "REDIS_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Paths.Output == "" {
		return errors.New("paths.output is required")
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("video size must be positive, got %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("video.fps must be positive, got %d", c.Video.FPS)
	}
	if c.Image.MaxWidth < 64 || c.Image.MaxHeight < 64 {
		return fmt.Errorf("image max size must be at least 64x64, got %dx%d", c.Image.MaxWidth, c.Image.MaxHeight)
	}
	switch c.Image.Backend {
	case "pollinations", "huggingface":
	default:
		return fmt.Errorf("image.backend must be pollinations or huggingface, got %q", c.Image.Backend)
	}
	switch c.Media.SelectionPolicy {
	case "scored", "first_match":
	default:
		return fmt.Errorf("media.selection_policy must be scored or first_match, got %q", c.Media.SelectionPolicy)
	}
	if c.Media.PerPage <= 0 || c.Media.PerPage > 80 {
		return fmt.Errorf("media.per_page must be in 1..80, got %d", c.Media.PerPage)
	}
	switch c.Subtitles.Engine {
	case "narration", "whisper":
	default:
		return fmt.Errorf("subtitles.engine must be narration or whisper, got %q", c.Subtitles.Engine)
	}
	switch c.Publish.Privacy {
	case "private", "unlisted", "public":
	default:
		return fmt.Errorf("publish.privacy must be private, unlisted or public, got %q", c.Publish.Privacy)
	}
	if c.Publish.MinDurationSec > c.Publish.MaxDurationSec {
		return errors.New("publish.min_duration_sec exceeds max_duration_sec")
	}
	return nil
}

// Dir returns the output subdirectory for a stage (scripts, audio, images, videos, temp).
func (c *Config) Dir(stage string) string {
	return filepath.Join(c.Paths.Output, stage)
}

// EnsureDirs creates the output tree.
func (c *Config) EnsureDirs() error {
	for _, stage := range []string{"scripts", "audio", "images", "videos", "media", "temp"} {
		if err := os.MkdirAll(c.Dir(stage), 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", c.Dir(stage), err)
		}
	}
	return nil
}
