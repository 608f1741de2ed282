package types

// NarrationSegment is one spoken line of a script.
type NarrationSegment struct {
	Text        string  `json:"text"`
	Duration    float64 `json:"duration"`
	ImagePrompt string  `json:"image_prompt"`
}

// DefaultSegmentDuration is used when the script provider omits a duration.
const DefaultSegmentDuration = 3.0

type ScriptMetadata struct {
	Theme          string   `json:"theme"`
	Keywords       []string `json:"keywords"`
	TargetAudience string   `json:"target_audience"`
	TargetDuration int      `json:"target_duration"`
	Model          string   `json:"model"`
}

// ScriptData is the output of the script stage and the input of every later stage.
type ScriptData struct {
	Title       string             `json:"title"`
	Hook        string             `json:"hook"`
	Narration   []NarrationSegment `json:"narration"`
	Tags        []string           `json:"tags"`
	Description string             `json:"description"`
	Metadata    ScriptMetadata     `json:"metadata"`
}

// TotalDuration sums the requested segment durations.
func (s *ScriptData) TotalDuration() float64 {
	var total float64
	for _, n := range s.Narration {
		total += n.Duration
	}
	return total
}

// Quality is the file-variant tier reported by the video search API.
type Quality string

const (
	QualityHD    Quality = "hd"
	QualitySD    Quality = "sd"
	QualityOther Quality = "other"
)

// ParseQuality maps an API quality string onto a tier.
func ParseQuality(s string) Quality {
	switch s {
	case "hd", "uhd":
		return QualityHD
	case "sd":
		return QualitySD
	default:
		return QualityOther
	}
}

// Candidate is one downloadable variant of a search result.
type Candidate struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Quality  Quality  `json:"quality"`
	Duration *float64 `json:"duration,omitempty"`
	Link     string   `json:"link"`
}

// SearchResult is one stock video returned for a query.
type SearchResult struct {
	ID           int         `json:"id"`
	URL          string      `json:"url"`
	Duration     float64     `json:"duration"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	Photographer string      `json:"photographer"`
	Files        []Candidate `json:"files"`
}

// SelectedAsset is the per-index record of the media stage. FilePath is nil
// and Error set when the fetch failed.
type SelectedAsset struct {
	Index        int     `json:"index"`
	Query        string  `json:"query"`
	FilePath     *string `json:"filepath"`
	PexelsID     int     `json:"pexels_id,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Quality      Quality `json:"quality,omitempty"`
	Photographer string  `json:"photographer,omitempty"`
	PexelsURL    string  `json:"pexels_url,omitempty"`
	Error        *string `json:"error"`
}

// AssetKind tells a still image from a video clip.
type AssetKind string

const (
	AssetVideo AssetKind = "video"
	AssetImage AssetKind = "image"
)

// Visual is what the timeline places behind a segment.
type Visual struct {
	Index    int       `json:"index"`
	Kind     AssetKind `json:"kind"`
	FilePath string    `json:"filepath"`
}

// ImageAsset is the per-index record of the image stage.
type ImageAsset struct {
	Index    int     `json:"index"`
	FilePath *string `json:"filepath"`
	Prompt   string  `json:"prompt"`
	Text     string  `json:"text"`
	Error    *string `json:"error"`
}

// AudioAsset is the per-index record of the voice stage. Duration is measured
// from the WAV header, never taken from the script.
type AudioAsset struct {
	Index       int     `json:"index"`
	FilePath    string  `json:"filepath"`
	Text        string  `json:"text"`
	Duration    float64 `json:"duration"`
	ImagePrompt string  `json:"image_prompt"`
}

// TimelineEntry places one segment on the composition timeline.
type TimelineEntry struct {
	Index        int     `json:"index"`
	Start        float64 `json:"start"`
	Duration     float64 `json:"duration"`
	Visual       *Visual `json:"visual"`
	AudioPath    string  `json:"audio_path"`
	SubtitleText string  `json:"subtitle_text"`
}

// End is Start+Duration.
func (e TimelineEntry) End() float64 { return e.Start + e.Duration }

// SubtitleCue is one caption with absolute timing in seconds.
type SubtitleCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// VoiceSettings is passed through to the TTS engine.
type VoiceSettings struct {
	SpeakerID  int     `json:"speaker_id"`
	Speed      float64 `json:"speed"`
	Pitch      float64 `json:"pitch"`
	Intonation float64 `json:"intonation"`
	Volume     float64 `json:"volume"`
}

// MediaInfo is what the renderer's probe reports for a file.
type MediaInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
}

// AspectRatio is height/width, zero for an unknown width.
func (m MediaInfo) AspectRatio() float64 {
	if m.Width <= 0 {
		return 0
	}
	return float64(m.Height) / float64(m.Width)
}

// VideoResult describes a rendered file.
type VideoResult struct {
	FilePath   string  `json:"filepath"`
	Duration   float64 `json:"duration"`
	FileSizeMB float64 `json:"file_size_mb"`
	Resolution string  `json:"resolution"`
	FPS        int     `json:"fps"`
}

// UploadRequest holds the publish metadata for one video.
type UploadRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Privacy     string   `json:"privacy_status"`
	IsShorts    bool     `json:"is_shorts"`
}

type UploadResponse struct {
	VideoID   string `json:"video_id"`
	VideoURL  string `json:"video_url"`
	ShortsURL string `json:"shorts_url,omitempty"`
	Title     string `json:"title"`
	Privacy   string `json:"privacy_status"`
}

// Topic is a researched subject that can seed a script.
type Topic struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Source    string   `json:"source"`
	SourceURL string   `json:"source_url"`
	Score     int      `json:"score"`
	Comments  int      `json:"comments"`
	Created   string   `json:"created"`
	Keywords  []string `json:"keywords"`
}

// PipelineState tracks one end-to-end run.
type PipelineState struct {
	RunID         string          `json:"run_id"`
	StartedAt     string          `json:"started_at"`
	CompletedAt   string          `json:"completed_at"`
	Theme         string          `json:"theme"`
	Topic         *Topic          `json:"topic,omitempty"`
	ScriptFile    string          `json:"script_file,omitempty"`
	AudioMetadata string          `json:"audio_metadata,omitempty"`
	ImageMetadata string          `json:"image_metadata,omitempty"`
	MediaMetadata string          `json:"media_metadata,omitempty"`
	Video         *VideoResult    `json:"video,omitempty"`
	Upload        *UploadResponse `json:"upload,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
