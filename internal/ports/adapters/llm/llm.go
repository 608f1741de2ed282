// Package llm writes scripts with any OpenAI-compatible chat endpoint. The
// default points at the Hugging Face router.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/httpclient"
	"ai-shorts-factory/internal/ports"
	"ai-shorts-factory/internal/retry"
	"ai-shorts-factory/internal/types"
)

// ErrUnparseable is returned when the model twice fails to produce a usable
// script object.
var ErrUnparseable = errors.New("model response is not a valid script")

const systemPrompt = `You write scripts for vertical short videos (YouTube Shorts, TikTok).
Open with a hook in the first sentence. Keep every narration line short enough to read on screen.
Respond with ONLY a JSON object, no preamble and no explanation.`

// scriptResponse is the object the model is asked to return.
type scriptResponse struct {
	Title       string            `json:"title" jsonschema_description:"Catchy video title under 100 characters"`
	Hook        string            `json:"hook" jsonschema_description:"Opening line that grabs attention"`
	Narration   []segmentResponse `json:"narration" jsonschema_description:"Narration lines in speaking order"`
	Tags        []string          `json:"tags" jsonschema_description:"Search tags without the # sign"`
	Description string            `json:"description" jsonschema_description:"Video description"`
}

type segmentResponse struct {
	Text        string  `json:"text" jsonschema_description:"Spoken line"`
	Duration    float64 `json:"duration" jsonschema_description:"Seconds this line is on screen"`
	ImagePrompt string  `json:"image_prompt" jsonschema_description:"English prompt for a background image"`
}

func generateSchema[T any]() any {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

var scriptSchema = generateSchema[scriptResponse]()

// Provider implements ports.ScriptProvider.
type Provider struct {
	cfg    config.ScriptConfig
	client openai.Client
	pool   *httpclient.Pool
	policy retry.Policy
	log    *zap.Logger
}

// New returns a Provider. It fails without an API key so no request is ever
// sent unauthenticated.
func New(cfg config.ScriptConfig, log *zap.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, &httpclient.CredentialError{Name: "HUGGINGFACE_API_TOKEN"}
	}
	pool := httpclient.NewPool(time.Duration(cfg.TimeoutSec) * time.Second)
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(pool.Doer()),
		option.WithMaxRetries(0),
	)
	return &Provider{
		cfg:    cfg,
		client: client,
		pool:   pool,
		policy: retry.ScriptGeneration,
		log:    log.Named("llm"),
	}, nil
}

// Close releases the connection pool.
func (p *Provider) Close() error {
	p.pool.Close()
	return nil
}

// Generate asks the model for a script. A reply that does not parse gets one
// corrective follow-up before ErrUnparseable is returned.
func (p *Provider) Generate(ctx context.Context, req ports.ScriptRequest) (*types.ScriptData, error) {
	if strings.TrimSpace(req.Theme) == "" {
		return nil, errors.New("script theme is empty")
	}
	if req.TargetDuration <= 0 {
		req.TargetDuration = p.cfg.TargetDuration
	}
	if req.TargetAudience == "" {
		req.TargetAudience = p.cfg.TargetAudience
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(BuildPrompt(req)),
	}

	p.log.Info("generating script", zap.String("theme", req.Theme), zap.String("model", p.cfg.Model))
	content, err := p.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	raw, perr := parseScript(content)
	if perr != nil {
		p.log.Warn("unparseable script, asking again", zap.Error(perr))
		messages = append(messages,
			openai.AssistantMessage(content),
			openai.UserMessage(fmt.Sprintf(
				"That reply could not be used (%v). Reply again with only the JSON object described above.", perr)),
		)
		content, err = p.complete(ctx, messages)
		if err != nil {
			return nil, err
		}
		raw, perr = parseScript(content)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, perr)
		}
	}

	script := toScript(raw)
	script.Metadata = types.ScriptMetadata{
		Theme:          req.Theme,
		Keywords:       req.Keywords,
		TargetAudience: req.TargetAudience,
		TargetDuration: req.TargetDuration,
		Model:          p.cfg.Model,
	}
	p.log.Info("script ready",
		zap.String("title", script.Title),
		zap.Int("segments", len(script.Narration)),
		zap.Float64("seconds", script.TotalDuration()))
	return script, nil
}

func (p *Provider) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(p.cfg.Model),
		MaxTokens:   openai.Int(int64(p.cfg.MaxTokens)),
		Temperature: openai.Float(p.cfg.Temperature),
	}
	if p.cfg.StructuredOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "short_video_script",
					Description: openai.String("Script for a vertical short video"),
					Schema:      scriptSchema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	return retry.Value(ctx, p.policy, p.log, "chat completion", func(ctx context.Context) (string, error) {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", wrapError(err, p.cfg.APIKey)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("model returned no choices")
		}
		content := resp.Choices[0].Message.Content
		if strings.TrimSpace(content) == "" {
			return "", fmt.Errorf("model returned an empty reply (finish reason %q)", resp.Choices[0].FinishReason)
		}
		return content, nil
	})
}

// wrapError turns SDK status errors into the shared status error so retry
// classification sees the code. The key is scrubbed from the message.
func wrapError(err error, apiKey string) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &httpclient.StatusError{
			Service: "llm",
			Code:    apiErr.StatusCode,
			Body:    httpclient.Truncate(httpclient.RedactSecrets(apiErr.Message, apiKey), 400),
			Err:     err,
		}
	}
	return err
}

// BuildPrompt renders the user prompt for req.
func BuildPrompt(req ports.ScriptRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Theme: %s\n", req.Theme)
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(req.Keywords, ", "))
	}
	fmt.Fprintf(&sb, "Target audience: %s\n", req.TargetAudience)
	fmt.Fprintf(&sb, "Length: about %d seconds in total\n", req.TargetDuration)
	if req.Language != "" {
		fmt.Fprintf(&sb, "Narration language: %s (image prompts stay in English)\n", req.Language)
	}
	if t := req.Topic; t != nil {
		fmt.Fprintf(&sb, "\nBase the story on this source (%s):\n%s\n", t.SourceURL, t.Title)
		if body := strings.TrimSpace(t.Body); body != "" {
			fmt.Fprintf(&sb, "%s\n", truncateRunes(body, 2000))
		}
	}
	sb.WriteString(`
Return this JSON object:
{
  "title": "video title",
  "hook": "opening line",
  "narration": [
    {"text": "spoken line", "duration": seconds, "image_prompt": "English image prompt"}
  ],
  "tags": ["tag1", "tag2"],
  "description": "video description"
}`)
	return sb.String()
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON returns the body of the first fenced block, or the trimmed text
// when there is none.
func ExtractJSON(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// parseScript extracts and validates a script object from a model reply.
func parseScript(content string) (scriptResponse, error) {
	var raw scriptResponse
	body := ExtractJSON(content)
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return raw, fmt.Errorf("parse script json: %w", err)
	}
	if strings.TrimSpace(raw.Title) == "" {
		return raw, errors.New("script has no title")
	}
	spoken := 0
	for _, n := range raw.Narration {
		if strings.TrimSpace(n.Text) != "" {
			spoken++
		}
	}
	if spoken == 0 {
		return raw, errors.New("script has no narration text")
	}
	return raw, nil
}

func toScript(raw scriptResponse) *types.ScriptData {
	s := &types.ScriptData{
		Title:       strings.TrimSpace(raw.Title),
		Hook:        raw.Hook,
		Tags:        raw.Tags,
		Description: raw.Description,
	}
	for _, n := range raw.Narration {
		d := n.Duration
		if d <= 0 {
			d = types.DefaultSegmentDuration
		}
		s.Narration = append(s.Narration, types.NarrationSegment{
			Text:        n.Text,
			Duration:    d,
			ImagePrompt: n.ImagePrompt,
		})
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
