// Package youtube publishes rendered shorts through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/httpclient"
	"ai-shorts-factory/internal/retry"
	"ai-shorts-factory/internal/types"
)

var ErrVideoNotFound = errors.New("video not found")

// Publisher implements ports.Publisher.
type Publisher struct {
	cfg      config.PublishConfig
	client   *http.Client
	endpoint string
	policy   retry.Policy
	log      *zap.Logger
}

func New(cfg config.PublishConfig, log *zap.Logger) *Publisher {
	return &Publisher{cfg: cfg, policy: retry.Default, log: log.Named("upload")}
}

// WithHTTPClient skips OAuth and sends every request through c.
func (p *Publisher) WithHTTPClient(c *http.Client) *Publisher {
	p.client = c
	return p
}

// WithEndpoint overrides the API base URL.
func (p *Publisher) WithEndpoint(u string) *Publisher {
	p.endpoint = u
	return p
}

func (p *Publisher) service(ctx context.Context) (*youtube.Service, error) {
	client := p.client
	if client == nil {
		ts, err := TokenSource(ctx, p.cfg, p.log)
		if err != nil {
			return nil, err
		}
		client = oauth2.NewClient(ctx, ts)
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return svc, nil
}

// Upload sends videoPath with snippet and status metadata. Uploads are not
// retried; a partial insert would leave a duplicate behind.
func (p *Publisher) Upload(ctx context.Context, videoPath string, req types.UploadRequest) (*types.UploadResponse, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	svc, err := p.service(ctx)
	if err != nil {
		return nil, fmt.Errorf("youtube auth: %w", err)
	}

	privacy := req.Privacy
	if privacy == "" {
		privacy = p.cfg.Privacy
	}
	category := req.CategoryID
	if category == "" {
		category = p.cfg.CategoryID
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                req.Title,
			Description:          req.Description,
			Tags:                 req.Tags,
			CategoryId:           category,
			DefaultLanguage:      p.cfg.DefaultLanguage,
			DefaultAudioLanguage: p.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: p.cfg.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	if fi, err := f.Stat(); err == nil {
		p.log.Info("uploading", zap.String("title", req.Title), zap.Float64("size_mb", float64(fi.Size())/1024/1024))
	}

	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(f, googleapi.ContentType("video/mp4")).
		ProgressUpdater(func(current, total int64) {
			p.log.Debug("upload progress", zap.Int64("sent", current), zap.Int64("total", total))
		}).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube upload: %w", wrapError(err))
	}

	resp := &types.UploadResponse{
		VideoID:  uploaded.Id,
		VideoURL: "https://www.youtube.com/watch?v=" + uploaded.Id,
		Title:    req.Title,
		Privacy:  privacy,
	}
	if req.IsShorts {
		resp.ShortsURL = "https://www.youtube.com/shorts/" + uploaded.Id
	}
	p.log.Info("uploaded", zap.String("video_id", resp.VideoID), zap.String("url", resp.VideoURL))
	return resp, nil
}

// Update rewrites the snippet of an existing video. Empty fields in req keep
// their current value; status is only sent when req.Privacy is set, and then
// keeps everything but the privacy.
func (p *Publisher) Update(ctx context.Context, videoID string, req types.UploadRequest) error {
	svc, err := p.service(ctx)
	if err != nil {
		return fmt.Errorf("youtube auth: %w", err)
	}

	current, err := retry.Value(ctx, p.policy, p.log, "videos.list", func(ctx context.Context) (*youtube.VideoListResponse, error) {
		r, err := svc.Videos.List([]string{"snippet", "status"}).Id(videoID).Context(ctx).Do()
		return r, wrapError(err)
	})
	if err != nil {
		return err
	}
	if len(current.Items) == 0 || current.Items[0].Snippet == nil {
		return fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
	}
	old := current.Items[0].Snippet

	snippet := &youtube.VideoSnippet{
		Title:       pick(req.Title, old.Title),
		Description: pick(req.Description, old.Description),
		Tags:        old.Tags,
		CategoryId:  pick(req.CategoryID, old.CategoryId),
	}
	if len(req.Tags) > 0 {
		snippet.Tags = req.Tags
	}
	video := &youtube.Video{Id: videoID, Snippet: snippet}
	parts := []string{"snippet"}
	if req.Privacy != "" {
		video.Status = updatedStatus(current.Items[0].Status, req.Privacy, p.cfg.MadeForKids)
		parts = append(parts, "status")
	}

	_, err = retry.Value(ctx, p.policy, p.log, "videos.update", func(ctx context.Context) (*youtube.Video, error) {
		v, err := svc.Videos.Update(parts, video).Context(ctx).Do()
		return v, wrapError(err)
	})
	if err != nil {
		return err
	}
	p.log.Info("updated", zap.String("video_id", videoID))
	return nil
}

// updatedStatus carries the writable status fields over from old and
// replaces the privacy. Fields left out of a status update are reset by the
// API, so the booleans are always sent.
func updatedStatus(old *youtube.VideoStatus, privacy string, madeForKids bool) *youtube.VideoStatus {
	st := &youtube.VideoStatus{
		PrivacyStatus:           privacy,
		SelfDeclaredMadeForKids: madeForKids,
		Embeddable:              true,
		PublicStatsViewable:     true,
		ForceSendFields:         []string{"SelfDeclaredMadeForKids", "Embeddable", "PublicStatsViewable"},
	}
	if old != nil {
		st.SelfDeclaredMadeForKids = old.SelfDeclaredMadeForKids
		st.Embeddable = old.Embeddable
		st.PublicStatsViewable = old.PublicStatsViewable
		st.License = old.License
		st.PublishAt = old.PublishAt
	}
	return st
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// wrapError gives googleapi errors a status kind for the retry layer.
func wrapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &httpclient.StatusError{Service: "youtube", Code: gerr.Code, Body: httpclient.Truncate(gerr.Message, 400), Err: gerr}
	}
	return err
}
