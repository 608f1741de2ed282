package cli

import (
	"errors"

	"go.uber.org/zap"

	"ai-shorts-factory/internal/httpclient"
	"ai-shorts-factory/internal/pipeline"
	"ai-shorts-factory/internal/ports/adapters/ffmpeg"
	"ai-shorts-factory/internal/ports/adapters/imagegen"
	"ai-shorts-factory/internal/ports/adapters/llm"
	"ai-shorts-factory/internal/ports/adapters/pexels"
	"ai-shorts-factory/internal/ports/adapters/reddit"
	"ai-shorts-factory/internal/ports/adapters/voicevox"
	"ai-shorts-factory/internal/ports/adapters/whisper"
	"ai-shorts-factory/internal/ports/adapters/youtube"
	"ai-shorts-factory/internal/research"
	"ai-shorts-factory/internal/stages"
)

func (a *app) scriptStage() (*stages.Script, error) {
	provider, err := llm.New(a.cfg.Script, a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(provider.Close)
	return stages.NewScript(a.cfg, provider, a.log), nil
}

func (a *app) voicevox() *voicevox.Client {
	client := voicevox.New(a.cfg.Voice, a.log)
	a.onClose(client.Close)
	return client
}

func (a *app) voiceStage() *stages.Voice {
	return stages.NewVoice(a.cfg, a.voicevox(), a.log)
}

func (a *app) imagesStage() (*stages.Images, error) {
	gen, err := imagegen.New(a.cfg.Image, a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(gen.Close)
	return stages.NewImages(a.cfg, gen, a.log), nil
}

func (a *app) mediaStage() (*stages.Media, error) {
	client, err := pexels.New(a.cfg.Media, a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(client.Close)
	return stages.NewMedia(a.cfg, client, a.log)
}

func (a *app) composeStage() *stages.Compose {
	var tr *whisper.Transcriber
	if a.cfg.Subtitles.Engine == "whisper" {
		tr = whisper.New(a.cfg.Paths, a.cfg.Subtitles, a.log)
	}
	r := ffmpeg.New(a.cfg.Paths, a.log)
	if tr == nil {
		return stages.NewCompose(a.cfg, r, nil, a.log)
	}
	return stages.NewCompose(a.cfg, r, tr, a.log)
}

func (a *app) publishStage() *stages.Publish {
	return stages.NewPublish(a.cfg, youtube.New(a.cfg.Publish, a.log), ffmpeg.New(a.cfg.Paths, a.log), a.log)
}

func (a *app) topicFinder() (*research.Finder, error) {
	src, err := reddit.New(a.cfg.Research, a.log)
	if err != nil {
		return nil, err
	}
	return research.NewFinder(src, a.cfg.Research.HookKeywords, a.cfg.Paths.UsedTopicsLog, a.log), nil
}

// pipeline builds a full run. Script and voice are required; a visual or
// topic stage whose credentials are missing is left out with a warning.
func (a *app) pipeline(publish bool) (*pipeline.Pipeline, error) {
	script, err := a.scriptStage()
	if err != nil {
		return nil, err
	}
	st := pipeline.Stages{
		Script:  script,
		Voice:   a.voiceStage(),
		Compose: a.composeStage(),
	}
	if st.Images, err = a.imagesStage(); err != nil {
		a.optional("images", err)
	}
	if st.Media, err = a.mediaStage(); err != nil {
		a.optional("media", err)
	}
	if st.Topics, err = a.topicFinder(); err != nil {
		a.optional("topics", err)
	}
	if publish {
		st.Publish = a.publishStage()
	}
	return pipeline.New(a.cfg, st, a.log), nil
}

func (a *app) optional(stage string, err error) {
	if errors.Is(err, httpclient.ErrMissingCredential) {
		a.log.Warn("stage disabled, credential not set", zap.String("stage", stage), zap.Error(err))
		return
	}
	a.log.Warn("stage unavailable, continuing without", zap.String("stage", stage), zap.Error(err))
}
