package backends

import (
	"context"

	"github.com/sirupsen/logrus"

	"media-studio/config"
	"media-studio/ffmpeg"
	"media-studio/scripts"
	"media-studio/services/pipeline"
)

// Provider satisfies the pipeline's backend contract. Engines are built on
// first use through the registry, so a cold process pays model startup cost
// only on the paths a request actually takes.
type Provider struct {
	cfg      *config.Config
	registry *Registry
	logger   *logrus.Logger
	tempDir  string
}

func NewProvider(cfg *config.Config, tempDir string, logger *logrus.Logger) *Provider {
	return &Provider{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   logger,
		tempDir:  tempDir,
	}
}

func (p *Provider) runner() (*scripts.Runner, error) {
	v, err := p.registry.Get("scripts", func() (interface{}, error) {
		p.logger.Info("initializing script runner")
		return scripts.NewRunner(scripts.Config{
			PythonPath:         p.cfg.Scripts.PythonPath,
			ScriptsPath:        p.cfg.Scripts.ScriptsPath,
			Timeout:            p.cfg.Scripts.Timeout,
			TempDir:            p.tempDir,
			Model:              p.cfg.Scripts.Model,
			Environment:        p.cfg.Scripts.Environment,
			FetchRatePerSecond: p.cfg.Scripts.FetchRatePerSecond,
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*scripts.Runner), nil
}

func (p *Provider) Transcriber() (pipeline.Transcriber, error) {
	return p.runner()
}

func (p *Provider) Recognizer() (pipeline.Recognizer, error) {
	return p.runner()
}

func (p *Provider) Translator() (pipeline.Translator, error) {
	return p.runner()
}

// TextProcessor returns the configured text engine: the local script models
// by default, or the OpenAI API when selected.
func (p *Provider) TextProcessor() (pipeline.TextProcessor, error) {
	if p.cfg.Text.Provider == "openai" {
		v, err := p.registry.Get("text-openai", func() (interface{}, error) {
			p.logger.WithField("model", p.cfg.Text.OpenAIModel).Info("initializing openai text backend")
			return NewOpenAIText(p.cfg.Text.OpenAIKey, p.cfg.Text.OpenAIModel, p.logger), nil
		})
		if err != nil {
			return nil, err
		}
		return v.(*OpenAIText), nil
	}
	return p.runner()
}

func (p *Provider) Transcoder() (pipeline.Transcoder, error) {
	v, err := p.registry.Get("ffmpeg", func() (interface{}, error) {
		return &transcoderAdapter{ffmpeg.New(ffmpeg.Config{
			FFmpegPath:  p.cfg.FFmpeg.FFmpegPath,
			FFprobePath: p.cfg.FFmpeg.FFprobePath,
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*transcoderAdapter), nil
}

func (p *Provider) Extractor() (pipeline.Extractor, error) {
	return p.runner()
}

// transcoderAdapter narrows the transcoder to what the pipeline needs.
type transcoderAdapter struct {
	*ffmpeg.Transcoder
}

func (a *transcoderAdapter) HasVideoStream(ctx context.Context, path string) (bool, error) {
	info, err := a.Probe(ctx, path)
	if err != nil {
		return false, err
	}
	return info.HasVideo(), nil
}
