package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "media-studio/errors"
	"media-studio/ffmpeg"
	"media-studio/models"
	"media-studio/scripts"
	"media-studio/staging"
)

// Config tunes the orchestrator.
type Config struct {
	SummaryMaxLength int
	AnswerMaxLength  int
}

type service struct {
	cfg      Config
	backends Backends
	staging  *staging.Dir
	quota    QuotaGate
	records  Recorder
	logger   *logrus.Logger
}

// NewService builds the pipeline orchestrator.
func NewService(cfg Config, b Backends, dir *staging.Dir, quota QuotaGate, records Recorder, logger *logrus.Logger) Service {
	if cfg.SummaryMaxLength <= 0 {
		cfg.SummaryMaxLength = 150
	}
	if cfg.AnswerMaxLength <= 0 {
		cfg.AnswerMaxLength = 120
	}
	return &service{
		cfg:      cfg,
		backends: b,
		staging:  dir,
		quota:    quota,
		records:  records,
		logger:   logger,
	}
}

// ProcessMedia runs the full pipeline over a staged audio or video file:
// normalize, analyze, then the optional text stages, then metering and
// record keeping. Only analysis failures are fatal; optional stages degrade
// to a warning on the result.
func (s *service) ProcessMedia(ctx context.Context, req TranscribeRequest) (*models.PipelineResult, error) {
	const op = "pipeline.ProcessMedia"
	start := time.Now()

	// Own the staged input before anything can reject the request, so a
	// quota refusal still removes the file.
	input, err := s.staging.Adopt(req.FilePath)
	if err != nil {
		return nil, apperrors.NotFound(op, err, "input file is missing")
	}
	if req.KeepStagedInput {
		input.Disown()
	}
	defer s.release(input)

	if err := s.quota.Check(ctx, req.UserID); err != nil {
		return nil, err
	}

	audioPath, audioRes, err := s.normalize(ctx, input.Path())
	if err != nil {
		return nil, apperrors.Internal(op, err, "failed to prepare audio")
	}
	if audioRes != nil {
		defer s.release(audioRes)
	}

	transcriber, err := s.backends.Transcriber()
	if err != nil {
		return nil, apperrors.Internal(op, err, "transcription backend unavailable")
	}
	result, err := transcriber.Transcribe(ctx, audioPath, req.Language)
	if err != nil {
		return nil, apperrors.Internal(op, err, "transcription failed")
	}

	s.runTextStages(ctx, result, textStageOptions{
		correct:        req.CorrectText,
		targetLanguage: req.TargetLanguage,
		contextualMode: req.ContextualMode,
		summarize:      req.Summarize,
		summaryStyle:   req.SummaryStyle,
		language:       req.Language,
	})

	s.finalize(ctx, result, input, req.Filename, req.UserID, start)
	return result, nil
}

// ProcessURL fetches remote media and runs it through the same pipeline.
func (s *service) ProcessURL(ctx context.Context, req URLRequest) (*models.PipelineResult, error) {
	const op = "pipeline.ProcessURL"

	if err := s.quota.Check(ctx, req.UserID); err != nil {
		return nil, err
	}

	extractor, err := s.backends.Extractor()
	if err != nil {
		return nil, apperrors.Internal(op, err, "media extractor unavailable")
	}

	if info, err := extractor.Resolve(ctx, req.URL); err != nil {
		s.logger.WithError(err).WithField("url", req.URL).Warn("could not resolve media metadata")
	} else {
		s.logger.WithFields(logrus.Fields{
			"platform": info.Platform,
			"title":    info.Title,
			"duration": info.Duration,
		}).Info("processing remote media")
	}

	fetched, err := extractor.Fetch(ctx, req.URL, scripts.FetchOptions{
		AudioOnly:  true,
		SliceRange: req.SliceRange,
		OutputDir:  s.staging.Root(),
	})
	if err != nil {
		return nil, apperrors.InvalidInput(op, err, "could not fetch media from URL")
	}

	return s.ProcessMedia(ctx, TranscribeRequest{
		FilePath:       fetched.FilePath,
		Filename:       filepath.Base(fetched.FilePath),
		UserID:         req.UserID,
		Language:       req.Language,
		TargetLanguage: req.TargetLanguage,
		ContextualMode: req.ContextualMode,
		Summarize:      req.Summarize,
		SummaryStyle:   req.SummaryStyle,
		CorrectText:    req.CorrectText,
	})
}

// RecognizeImage runs OCR over a staged image and records the processed
// file. Image work consumes no audio minutes, so only bytes are metered.
func (s *service) RecognizeImage(ctx context.Context, imagePath, filename, userID string, size int64) (*models.PipelineResult, error) {
	const op = "pipeline.RecognizeImage"
	start := time.Now()

	input, err := s.staging.Adopt(imagePath)
	if err != nil {
		return nil, apperrors.NotFound(op, err, "image file is missing")
	}
	defer s.release(input)

	if err := s.quota.Check(ctx, userID); err != nil {
		return nil, err
	}

	recognizer, err := s.backends.Recognizer()
	if err != nil {
		return nil, apperrors.Internal(op, err, "recognition backend unavailable")
	}
	result, err := recognizer.ExtractText(ctx, input.Path())
	if err != nil {
		return nil, apperrors.Internal(op, err, "text recognition failed")
	}

	s.finalize(ctx, result, input, filename, userID, start)
	return result, nil
}

// Convert transcodes a staged media file into the target format. The
// converted file is written into staging and left on disk for the caller to
// collect; only bytes are metered, since no audio is analyzed.
func (s *service) Convert(ctx context.Context, req ConvertRequest) (*models.ConversionResult, error) {
	const op = "pipeline.Convert"
	start := time.Now()

	input, err := s.staging.Adopt(req.FilePath)
	if err != nil {
		return nil, apperrors.NotFound(op, err, "input file is missing")
	}
	defer s.release(input)

	if err := s.quota.Check(ctx, req.UserID); err != nil {
		return nil, err
	}

	target := strings.TrimPrefix(strings.ToLower(req.TargetFormat), ".")
	if target == strings.TrimPrefix(strings.ToLower(filepath.Ext(input.Path())), ".") {
		return nil, apperrors.InvalidInput(op, nil, "target format matches the source format")
	}

	transcoder, err := s.backends.Transcoder()
	if err != nil {
		return nil, apperrors.Internal(op, err, "transcoder unavailable")
	}
	outputPath, err := transcoder.Transform(ctx, input.Path(), target, ffmpeg.TransformOptions{
		Bitrate:    req.Bitrate,
		SampleRate: req.SampleRate,
		Channels:   req.Channels,
		Resolution: req.Resolution,
	})
	if err != nil {
		return nil, apperrors.Internal(op, err, "conversion failed")
	}
	output, err := s.staging.Adopt(outputPath)
	if err != nil {
		return nil, apperrors.Internal(op, err, "converted file is missing")
	}

	s.quota.Record(ctx, req.UserID, 0, input.Size())

	result := &models.ConversionResult{
		Filename:       filepath.Base(outputPath),
		Format:         target,
		SizeBytes:      output.Size(),
		ProcessingTime: time.Since(start).Seconds(),
	}
	if id := s.records.Save(ctx, output.Path(), result.Filename, req.UserID, output.Size()); id != "" {
		result.FileID = &id
	}
	result.OutputPath = output.Disown()
	return result, nil
}

// Summarize condenses caller-supplied text without touching quota.
func (s *service) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	const op = "pipeline.Summarize"

	if strings.TrimSpace(req.Text) == "" {
		return "", apperrors.InvalidInput(op, nil, "text is required")
	}
	proc, err := s.backends.TextProcessor()
	if err != nil {
		return "", apperrors.Internal(op, err, "text backend unavailable")
	}
	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = s.cfg.SummaryMaxLength
	}
	out, err := summarize(ctx, proc, req.Text, maxLength, req.Style)
	if err != nil {
		return "", apperrors.Internal(op, err, "summarization failed")
	}
	return out, nil
}

// Answer answers a question over caller-supplied context text.
func (s *service) Answer(ctx context.Context, req AnswerRequest) (string, error) {
	const op = "pipeline.Answer"

	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Context) == "" {
		return "", apperrors.InvalidInput(op, nil, "question and context are required")
	}
	proc, err := s.backends.TextProcessor()
	if err != nil {
		return "", apperrors.Internal(op, err, "text backend unavailable")
	}
	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = s.cfg.AnswerMaxLength
	}
	out, err := proc.Answer(ctx, req.Question, req.Context, maxLength)
	if err != nil {
		return "", apperrors.Internal(op, err, "answering failed")
	}
	return out, nil
}

// ListFormats enumerates the downloadable formats of a remote video.
func (s *service) ListFormats(ctx context.Context, url string) ([]models.FormatDescriptor, error) {
	const op = "pipeline.ListFormats"

	extractor, err := s.backends.Extractor()
	if err != nil {
		return nil, apperrors.Internal(op, err, "media extractor unavailable")
	}
	formats, err := extractor.ListFormats(ctx, url)
	if err != nil {
		return nil, apperrors.InvalidInput(op, err, "could not list formats for URL")
	}
	return formats, nil
}

// normalize returns the path to transcribe. Video inputs have an audio
// track extracted into staging; the extracted file is returned as an owned
// resource so it is removed on every exit path.
func (s *service) normalize(ctx context.Context, inputPath string) (string, *staging.Resource, error) {
	extractor, err := s.backends.Transcoder()
	if err != nil {
		return "", nil, err
	}

	hasVideo, err := extractor.HasVideoStream(ctx, inputPath)
	if err != nil {
		// Probe failure is not fatal: treat the input as audio and let
		// the transcriber decide.
		s.logger.WithError(err).WithField("path", inputPath).Warn("probe failed, assuming audio input")
		return inputPath, nil, nil
	}
	if !hasVideo {
		return inputPath, nil, nil
	}

	audioPath, err := extractor.ExtractAudio(ctx, inputPath, s.staging.Root())
	if err != nil {
		return "", nil, err
	}
	res, err := s.staging.Adopt(audioPath)
	if err != nil {
		return "", nil, err
	}
	return res.Path(), res, nil
}

type textStageOptions struct {
	correct        bool
	targetLanguage string
	contextualMode bool
	summarize      bool
	summaryStyle   string
	language       string
}

// runTextStages applies the optional correction, translation, and
// summarization stages in order. Each stage degrades independently: on
// failure the result keeps its prior text and gains a warning.
func (s *service) runTextStages(ctx context.Context, result *models.PipelineResult, opts textStageOptions) {
	if opts.correct {
		s.correctStage(ctx, result, opts.language)
	}
	if opts.targetLanguage != "" {
		s.translateStage(ctx, result, opts.targetLanguage, opts.contextualMode)
	}
	if opts.summarize {
		s.summarizeStage(ctx, result, opts.summaryStyle)
	}
}

func (s *service) correctStage(ctx context.Context, result *models.PipelineResult, language string) {
	proc, err := s.backends.TextProcessor()
	if err != nil {
		s.degrade(result, "correction", err)
		return
	}

	corrected, err := proc.Correct(ctx, result.Text, language)
	if err != nil {
		s.degrade(result, "correction", err)
		return
	}

	segments := make([]string, len(result.Segments))
	for i, seg := range result.Segments {
		fixed, err := proc.Correct(ctx, seg.Text, language)
		if err != nil {
			s.degrade(result, "correction", err)
			return
		}
		segments[i] = fixed
	}

	// Commit only once every piece corrected cleanly.
	result.Text = corrected
	for i := range result.Segments {
		result.Segments[i].Text = segments[i]
	}
}

func (s *service) translateStage(ctx context.Context, result *models.PipelineResult, target string, contextual bool) {
	tr, err := s.backends.Translator()
	if err != nil {
		s.degrade(result, "translation", err)
		return
	}

	translated, warnings, err := translate(ctx, tr, result.Text, target, contextual)
	if err != nil {
		s.degrade(result, "translation", err)
		return
	}
	result.TranslatedText = &translated
	result.Warnings = append(result.Warnings, warnings...)
}

func (s *service) summarizeStage(ctx context.Context, result *models.PipelineResult, style string) {
	proc, err := s.backends.TextProcessor()
	if err != nil {
		s.degrade(result, "summarization", err)
		return
	}

	// Summaries follow the translated text when translation ran.
	text := result.Text
	if result.TranslatedText != nil {
		text = *result.TranslatedText
	}

	summary, err := summarize(ctx, proc, text, s.cfg.SummaryMaxLength, style)
	if err != nil {
		s.degrade(result, "summarization", err)
		return
	}
	result.SummarizedContent = &summary
}

// finalize meters usage and persists the processed-file record. Neither can
// fail the request.
func (s *service) finalize(ctx context.Context, result *models.PipelineResult, input *staging.Resource, filename, userID string, start time.Time) {
	minutes := result.DurationSeconds() / 60
	s.quota.Record(ctx, userID, minutes, input.Size())

	if id := s.records.Save(ctx, input.Path(), filename, userID, input.Size()); id != "" {
		result.FileID = &id
	}

	if result.ProcessingTime == 0 {
		result.ProcessingTime = time.Since(start).Seconds()
	}
}

func (s *service) degrade(result *models.PipelineResult, stage string, err error) {
	s.logger.WithError(err).WithField("stage", stage).Warn("optional stage failed, continuing")
	result.Warnings = append(result.Warnings, stage+" failed: "+err.Error())
}

func (s *service) release(res *staging.Resource) {
	if err := res.Release(); err != nil {
		s.logger.WithError(err).WithField("path", res.Path()).Warn("failed to remove staged file")
	}
}
