// Package pipeline orchestrates the multi-stage media processing flow:
// staging, audio extraction, speech recognition, correction, translation,
// summarization, usage metering, and record persistence.
package pipeline

import (
	"context"

	"media-studio/ffmpeg"
	"media-studio/models"
	"media-studio/scripts"
)

// Transcriber converts an audio file into text with timestamps.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (*models.PipelineResult, error)
}

// Recognizer extracts text from an image.
type Recognizer interface {
	ExtractText(ctx context.Context, imagePath string) (*models.PipelineResult, error)
}

// Translator exposes the two translation engines. The fast engine is
// length-limited; the context engine is slower but unbounded.
type Translator interface {
	TranslateFast(ctx context.Context, text, targetLanguage string) (string, error)
	TranslateContext(ctx context.Context, text, targetLanguage string) (string, error)
}

// TextProcessor covers summarization, question answering, and correction.
type TextProcessor interface {
	Summarize(ctx context.Context, text string, maxLength int, style string) (string, error)
	Answer(ctx context.Context, question, contextText string, maxLength int) (string, error)
	Correct(ctx context.Context, text, language string) (string, error)
}

// Transcoder converts media between formats and pulls normalized audio
// tracks out of video containers.
type Transcoder interface {
	ExtractAudio(ctx context.Context, videoPath, outputDir string) (string, error)
	HasVideoStream(ctx context.Context, path string) (bool, error)
	Transform(ctx context.Context, inputPath, targetFormat string, opts ffmpeg.TransformOptions) (string, error)
}

// Extractor fetches remote media for processing.
type Extractor interface {
	Resolve(ctx context.Context, url string) (*models.MediaInfo, error)
	ListFormats(ctx context.Context, url string) ([]models.FormatDescriptor, error)
	Fetch(ctx context.Context, url string, opts scripts.FetchOptions) (*scripts.FetchResult, error)
}

// Backends supplies the processing engines. Implementations are expected to
// construct each engine lazily and cache it for the life of the process.
type Backends interface {
	Transcriber() (Transcriber, error)
	Recognizer() (Recognizer, error)
	Translator() (Translator, error)
	TextProcessor() (TextProcessor, error)
	Transcoder() (Transcoder, error)
	Extractor() (Extractor, error)
}

// QuotaGate admits or rejects work before any resource is spent, and
// records consumption after work completes.
type QuotaGate interface {
	Check(ctx context.Context, userID string) error
	Record(ctx context.Context, userID string, minutes float64, bytes int64)
}

// Recorder persists processed-file records. Failures are the recorder's to
// absorb; callers never see them.
type Recorder interface {
	Save(ctx context.Context, localPath, filename, userID string, size int64) string
}

// TranscribeRequest describes one audio or video processing job.
type TranscribeRequest struct {
	FilePath string
	Filename string
	UserID   string
	Size     int64

	Language        string
	TargetLanguage  string // empty disables translation
	ContextualMode  bool   // prefer the contextual translation engine
	Summarize       bool
	SummaryStyle    string
	CorrectText     bool
	KeepStagedInput bool // caller retains ownership of FilePath
}

// URLRequest processes a remote video by URL.
type URLRequest struct {
	URL            string
	UserID         string
	Language       string
	TargetLanguage string
	ContextualMode bool
	Summarize      bool
	SummaryStyle   string
	CorrectText    bool
	SliceRange     string
}

// ConvertRequest transcodes a staged media file into another format.
type ConvertRequest struct {
	FilePath string
	Filename string
	UserID   string
	Size     int64

	TargetFormat string
	Bitrate      string // e.g. "192k", empty keeps source
	SampleRate   int    // Hz, zero keeps source
	Channels     int    // zero keeps source
	Resolution   string // e.g. "1280x720", video targets only
}

// SummarizeRequest condenses caller-supplied text.
type SummarizeRequest struct {
	Text      string
	Style     string
	MaxLength int
}

// AnswerRequest answers a question over caller-supplied context.
type AnswerRequest struct {
	Question  string
	Context   string
	MaxLength int
}

// Service is the pipeline orchestrator.
type Service interface {
	ProcessMedia(ctx context.Context, req TranscribeRequest) (*models.PipelineResult, error)
	ProcessURL(ctx context.Context, req URLRequest) (*models.PipelineResult, error)
	RecognizeImage(ctx context.Context, imagePath, filename, userID string, size int64) (*models.PipelineResult, error)
	Convert(ctx context.Context, req ConvertRequest) (*models.ConversionResult, error)
	Summarize(ctx context.Context, req SummarizeRequest) (string, error)
	Answer(ctx context.Context, req AnswerRequest) (string, error)
	ListFormats(ctx context.Context, url string) ([]models.FormatDescriptor, error)
}
