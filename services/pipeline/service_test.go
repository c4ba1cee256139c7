package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	apperrors "media-studio/errors"
	"media-studio/ffmpeg"
	"media-studio/models"
	"media-studio/scripts"
	"media-studio/staging"
)

// --- fakes ---

type fakeTranscriber struct {
	mu     sync.Mutex
	calls  int
	result *models.PipelineResult
	err    error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, language string) (*models.PipelineResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	return &out, nil
}

type fakeRecognizer struct {
	result *models.PipelineResult
	err    error
}

func (f *fakeRecognizer) ExtractText(ctx context.Context, imagePath string) (*models.PipelineResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	return &out, nil
}

type fakeTranslator struct {
	fastCalls    int
	contextCalls int
	lastFastLen  int
	err          error
}

func (f *fakeTranslator) TranslateFast(ctx context.Context, text, target string) (string, error) {
	f.fastCalls++
	f.lastFastLen = len(text)
	if f.err != nil {
		return "", f.err
	}
	return "fast:" + target, nil
}

func (f *fakeTranslator) TranslateContext(ctx context.Context, text, target string) (string, error) {
	f.contextCalls++
	if f.err != nil {
		return "", f.err
	}
	return "context:" + target, nil
}

type fakeTextProcessor struct {
	summarizeCalls []string // inputs, in order
	styles         []string
	correctCalls   int
	correctErrAt   int // fail the Nth call (1-based), 0 disables
	summarizeErr   error
	answerOut      string
}

func (f *fakeTextProcessor) Summarize(ctx context.Context, text string, maxLength int, style string) (string, error) {
	if f.summarizeErr != nil {
		return "", f.summarizeErr
	}
	f.summarizeCalls = append(f.summarizeCalls, text)
	f.styles = append(f.styles, style)
	return "sum(" + text[:min(10, len(text))] + ")", nil
}

func (f *fakeTextProcessor) Answer(ctx context.Context, question, contextText string, maxLength int) (string, error) {
	return f.answerOut, nil
}

func (f *fakeTextProcessor) Correct(ctx context.Context, text, language string) (string, error) {
	f.correctCalls++
	if f.correctErrAt > 0 && f.correctCalls == f.correctErrAt {
		return "", os.ErrInvalid
	}
	return "fixed:" + text, nil
}

type fakeTranscoder struct {
	hasVideo      bool
	extractedPath string
	extractCalls  int

	transformCalls int
	transformOpts  ffmpeg.TransformOptions
	transformErr   error
}

func (f *fakeTranscoder) HasVideoStream(ctx context.Context, path string) (bool, error) {
	return f.hasVideo, nil
}

func (f *fakeTranscoder) ExtractAudio(ctx context.Context, videoPath, outputDir string) (string, error) {
	f.extractCalls++
	path := filepath.Join(outputDir, "extracted.wav")
	if err := os.WriteFile(path, []byte("pcm"), 0o644); err != nil {
		return "", err
	}
	f.extractedPath = path
	return path, nil
}

func (f *fakeTranscoder) Transform(ctx context.Context, inputPath, targetFormat string, opts ffmpeg.TransformOptions) (string, error) {
	f.transformCalls++
	f.transformOpts = opts
	if f.transformErr != nil {
		return "", f.transformErr
	}
	path := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "." + targetFormat
	if err := os.WriteFile(path, []byte("converted"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeExtractor struct {
	fetchPath string
}

func (f *fakeExtractor) Resolve(ctx context.Context, url string) (*models.MediaInfo, error) {
	return &models.MediaInfo{Platform: "test", Title: "t"}, nil
}

func (f *fakeExtractor) ListFormats(ctx context.Context, url string) ([]models.FormatDescriptor, error) {
	return []models.FormatDescriptor{{FormatID: "22", Ext: "mp4", Resolution: "1280x720"}}, nil
}

func (f *fakeExtractor) Fetch(ctx context.Context, url string, opts scripts.FetchOptions) (*scripts.FetchResult, error) {
	path := filepath.Join(opts.OutputDir, "fetched.wav")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return nil, err
	}
	f.fetchPath = path
	return &scripts.FetchResult{OutputDir: opts.OutputDir, FilePath: path, Platform: "test"}, nil
}

type fakeBackends struct {
	transcriber *fakeTranscriber
	recognizer  *fakeRecognizer
	translator  *fakeTranslator
	text        *fakeTextProcessor
	audio       *fakeTranscoder
	extractor   *fakeExtractor
}

func (f *fakeBackends) Transcriber() (Transcriber, error)     { return f.transcriber, nil }
func (f *fakeBackends) Recognizer() (Recognizer, error)       { return f.recognizer, nil }
func (f *fakeBackends) Translator() (Translator, error)       { return f.translator, nil }
func (f *fakeBackends) TextProcessor() (TextProcessor, error) { return f.text, nil }
func (f *fakeBackends) Transcoder() (Transcoder, error)       { return f.audio, nil }
func (f *fakeBackends) Extractor() (Extractor, error)         { return f.extractor, nil }

type fakeQuota struct {
	mu         sync.Mutex
	reject     bool
	rejectFrom int // reject from the Nth check onward (1-based), 0 disables
	checks     int
	minutes    float64
	bytes      int64
	records    int
}

func (f *fakeQuota) Check(ctx context.Context, userID string) error {
	f.mu.Lock()
	f.checks++
	n := f.checks
	f.mu.Unlock()
	if f.reject || (f.rejectFrom > 0 && n >= f.rejectFrom) {
		return apperrors.Forbidden("quota.Check", nil, "monthly limit reached")
	}
	return nil
}

func (f *fakeQuota) Record(ctx context.Context, userID string, minutes float64, bytes int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records++
	f.minutes += minutes
	f.bytes += bytes
}

type fakeRecorder struct {
	saves int
	id    string
}

func (f *fakeRecorder) Save(ctx context.Context, localPath, filename, userID string, size int64) string {
	f.saves++
	return f.id
}

// --- helpers ---

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type harness struct {
	svc      Service
	backends *fakeBackends
	quota    *fakeQuota
	recorder *fakeRecorder
	staging  *staging.Dir
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir, err := staging.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("staging dir: %v", err)
	}

	b := &fakeBackends{
		transcriber: &fakeTranscriber{result: &models.PipelineResult{
			Text: "hello world.",
			Segments: []models.Segment{
				{Text: "hello world.", Start: 0, End: 90.0},
			},
			Language: "en",
		}},
		recognizer: &fakeRecognizer{result: &models.PipelineResult{Text: "scanned text"}},
		translator: &fakeTranslator{},
		text:       &fakeTextProcessor{answerOut: "42"},
		audio:      &fakeTranscoder{},
		extractor:  &fakeExtractor{},
	}
	q := &fakeQuota{}
	r := &fakeRecorder{id: "rec-1"}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	return &harness{
		svc:      NewService(Config{}, b, dir, q, r, logger),
		backends: b,
		quota:    q,
		recorder: r,
		staging:  dir,
	}
}

func (h *harness) stageFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.staging.Root(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("stage file: %v", err)
	}
	return path
}

// --- orchestrator tests ---

func TestProcessMediaTranscribeOnly(t *testing.T) {
	h := newHarness(t)
	path := h.stageFile(t, "clip.wav", "audio-bytes")

	result, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath: path,
		Filename: "clip.wav",
		UserID:   "u1",
		Size:     11,
	})
	if err != nil {
		t.Fatalf("ProcessMedia failed: %v", err)
	}

	if result.Text == "" {
		t.Error("expected non-empty text")
	}
	if result.TranslatedText != nil {
		t.Error("translation should not run unless requested")
	}
	if result.SummarizedContent != nil {
		t.Error("summarization should not run unless requested")
	}
	if h.quota.minutes != 1.5 {
		t.Errorf("expected 1.5 minutes metered, got %f", h.quota.minutes)
	}
	if h.recorder.saves != 1 {
		t.Errorf("expected one record save, got %d", h.recorder.saves)
	}
	if result.FileID == nil || *result.FileID != "rec-1" {
		t.Error("expected record id on result")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged input should be removed after processing")
	}
}

func TestProcessMediaKeepStagedInput(t *testing.T) {
	h := newHarness(t)
	path := h.stageFile(t, "clip.wav", "audio-bytes")

	_, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath:        path,
		Filename:        "clip.wav",
		KeepStagedInput: true,
	})
	if err != nil {
		t.Fatalf("ProcessMedia failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("input should survive when the caller keeps ownership")
	}
}

func TestQuotaRejectionIsPreflight(t *testing.T) {
	h := newHarness(t)
	h.quota.reject = true
	path := h.stageFile(t, "clip.wav", "audio")

	_, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath: path,
		UserID:   "over-limit",
	})
	if !apperrors.IsForbidden(err) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if h.backends.transcriber.calls != 0 {
		t.Errorf("transcriber must not be invoked after quota rejection, got %d calls", h.backends.transcriber.calls)
	}
	if h.quota.records != 0 {
		t.Error("no usage should be recorded on rejection")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged input must be removed when quota rejects the run")
	}
}

func TestQuotaRejectionKeepsDisownedInput(t *testing.T) {
	h := newHarness(t)
	h.quota.reject = true
	path := h.stageFile(t, "clip.wav", "audio")

	_, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath:        path,
		UserID:          "over-limit",
		KeepStagedInput: true,
	})
	if !apperrors.IsForbidden(err) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("input must survive rejection when the caller keeps ownership")
	}
}

func TestVideoInputExtractsAudioAndCleansUp(t *testing.T) {
	h := newHarness(t)
	h.backends.audio.hasVideo = true
	path := h.stageFile(t, "clip.mp4", "video-bytes")

	_, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath: path,
		Filename: "clip.mp4",
	})
	if err != nil {
		t.Fatalf("ProcessMedia failed: %v", err)
	}
	if h.backends.audio.extractCalls != 1 {
		t.Errorf("expected one audio extraction, got %d", h.backends.audio.extractCalls)
	}
	if _, err := os.Stat(h.backends.audio.extractedPath); !os.IsNotExist(err) {
		t.Error("extracted audio should be removed after processing")
	}
}

func TestAnalysisFailureReleasesExtractedAudio(t *testing.T) {
	h := newHarness(t)
	h.backends.audio.hasVideo = true
	h.backends.transcriber.err = os.ErrDeadlineExceeded
	path := h.stageFile(t, "clip.mp4", "video-bytes")

	_, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath: path,
		UserID:   "u1",
	})
	if err == nil {
		t.Fatal("expected fatal error from transcription failure")
	}
	if _, statErr := os.Stat(h.backends.audio.extractedPath); !os.IsNotExist(statErr) {
		t.Error("extracted audio must be removed on the failure path")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("staged input must be removed on the failure path")
	}
	if h.quota.records != 0 {
		t.Error("no usage may be recorded for a failed run")
	}
}

func TestTranslationEngineSelection(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		contextual  bool
		wantFast    int
		wantContext int
	}{
		{"short text uses fast engine", 3999, false, 1, 0},
		{"long text upgrades silently", 4001, false, 0, 1},
		{"contextual flag forces slow engine", 100, true, 0, 1},
		{"4500 chars never touches fast engine", 4500, false, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backends.transcriber.result.Text = strings.Repeat("a", tt.length)
			path := h.stageFile(t, "clip.wav", "audio")

			result, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
				FilePath:       path,
				TargetLanguage: "es",
				ContextualMode: tt.contextual,
			})
			if err != nil {
				t.Fatalf("ProcessMedia failed: %v", err)
			}
			if result.TranslatedText == nil {
				t.Fatal("expected translated text")
			}
			if h.backends.translator.fastCalls != tt.wantFast {
				t.Errorf("fast calls = %d, want %d", h.backends.translator.fastCalls, tt.wantFast)
			}
			if h.backends.translator.contextCalls != tt.wantContext {
				t.Errorf("context calls = %d, want %d", h.backends.translator.contextCalls, tt.wantContext)
			}
		})
	}
}

func TestFastEngineTruncation(t *testing.T) {
	text := strings.Repeat("b", 5001)
	got, warnings := truncateForFastEngine(text)
	if utf8.RuneCountInString(got) != 5000 {
		t.Errorf("expected exactly 5000 chars, got %d", utf8.RuneCountInString(got))
	}
	if len(warnings) != 1 {
		t.Errorf("expected one truncation warning, got %d", len(warnings))
	}

	got, warnings = truncateForFastEngine("short")
	if got != "short" || warnings != nil {
		t.Error("short input must pass through untouched")
	}
}

func TestFastEngineTruncationIsRuneSafe(t *testing.T) {
	text := strings.Repeat("é", 5001) // two bytes per rune
	got, warnings := truncateForFastEngine(text)
	if utf8.RuneCountInString(got) != 5000 {
		t.Errorf("expected 5000 runes, got %d", utf8.RuneCountInString(got))
	}
	if !utf8.ValidString(got) {
		t.Error("truncation must not cut inside a rune")
	}
	if len(warnings) != 1 {
		t.Errorf("expected one truncation warning, got %d", len(warnings))
	}
}

func TestEngineSelectionCountsRunes(t *testing.T) {
	h := newHarness(t)
	// 3500 runes but 7000 bytes: still short enough for the fast engine.
	h.backends.transcriber.result.Text = strings.Repeat("é", 3500)
	path := h.stageFile(t, "clip.wav", "audio")

	_, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath:       path,
		TargetLanguage: "es",
	})
	if err != nil {
		t.Fatalf("ProcessMedia failed: %v", err)
	}
	if h.backends.translator.fastCalls != 1 || h.backends.translator.contextCalls != 0 {
		t.Errorf("non-ASCII text under the threshold must use the fast engine, fast=%d context=%d",
			h.backends.translator.fastCalls, h.backends.translator.contextCalls)
	}
}

func TestTranslationFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.backends.translator.err = os.ErrClosed
	path := h.stageFile(t, "clip.wav", "audio")

	result, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath:       path,
		TargetLanguage: "fr",
	})
	if err != nil {
		t.Fatalf("translation failure must not fail the run: %v", err)
	}
	if result.TranslatedText != nil {
		t.Error("translated text must stay unset on failure")
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning about the failed stage")
	}
}

func TestSummarizationPrefersTranslatedText(t *testing.T) {
	h := newHarness(t)
	path := h.stageFile(t, "clip.wav", "audio")

	result, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath:       path,
		TargetLanguage: "es",
		Summarize:      true,
	})
	if err != nil {
		t.Fatalf("ProcessMedia failed: %v", err)
	}
	if result.SummarizedContent == nil {
		t.Fatal("expected a summary")
	}
	calls := h.backends.text.summarizeCalls
	if len(calls) != 1 || calls[0] != *result.TranslatedText {
		t.Errorf("summary must run over translated text, summarized %q", calls)
	}
}

func TestSummarizationFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.backends.text.summarizeErr = os.ErrClosed
	path := h.stageFile(t, "clip.wav", "audio")

	result, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath:  path,
		Summarize: true,
	})
	if err != nil {
		t.Fatalf("summarization failure must not fail the run: %v", err)
	}
	if result.SummarizedContent != nil {
		t.Error("summary must stay unset on failure")
	}
}

func TestCorrectionCommitsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	h.backends.transcriber.result.Segments = []models.Segment{
		{Text: "seg one.", End: 10},
		{Text: "seg two.", End: 20},
	}
	h.backends.text.correctErrAt = 2 // full text succeeds, first segment fails
	path := h.stageFile(t, "clip.wav", "audio")

	result, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath:    path,
		CorrectText: true,
	})
	if err != nil {
		t.Fatalf("correction failure must not fail the run: %v", err)
	}
	if strings.HasPrefix(result.Text, "fixed:") {
		t.Error("partial correction must not be committed")
	}
	for _, seg := range result.Segments {
		if strings.HasPrefix(seg.Text, "fixed:") {
			t.Error("partial segment correction must not be committed")
		}
	}
}

func TestCorrectionAppliesToTextAndSegments(t *testing.T) {
	h := newHarness(t)
	path := h.stageFile(t, "clip.wav", "audio")

	result, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{
		FilePath:    path,
		CorrectText: true,
	})
	if err != nil {
		t.Fatalf("ProcessMedia failed: %v", err)
	}
	if !strings.HasPrefix(result.Text, "fixed:") {
		t.Errorf("text not corrected: %q", result.Text)
	}
	for _, seg := range result.Segments {
		if !strings.HasPrefix(seg.Text, "fixed:") {
			t.Errorf("segment not corrected: %q", seg.Text)
		}
	}
}

func TestProcessURLFetchesThenProcesses(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.ProcessURL(context.Background(), URLRequest{
		URL:    "https://example.com/watch?v=x",
		UserID: "u1",
	})
	if err != nil {
		t.Fatalf("ProcessURL failed: %v", err)
	}
	if result.Text == "" {
		t.Error("expected transcription output")
	}
	if _, err := os.Stat(h.backends.extractor.fetchPath); !os.IsNotExist(err) {
		t.Error("fetched media should be removed after processing")
	}
}

func TestProcessURLQuotaRejectionRemovesFetchedFile(t *testing.T) {
	h := newHarness(t)
	h.quota.rejectFrom = 2 // admit the pre-fetch check, reject after download

	_, err := h.svc.ProcessURL(context.Background(), URLRequest{
		URL:    "https://example.com/watch?v=x",
		UserID: "over-limit",
	})
	if !apperrors.IsForbidden(err) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if h.backends.extractor.fetchPath == "" {
		t.Fatal("expected the fetch to have run")
	}
	if _, err := os.Stat(h.backends.extractor.fetchPath); !os.IsNotExist(err) {
		t.Error("fetched media must be removed when quota rejects the run")
	}
}

func TestRecognizeImage(t *testing.T) {
	h := newHarness(t)
	path := h.stageFile(t, "scan.png", "png-bytes")

	result, err := h.svc.RecognizeImage(context.Background(), path, "scan.png", "u1", 9)
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
	if result.Text != "scanned text" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if h.quota.minutes != 0 {
		t.Errorf("image work must meter zero minutes, got %f", h.quota.minutes)
	}
	if h.quota.bytes == 0 {
		t.Error("image work should still meter bytes")
	}
}

func TestConvertTranscodesAndMeters(t *testing.T) {
	h := newHarness(t)
	path := h.stageFile(t, "clip.wav", "pcm-bytes")

	result, err := h.svc.Convert(context.Background(), ConvertRequest{
		FilePath:     path,
		Filename:     "clip.wav",
		UserID:       "u1",
		TargetFormat: "mp3",
		Bitrate:      "192k",
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.Format != "mp3" || !strings.HasSuffix(result.OutputPath, ".mp3") {
		t.Errorf("unexpected output: %+v", result)
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Error("converted file must be left on disk for the caller")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged input must be removed after conversion")
	}
	if h.backends.audio.transformOpts.Bitrate != "192k" {
		t.Errorf("options not forwarded: %+v", h.backends.audio.transformOpts)
	}
	if h.quota.minutes != 0 {
		t.Errorf("conversion must meter zero minutes, got %f", h.quota.minutes)
	}
	if h.quota.bytes == 0 {
		t.Error("conversion should still meter bytes")
	}
	if result.FileID == nil || *result.FileID != "rec-1" {
		t.Error("expected record id on result")
	}
}

func TestConvertRejectsSameFormat(t *testing.T) {
	h := newHarness(t)
	path := h.stageFile(t, "clip.wav", "pcm-bytes")

	_, err := h.svc.Convert(context.Background(), ConvertRequest{
		FilePath:     path,
		TargetFormat: "wav",
	})
	if !apperrors.IsInvalidInput(err) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if h.backends.audio.transformCalls != 0 {
		t.Error("transcoder must not run for a no-op conversion")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged input must be removed on rejection")
	}
}

func TestConvertQuotaRejection(t *testing.T) {
	h := newHarness(t)
	h.quota.reject = true
	path := h.stageFile(t, "clip.wav", "pcm-bytes")

	_, err := h.svc.Convert(context.Background(), ConvertRequest{
		FilePath:     path,
		UserID:       "over-limit",
		TargetFormat: "mp3",
	})
	if !apperrors.IsForbidden(err) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if h.backends.audio.transformCalls != 0 {
		t.Error("transcoder must not run after quota rejection")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged input must be removed when quota rejects the run")
	}
}

func TestNoSegmentsMeansZeroMinutes(t *testing.T) {
	h := newHarness(t)
	h.backends.transcriber.result.Segments = nil
	path := h.stageFile(t, "clip.wav", "audio")

	_, err := h.svc.ProcessMedia(context.Background(), TranscribeRequest{FilePath: path, UserID: "u1"})
	if err != nil {
		t.Fatalf("ProcessMedia failed: %v", err)
	}
	if h.quota.minutes != 0 {
		t.Errorf("expected zero minutes without segments, got %f", h.quota.minutes)
	}
}

// --- stage unit tests ---

func TestNormalizeStyle(t *testing.T) {
	tests := []struct{ in, want string }{
		{"bullet_points", "bullet_points"},
		{"paragraph", "paragraph"},
		{"both", "both"},
		{"structured", "structured"},
		{"", "structured"},
		{"haiku", "structured"},
	}
	for _, tt := range tests {
		if got := normalizeStyle(tt.in); got != tt.want {
			t.Errorf("normalizeStyle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitIntoChunks(t *testing.T) {
	sentence := strings.Repeat("word ", 50) + "end. " // ~255 chars
	text := strings.Repeat(sentence, 10)              // ~2550 chars

	chunks := splitIntoChunks(text, chunkLimit)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > chunkLimit {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(chunk))
		}
		if !strings.HasSuffix(chunk, ".") {
			t.Errorf("chunk %d does not end on a sentence boundary: %q", i, chunk[len(chunk)-20:])
		}
	}
	if strings.Count(strings.Join(chunks, " "), "end.") != 10 {
		t.Error("chunks lost sentences")
	}
}

func TestSplitIntoChunksKeepsOversizedSentenceWhole(t *testing.T) {
	long := strings.Repeat("b", 2*chunkLimit) + "."
	text := "Short. " + long + " Tail."

	chunks := splitIntoChunks(text, chunkLimit)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0] != "Short." || chunks[2] != "Tail." {
		t.Errorf("surrounding sentences mangled: %q, %q", chunks[0], chunks[2])
	}
	if chunks[1] != long {
		t.Errorf("a sentence longer than the limit must become its own chunk, got %d of %d chars",
			len(chunks[1]), len(long))
	}
}

func TestSplitIntoChunksNoTerminator(t *testing.T) {
	text := strings.Repeat("a", 3000)
	chunks := splitIntoChunks(text, chunkLimit)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("text without sentence boundaries must stay one chunk, got %d", len(chunks))
	}
}

func TestSummarizeShortTextSinglePass(t *testing.T) {
	proc := &fakeTextProcessor{}
	if _, err := summarize(context.Background(), proc, "short text.", 150, "paragraph"); err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if len(proc.summarizeCalls) != 1 {
		t.Errorf("short input must be summarized in one call, got %d", len(proc.summarizeCalls))
	}
	if proc.styles[0] != "paragraph" {
		t.Errorf("style not forwarded: %q", proc.styles[0])
	}
}

func TestSummarizeLongTextTwoPass(t *testing.T) {
	sentence := strings.Repeat("word ", 40) + "end. " // ~205 chars
	text := strings.Repeat(sentence, 13)              // ~2665 chars, over threshold

	proc := &fakeTextProcessor{}
	if _, err := summarize(context.Background(), proc, text, 150, "bogus"); err != nil {
		t.Fatalf("summarize failed: %v", err)
	}

	n := len(proc.summarizeCalls)
	if n < 3 {
		t.Fatalf("expected chunk passes plus a final pass, got %d calls", n)
	}
	// The final call input is the concatenation of the partials.
	final := proc.summarizeCalls[n-1]
	for _, partial := range proc.summarizeCalls[:n-1] {
		want := "sum(" + partial[:min(10, len(partial))] + ")"
		if !strings.Contains(final, want) {
			t.Errorf("final pass missing partial summary %q", want)
		}
	}
	for _, style := range proc.styles {
		if style != "structured" {
			t.Errorf("invalid style must fall back to structured, got %q", style)
		}
	}
}

func TestDirectSummarizeValidation(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Summarize(context.Background(), SummarizeRequest{Text: "  "}); err == nil {
		t.Error("empty text must be rejected")
	}
	out, err := h.svc.Summarize(context.Background(), SummarizeRequest{Text: "some text."})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if out == "" {
		t.Error("expected a summary")
	}
}

func TestDirectAnswer(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Answer(context.Background(), AnswerRequest{Question: "q"}); err == nil {
		t.Error("missing context must be rejected")
	}
	out, err := h.svc.Answer(context.Background(), AnswerRequest{Question: "q", Context: "c"})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if out != "42" {
		t.Errorf("unexpected answer: %q", out)
	}
}
