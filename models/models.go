package models

import (
	"strings"
	"time"
)

// WordTimestamp is a single word with its position in the audio.
type WordTimestamp struct {
	Word       string   `json:"word"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Segment is a contiguous span of recognized speech.
type Segment struct {
	Text  string          `json:"text"`
	Start float64         `json:"start"`
	End   float64         `json:"end"`
	Words []WordTimestamp `json:"words,omitempty"`
}

// PipelineResult is the aggregate output of a pipeline invocation. Optional
// enrichment fields stay nil when their stage was skipped or degraded.
type PipelineResult struct {
	Text              string    `json:"text"`
	TranslatedText    *string   `json:"translated_text,omitempty"`
	SummarizedContent *string   `json:"summarized_content,omitempty"`
	Segments          []Segment `json:"segments"`
	Language          string    `json:"language"`
	Confidence        *float64  `json:"confidence,omitempty"`
	ProcessingTime    float64   `json:"processing_time"`
	FileID            *string   `json:"file_id,omitempty"`
	Warnings          []string  `json:"warnings,omitempty"`
}

// DurationSeconds is the metered duration of the processed media: the end
// timestamp of the last segment, zero when there are none. Trailing silence
// after the last segment is not counted.
func (r *PipelineResult) DurationSeconds() float64 {
	if len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[len(r.Segments)-1].End
}

// JoinedSegmentText concatenates segment texts in order, space separated.
func (r *PipelineResult) JoinedSegmentText() string {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, " ")
}

// ConversionResult describes a completed format conversion. The converted
// file stays on disk at OutputPath; the caller decides when to collect or
// discard it.
type ConversionResult struct {
	FileID         *string `json:"file_id,omitempty"`
	OutputPath     string  `json:"output_path"`
	Filename       string  `json:"filename"`
	Format         string  `json:"format"`
	SizeBytes      int64   `json:"size_bytes"`
	ProcessingTime float64 `json:"processing_time"`
}

// FileRecord is an append-only row describing a completed upload.
type FileRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	SizeBytes   int64     `json:"size_bytes"`
	UserID      string    `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UsageRecord is a per-user accumulator of processed minutes and stored
// bytes. Both counters only grow; a billing-period rollover resets them
// outside this service.
type UsageRecord struct {
	UserID           string    `json:"user_id"`
	MinutesProcessed float64   `json:"minutes_processed"`
	StorageUsedBytes int64     `json:"storage_used_bytes"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MediaInfo describes a remote video resolved by the extractor.
type MediaInfo struct {
	Platform string  `json:"platform"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
}

// FormatDescriptor is one downloadable format of a remote video.
type FormatDescriptor struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"`
	Note       string `json:"note,omitempty"`
}
