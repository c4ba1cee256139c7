package scripts

import (
	"context"

	"github.com/pkg/errors"

	"media-studio/models"
)

// TranscriptionPayload is the JSON contract of transcribe.py.
type TranscriptionPayload struct {
	Text           string           `json:"text"`
	Segments       []SegmentPayload `json:"segments"`
	Language       string           `json:"language"`
	Confidence     *float64         `json:"confidence,omitempty"`
	ProcessingTime float64          `json:"processing_time"`
	ModelName      string           `json:"model_name"`
	Error          string           `json:"error,omitempty"`
}

type SegmentPayload struct {
	Text  string         `json:"text"`
	Start float64        `json:"start"`
	End   float64        `json:"end"`
	Words []WordPayload  `json:"words,omitempty"`
}

type WordPayload struct {
	Word       string   `json:"word"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Transcribe runs whisper over an audio file and returns the recognized
// text with segment and word timestamps.
func (r *Runner) Transcribe(ctx context.Context, audioPath, language string) (*models.PipelineResult, error) {
	const op = "Runner.Transcribe"

	args := map[string]string{
		"audio":    audioPath,
		"model":    r.config.GetDefaultModel(),
		"language": language,
	}

	output, err := r.runScript(ctx, "transcribe.py", args, nil)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	var payload TranscriptionPayload
	if err := unmarshalResult(output, &payload); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if payload.Error != "" {
		return nil, errors.Errorf("%s: %s", op, payload.Error)
	}

	return payload.toResult(), nil
}

func (p *TranscriptionPayload) toResult() *models.PipelineResult {
	result := &models.PipelineResult{
		Text:           p.Text,
		Language:       p.Language,
		Confidence:     p.Confidence,
		ProcessingTime: p.ProcessingTime,
	}
	for _, s := range p.Segments {
		seg := models.Segment{Text: s.Text, Start: s.Start, End: s.End}
		for _, w := range s.Words {
			seg.Words = append(seg.Words, models.WordTimestamp{
				Word:       w.Word,
				Start:      w.Start,
				End:        w.End,
				Confidence: w.Confidence,
			})
		}
		result.Segments = append(result.Segments, seg)
	}
	return result
}
