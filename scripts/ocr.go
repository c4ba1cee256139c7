package scripts

import (
	"context"

	"github.com/pkg/errors"

	"media-studio/models"
)

type ocrPayload struct {
	Text           string  `json:"text"`
	ProcessingTime float64 `json:"processing_time"`
	Error          string  `json:"error,omitempty"`
}

// ExtractText runs the vision-to-text model over an image.
func (r *Runner) ExtractText(ctx context.Context, imagePath string) (*models.PipelineResult, error) {
	const op = "Runner.ExtractText"

	output, err := r.runScript(ctx, "ocr.py", map[string]string{"image": imagePath}, nil)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	var payload ocrPayload
	if err := unmarshalResult(output, &payload); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if payload.Error != "" {
		return nil, errors.Errorf("%s: %s", op, payload.Error)
	}

	return &models.PipelineResult{
		Text:           payload.Text,
		ProcessingTime: payload.ProcessingTime,
	}, nil
}
