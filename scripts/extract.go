package scripts

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"media-studio/models"
)

// FetchOptions select what the extractor downloads.
type FetchOptions struct {
	FormatSelector string
	SliceRange     string // e.g. "00:01:00-00:02:30"
	AudioOnly      bool
	OutputDir      string
}

type resolvePayload struct {
	Platform string  `json:"platform"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
	Error    string  `json:"error,omitempty"`
}

type formatsPayload struct {
	Formats []models.FormatDescriptor `json:"formats"`
	Error   string                    `json:"error,omitempty"`
}

// FetchResult describes where a fetched video landed.
type FetchResult struct {
	OutputDir string `json:"output_dir"`
	FilePath  string `json:"file_path"`
	Platform  string `json:"platform"`
	Error     string `json:"error,omitempty"`
}

// Resolve looks up platform metadata for a remote video without downloading.
func (r *Runner) Resolve(ctx context.Context, url string) (*models.MediaInfo, error) {
	const op = "Runner.Resolve"

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, op)
	}

	output, err := r.runScript(ctx, "extract.py", map[string]string{
		"url":  url,
		"mode": "resolve",
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	var payload resolvePayload
	if err := unmarshalResult(output, &payload); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if payload.Error != "" {
		return nil, errors.Errorf("%s: %s", op, payload.Error)
	}

	return &models.MediaInfo{
		Platform: payload.Platform,
		Title:    payload.Title,
		Duration: payload.Duration,
		Uploader: payload.Uploader,
	}, nil
}

// ListFormats enumerates the downloadable formats of a remote video.
func (r *Runner) ListFormats(ctx context.Context, url string) ([]models.FormatDescriptor, error) {
	const op = "Runner.ListFormats"

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, op)
	}

	output, err := r.runScript(ctx, "extract.py", map[string]string{
		"url":  url,
		"mode": "formats",
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	var payload formatsPayload
	if err := unmarshalResult(output, &payload); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if payload.Error != "" {
		return nil, errors.Errorf("%s: %s", op, payload.Error)
	}

	return payload.Formats, nil
}

// Fetch downloads a remote video (or its audio track) into opts.OutputDir.
func (r *Runner) Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error) {
	const op = "Runner.Fetch"

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, op)
	}

	args := map[string]string{
		"url":    url,
		"mode":   "fetch",
		"format": opts.FormatSelector,
		"slice":  opts.SliceRange,
		"output": opts.OutputDir,
	}
	var flags []string
	if opts.AudioOnly {
		flags = append(flags, "audio_only")
	}

	output, err := r.runScript(ctx, "extract.py", args, flags)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	var payload FetchResult
	if err := unmarshalResult(output, &payload); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("%s: %s", op, payload.Error)
	}

	return &payload, nil
}
