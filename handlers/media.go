package handlers

import (
	"context"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"media-studio/errors"
	"media-studio/services/pipeline"
	"media-studio/staging"
	"media-studio/validation"
)

// MediaHandler serves the processing endpoints.
type MediaHandler struct {
	service   pipeline.Service
	validator *validation.Validator
	staging   *staging.Dir
	timeout   time.Duration
}

func NewMediaHandler(service pipeline.Service, validator *validation.Validator, dir *staging.Dir, timeout time.Duration) *MediaHandler {
	return &MediaHandler{service: service, validator: validator, staging: dir, timeout: timeout}
}

// requestContext bounds a processing call to the configured request timeout.
func (h *MediaHandler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return c.Context(), func() {}
	}
	return context.WithTimeout(c.Context(), h.timeout)
}

// userID extracts the caller's identity from the Authorization header. An
// absent or malformed header means anonymous access, which is permitted.
func userID(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Transcribe handles POST /api/transcribe: multipart audio/video upload with
// optional correction, translation, and summarization.
func (h *MediaHandler) Transcribe(c *fiber.Ctx) error {
	const op = "MediaHandler.Transcribe"

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errors.InvalidInput(op, err, "file is required")
	}
	if err := h.validator.ValidateMediaUpload(fileHeader.Filename, fileHeader.Size); err != nil {
		return err
	}

	path, err := h.stage(fileHeader)
	if err != nil {
		return errors.Internal(op, err, "failed to store upload")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	result, err := h.service.ProcessMedia(ctx, pipeline.TranscribeRequest{
		FilePath:       path,
		Filename:       fileHeader.Filename,
		UserID:         userID(c),
		Size:           fileHeader.Size,
		Language:       c.FormValue("language"),
		TargetLanguage: c.FormValue("target_language"),
		ContextualMode: c.FormValue("context") == "true",
		Summarize:      c.FormValue("summarize") == "true",
		SummaryStyle:   c.FormValue("summary_style"),
		CorrectText:    c.FormValue("correct") == "true",
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// TranscribeURL handles POST /api/transcribe/url: process a remote video.
func (h *MediaHandler) TranscribeURL(c *fiber.Ctx) error {
	url := c.FormValue("url")
	if err := h.validator.ValidateURL(url); err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	result, err := h.service.ProcessURL(ctx, pipeline.URLRequest{
		URL:            url,
		UserID:         userID(c),
		Language:       c.FormValue("language"),
		TargetLanguage: c.FormValue("target_language"),
		ContextualMode: c.FormValue("context") == "true",
		Summarize:      c.FormValue("summarize") == "true",
		SummaryStyle:   c.FormValue("summary_style"),
		CorrectText:    c.FormValue("correct") == "true",
		SliceRange:     c.FormValue("slice"),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// OCR handles POST /api/ocr: extract text from an uploaded image.
func (h *MediaHandler) OCR(c *fiber.Ctx) error {
	const op = "MediaHandler.OCR"

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errors.InvalidInput(op, err, "file is required")
	}
	if err := h.validator.ValidateImageUpload(fileHeader.Filename, fileHeader.Size); err != nil {
		return err
	}

	path, err := h.stage(fileHeader)
	if err != nil {
		return errors.Internal(op, err, "failed to store upload")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	result, err := h.service.RecognizeImage(ctx, path, fileHeader.Filename, userID(c), fileHeader.Size)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// Convert handles POST /api/convert: transcode an uploaded media file into
// another format. The converted file is reported by path and, when object
// storage is configured, by record id.
func (h *MediaHandler) Convert(c *fiber.Ctx) error {
	const op = "MediaHandler.Convert"

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errors.InvalidInput(op, err, "file is required")
	}
	target := c.FormValue("target_format")
	if err := h.validator.ValidateConversion(fileHeader.Filename, target, fileHeader.Size); err != nil {
		return err
	}

	path, err := h.stage(fileHeader)
	if err != nil {
		return errors.Internal(op, err, "failed to store upload")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	result, err := h.service.Convert(ctx, pipeline.ConvertRequest{
		FilePath:     path,
		Filename:     fileHeader.Filename,
		UserID:       userID(c),
		Size:         fileHeader.Size,
		TargetFormat: target,
		Bitrate:      c.FormValue("bitrate"),
		SampleRate:   formInt(c, "sample_rate"),
		Channels:     formInt(c, "channels"),
		Resolution:   c.FormValue("resolution"),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

func formInt(c *fiber.Ctx, key string) int {
	n, err := strconv.Atoi(c.FormValue(key))
	if err != nil {
		return 0
	}
	return n
}

type summarizeRequest struct {
	Text      string `json:"text"`
	Style     string `json:"style"`
	MaxLength int    `json:"max_length"`
}

// Summarize handles POST /api/summarize: condense caller-supplied text.
func (h *MediaHandler) Summarize(c *fiber.Ctx) error {
	const op = "MediaHandler.Summarize"

	var req summarizeRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.InvalidInput(op, err, "invalid request body")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	summary, err := h.service.Summarize(ctx, pipeline.SummarizeRequest{
		Text:      req.Text,
		Style:     req.Style,
		MaxLength: req.MaxLength,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"summary": summary},
	})
}

type answerRequest struct {
	Question  string `json:"question"`
	Context   string `json:"context"`
	MaxLength int    `json:"max_length"`
}

// Answer handles POST /api/answer: question answering over supplied text.
func (h *MediaHandler) Answer(c *fiber.Ctx) error {
	const op = "MediaHandler.Answer"

	var req answerRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.InvalidInput(op, err, "invalid request body")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	answer, err := h.service.Answer(ctx, pipeline.AnswerRequest{
		Question:  req.Question,
		Context:   req.Context,
		MaxLength: req.MaxLength,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"answer": answer},
	})
}

// Formats handles GET /api/formats: list downloadable formats of a remote
// video without fetching it.
func (h *MediaHandler) Formats(c *fiber.Ctx) error {
	url := c.Query("url")
	if err := h.validator.ValidateURL(url); err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	formats, err := h.service.ListFormats(ctx, url)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    formats,
	})
}

// stage copies an upload into the staging area and hands ownership to the
// pipeline, which removes the file when the run finishes.
func (h *MediaHandler) stage(fileHeader *multipart.FileHeader) (string, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	res, err := h.staging.Acquire(f, fileHeader.Filename)
	if err != nil {
		return "", err
	}
	return res.Disown(), nil
}
