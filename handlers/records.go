package handlers

import (
	"github.com/gofiber/fiber/v2"

	"media-studio/errors"
	"media-studio/services/records"
	"media-studio/services/usage"
)

// RecordsHandler serves file history and usage lookups.
type RecordsHandler struct {
	records *records.Service
	usage   *usage.Service
}

func NewRecordsHandler(recordsService *records.Service, usageService *usage.Service) *RecordsHandler {
	return &RecordsHandler{records: recordsService, usage: usageService}
}

// ListFiles handles GET /api/files: the caller's processed files.
func (h *RecordsHandler) ListFiles(c *fiber.Ctx) error {
	const op = "RecordsHandler.ListFiles"

	user := userID(c)
	if user == "" {
		return errors.InvalidInput(op, nil, "authentication is required to list files")
	}

	files, err := h.records.List(c.Context(), user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    files,
	})
}

// GetFile handles GET /api/files/:id.
func (h *RecordsHandler) GetFile(c *fiber.Ctx) error {
	const op = "RecordsHandler.GetFile"

	id := c.Params("id")
	if id == "" {
		return errors.InvalidInput(op, nil, "ID is required")
	}

	record, err := h.records.Get(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    record,
	})
}

// GetUsage handles GET /api/usage: the caller's metered consumption.
func (h *RecordsHandler) GetUsage(c *fiber.Ctx) error {
	const op = "RecordsHandler.GetUsage"

	user := userID(c)
	if user == "" {
		return errors.InvalidInput(op, nil, "authentication is required to view usage")
	}

	record, err := h.usage.Lookup(c.Context(), user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    record,
	})
}
