package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"media-studio/config"
	"media-studio/errors"
)

var (
	audioExtensions = map[string]bool{
		".mp3": true, ".wav": true, ".ogg": true, ".flac": true,
		".m4a": true, ".aac": true, ".wma": true, ".opus": true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".avi": true, ".mkv": true, ".mov": true,
		".wmv": true, ".flv": true, ".webm": true, ".mpeg": true, ".mpg": true,
	}
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
		".tiff": true, ".gif": true, ".webp": true,
	}
)

type Validator struct {
	config *config.Config
}

func NewValidator(cfg *config.Config) *Validator {
	return &Validator{config: cfg}
}

// ValidateMediaUpload checks an uploaded audio or video file.
func (v *Validator) ValidateMediaUpload(filename string, size int64) error {
	const op = "Validator.ValidateMediaUpload"

	if err := v.validateSize(op, size); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !audioExtensions[ext] && !videoExtensions[ext] {
		return errors.InvalidInput(op, nil, fmt.Sprintf("unsupported media format: %s", ext))
	}
	return nil
}

// ValidateImageUpload checks an uploaded image file.
func (v *Validator) ValidateImageUpload(filename string, size int64) error {
	const op = "Validator.ValidateImageUpload"

	if err := v.validateSize(op, size); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return errors.InvalidInput(op, nil, fmt.Sprintf("unsupported image format: %s", ext))
	}
	return nil
}

// IsVideoFile reports whether the filename carries a video extension.
func IsVideoFile(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ValidateConversion checks a conversion upload and its target format. Audio
// sources cannot be converted to video formats.
func (v *Validator) ValidateConversion(filename, targetFormat string, size int64) error {
	const op = "Validator.ValidateConversion"

	if err := v.ValidateMediaUpload(filename, size); err != nil {
		return err
	}

	ext := "." + strings.TrimPrefix(strings.ToLower(targetFormat), ".")
	if !audioExtensions[ext] && !videoExtensions[ext] {
		return errors.InvalidInput(op, nil, fmt.Sprintf("unsupported target format: %s", targetFormat))
	}
	if videoExtensions[ext] && !IsVideoFile(filename) {
		return errors.InvalidInput(op, nil, "cannot convert an audio source to a video format")
	}
	return nil
}

// ValidateURL checks a remote media URL.
func (v *Validator) ValidateURL(urlStr string) error {
	const op = "Validator.ValidateURL"

	if urlStr == "" {
		return errors.InvalidInput(op, nil, "URL is required")
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return errors.InvalidInput(op, err, "Invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.InvalidInput(op, nil, "URL must use HTTP or HTTPS")
	}

	if parsedURL.Hostname() == "" {
		return errors.InvalidInput(op, nil, "URL must include a host")
	}

	return nil
}

func (v *Validator) validateSize(op string, size int64) error {
	if size <= 0 {
		return errors.InvalidInput(op, nil, "file is empty")
	}
	if max := v.config.MaxUploadSize; max > 0 && size > max {
		return errors.InvalidInput(op, nil,
			fmt.Sprintf("file exceeds the %d MB upload limit", max/(1024*1024)))
	}
	return nil
}
