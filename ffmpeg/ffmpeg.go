// Package ffmpeg wraps the ffmpeg and ffprobe binaries behind a small
// transcoder API: format transforms, audio extraction for transcription, and
// media probing. The process is stateless; every call is one subprocess.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	FFmpegPath  string
	FFprobePath string
}

type Transcoder struct {
	config Config
	logger *logrus.Logger
}

func New(cfg Config) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	return &Transcoder{config: cfg, logger: logrus.StandardLogger()}
}

// TransformOptions tune a format transform. Zero values mean "keep source".
type TransformOptions struct {
	Bitrate    string // e.g. "192k"
	SampleRate int    // Hz
	Channels   int
	Resolution string // e.g. "1280x720", video only
}

// Transform converts input to targetFormat, writing the output next to the
// input with the new extension, and returns the output path.
func (t *Transcoder) Transform(ctx context.Context, inputPath, targetFormat string, opts TransformOptions) (string, error) {
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	outputPath := base + "." + strings.TrimPrefix(targetFormat, ".")

	args := buildTransformArgs(inputPath, outputPath, opts)
	if err := t.run(ctx, t.config.FFmpegPath, args); err != nil {
		return "", err
	}
	return outputPath, nil
}

// ExtractAudio pulls the audio track out of a video as 16 kHz mono wav, the
// input rate the transcriber expects, and returns the wav path.
func (t *Transcoder) ExtractAudio(ctx context.Context, videoPath, outputDir string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outputPath := filepath.Join(outputDir, name+".wav")

	args := []string{
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y", outputPath,
	}
	if err := t.run(ctx, t.config.FFmpegPath, args); err != nil {
		return "", err
	}
	return outputPath, nil
}

// ProbeInfo is the subset of ffprobe output the gateway cares about.
type ProbeInfo struct {
	DurationSeconds float64
	Format          string
	BitRate         int64
	Streams         []StreamInfo
}

type StreamInfo struct {
	CodecType string
	CodecName string
}

// HasVideo reports whether any probed stream carries video.
func (p *ProbeInfo) HasVideo() bool {
	for _, s := range p.Streams {
		if s.CodecType == "video" {
			return true
		}
	}
	return false
}

// Probe inspects a media file with ffprobe.
func (t *Transcoder) Probe(ctx context.Context, inputPath string) (*ProbeInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, t.config.FFprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, t.commandError(err, t.config.FFprobePath, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

func buildTransformArgs(inputPath, outputPath string, opts TransformOptions) []string {
	args := []string{"-i", inputPath}
	if opts.Bitrate != "" {
		args = append(args, "-b:a", opts.Bitrate)
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(opts.Channels))
	}
	if opts.Resolution != "" {
		args = append(args, "-s", opts.Resolution)
	}
	return append(args, "-y", outputPath)
}

func parseProbeOutput(data []byte) (*ProbeInfo, error) {
	var raw struct {
		Format struct {
			Duration   string `json:"duration"`
			FormatName string `json:"format_name"`
			BitRate    string `json:"bit_rate"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse ffprobe output")
	}

	info := &ProbeInfo{Format: raw.Format.FormatName}
	if raw.Format.Duration != "" {
		d, err := strconv.ParseFloat(raw.Format.Duration, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid duration %q", raw.Format.Duration)
		}
		info.DurationSeconds = d
	}
	if raw.Format.BitRate != "" {
		if b, err := strconv.ParseInt(raw.Format.BitRate, 10, 64); err == nil {
			info.BitRate = b
		}
	}
	for _, s := range raw.Streams {
		info.Streams = append(info.Streams, StreamInfo{CodecType: s.CodecType, CodecName: s.CodecName})
	}
	return info, nil
}

func (t *Transcoder) run(ctx context.Context, bin string, args []string) error {
	t.logger.WithFields(logrus.Fields{
		"bin":  bin,
		"args": strings.Join(args, " "),
	}).Debug("Running encoder command")

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return t.commandError(err, bin, stderr.String())
	}
	return nil
}

func (t *Transcoder) commandError(err error, bin, stderr string) error {
	if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
		return errors.Wrapf(err, "%s not found on host", bin)
	}
	stderr = strings.TrimSpace(stderr)
	if stderr != "" {
		return errors.Wrap(err, fmt.Sprintf("%s failed: %s", filepath.Base(bin), lastLine(stderr)))
	}
	return errors.Wrapf(err, "%s failed", filepath.Base(bin))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
