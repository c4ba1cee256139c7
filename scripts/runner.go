// Package scripts runs the Python model backends (whisper transcription,
// OCR, seq2seq text models, yt-dlp extraction) as subprocesses speaking JSON
// on stdout. Each call is stateless; model caching happens inside the
// scripts, once per process over there.
package scripts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Config struct {
	PythonPath  string        // Path to Python executable
	ScriptsPath string        // Path to Python scripts directory
	Timeout     time.Duration // Script execution timeout
	TempDir     string        // Scratch directory for text payloads
	Environment []string      // Additional environment variables
	Model       string        // Default Whisper model to use

	// FetchRatePerSecond throttles extractor calls against remote platforms.
	FetchRatePerSecond float64
}

// GetDefaultModel returns the configured whisper model or a fallback.
func (cfg *Config) GetDefaultModel() string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return "base"
}

type Runner struct {
	config  Config
	logger  *logrus.Logger
	limiter *rate.Limiter
}

func NewRunner(cfg Config) (*Runner, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	perSecond := cfg.FetchRatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}

	return &Runner{
		config:  cfg,
		logger:  logrus.StandardLogger(),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}, nil
}

func validateConfig(cfg Config) error {
	if _, err := os.Stat(cfg.ScriptsPath); os.IsNotExist(err) {
		return fmt.Errorf("scripts directory does not exist: %s", cfg.ScriptsPath)
	}

	requiredScripts := []string{"transcribe.py", "textproc.py", "extract.py", "ocr.py"}
	for _, script := range requiredScripts {
		scriptPath := filepath.Join(cfg.ScriptsPath, script)
		if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
			return fmt.Errorf("required script not found: %s", scriptPath)
		}
	}
	return nil
}

func (r *Runner) runScript(
	ctx context.Context,
	scriptName string,
	args map[string]string,
	flags []string,
) ([]byte, error) {
	const op = "Runner.runScript"
	scriptPath := filepath.Join(r.config.ScriptsPath, scriptName)

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	r.logger.WithFields(logrus.Fields{
		"script": scriptName,
		"args":   args,
		"flags":  flags,
	}).Debug("Executing script")

	cmdArgs := buildCommandArgs(scriptPath, args, flags)
	cmd := exec.CommandContext(ctx, r.config.PythonPath, cmdArgs...)
	cmd.Dir = r.config.ScriptsPath
	cmd.Env = buildEnvironment(r.config.Environment)

	output, err := r.executeCommand(cmd)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return output, nil
}

func buildCommandArgs(scriptPath string, args map[string]string, flags []string) []string {
	cmdArgs := []string{scriptPath}
	// Stable ordering keeps command logs diffable.
	for _, k := range sortedKeys(args) {
		if args[k] != "" {
			cmdArgs = append(cmdArgs, fmt.Sprintf("--%s", k), args[k])
		}
	}
	for _, flag := range flags {
		cmdArgs = append(cmdArgs, fmt.Sprintf("--%s", flag))
	}
	return cmdArgs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func buildEnvironment(additionalEnv []string) []string {
	env := append(os.Environ(),
		"PYTORCH_CUDA_ALLOC_CONF=max_split_size_mb:512",
	)
	if len(additionalEnv) > 0 {
		env = append(env, additionalEnv...)
	}
	return env
}

func (r *Runner) executeCommand(cmd *exec.Cmd) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrOutput := stderr.String()
		r.logger.WithError(err).
			WithField("stderr", stderrOutput).
			Error("Script execution failed")
		return nil, fmt.Errorf("%v (stderr: %s)", err, stderrOutput)
	}

	output := stdout.Bytes()
	if !json.Valid(output) {
		r.logger.WithField("output", string(output)).Error("Invalid JSON output")
		return nil, fmt.Errorf("invalid JSON output from %s", filepath.Base(cmd.Path))
	}

	return output, nil
}

func unmarshalResult(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "failed to unmarshal result")
	}
	return nil
}

// writeTextPayload stashes a long text argument in a scratch file so it does
// not hit argv length limits; callers remove it when the script returns.
func (r *Runner) writeTextPayload(text string) (string, func(), error) {
	dir := r.config.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	f, err := os.CreateTemp(dir, "payload-*.txt")
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create text payload")
	}

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, errors.Wrap(err, "failed to write text payload")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, errors.Wrap(err, "failed to close text payload")
	}

	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}
