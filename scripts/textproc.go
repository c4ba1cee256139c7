package scripts

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
)

type textPayload struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Summarize condenses text with the local seq2seq model. Style selection and
// long-input chunking are the orchestrator's concern; this call sees one chunk.
func (r *Runner) Summarize(ctx context.Context, text string, maxLength int, style string) (string, error) {
	const op = "Runner.Summarize"
	return r.runTextTask(ctx, op, text, map[string]string{
		"task":       "summarize",
		"max_length": strconv.Itoa(maxLength),
		"style":      style,
	})
}

// Answer runs question answering over a context document.
func (r *Runner) Answer(ctx context.Context, question, contextText string, maxLength int) (string, error) {
	const op = "Runner.Answer"
	return r.runTextTask(ctx, op, contextText, map[string]string{
		"task":       "answer",
		"question":   question,
		"max_length": strconv.Itoa(maxLength),
	})
}

// Correct rewrites text fixing recognition typos, preserving meaning.
func (r *Runner) Correct(ctx context.Context, text, language string) (string, error) {
	const op = "Runner.Correct"
	return r.runTextTask(ctx, op, text, map[string]string{
		"task":     "correct",
		"language": language,
	})
}

// TranslateFast is the quick, length-limited translation engine. Inputs past
// its hard cap must be truncated by the caller before this call.
func (r *Runner) TranslateFast(ctx context.Context, text, targetLanguage string) (string, error) {
	const op = "Runner.TranslateFast"
	return r.runTextTask(ctx, op, text, map[string]string{
		"task":   "translate",
		"engine": "fast",
		"target": targetLanguage,
	})
}

// TranslateContext is the slower, unbounded-length translation engine.
func (r *Runner) TranslateContext(ctx context.Context, text, targetLanguage string) (string, error) {
	const op = "Runner.TranslateContext"
	return r.runTextTask(ctx, op, text, map[string]string{
		"task":   "translate",
		"engine": "context",
		"target": targetLanguage,
	})
}

func (r *Runner) runTextTask(ctx context.Context, op, text string, args map[string]string) (string, error) {
	inputPath, cleanup, err := r.writeTextPayload(text)
	if err != nil {
		return "", errors.Wrap(err, op)
	}
	defer cleanup()

	args["input"] = inputPath

	output, err := r.runScript(ctx, "textproc.py", args, nil)
	if err != nil {
		return "", errors.Wrap(err, op)
	}

	var payload textPayload
	if err := unmarshalResult(output, &payload); err != nil {
		return "", errors.Wrap(err, op)
	}
	if payload.Error != "" {
		return "", errors.Errorf("%s: %s", op, payload.Error)
	}

	return payload.Text, nil
}
