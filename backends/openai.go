package backends

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIText processes text through the OpenAI chat API. It covers the
// same tasks as the local script engine so either can back the pipeline.
type OpenAIText struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

func NewOpenAIText(apiKey, model string, logger *logrus.Logger) *OpenAIText {
	return &OpenAIText{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

func (o *OpenAIText) Summarize(ctx context.Context, text string, maxLength int, style string) (string, error) {
	const op = "OpenAIText.Summarize"

	var instruction string
	switch style {
	case "bullet_points":
		instruction = "Summarize the following text as concise bullet points."
	case "paragraph":
		instruction = "Summarize the following text as a single coherent paragraph."
	case "both":
		instruction = "Summarize the following text twice: first as a paragraph, then as bullet points."
	default:
		instruction = "Summarize the following text with a short headline, key points, and a one-paragraph overview."
	}
	prompt := fmt.Sprintf("%s Keep the summary under roughly %d words.\n\n%s", instruction, maxLength, text)

	return o.complete(ctx, op, "You are a precise summarization assistant.", prompt)
}

func (o *OpenAIText) Answer(ctx context.Context, question, contextText string, maxLength int) (string, error) {
	const op = "OpenAIText.Answer"

	prompt := fmt.Sprintf(
		"Answer the question using only the context below, in at most %d words.\n\nContext:\n%s\n\nQuestion: %s",
		maxLength, contextText, question,
	)
	return o.complete(ctx, op, "You answer questions strictly from the provided context.", prompt)
}

func (o *OpenAIText) Correct(ctx context.Context, text, language string) (string, error) {
	const op = "OpenAIText.Correct"

	system := "You fix transcription errors. Return only the corrected text, preserving meaning and phrasing."
	prompt := text
	if language != "" {
		prompt = fmt.Sprintf("Language: %s\n\n%s", language, text)
	}
	return o.complete(ctx, op, system, prompt)
}

// complete runs one chat completion with exponential-backoff retry around
// transient API failures.
func (o *OpenAIText) complete(ctx context.Context, op, system, prompt string) (string, error) {
	var content string

	operation := func() error {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			o.logger.WithError(err).WithField("op", op).Warn("openai request failed, retrying")
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("empty completion response"))
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 90 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", errors.Wrap(err, op)
	}
	return content, nil
}
