package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	// Inputs past this length are auto-upgraded to the contextual engine
	// even when the caller asked for the fast one.
	fastEngineThreshold = 4000
	// Hard input cap of the fast engine. Longer text is truncated, never
	// rejected.
	fastEngineLimit = 5000

	// Text past this length is summarized chunk-by-chunk.
	chunkThreshold = 2000
	// Upper bound of a single chunk handed to the summarizer.
	chunkLimit = 1300
)

const truncationWarning = "translation input truncated to fit the fast engine"

var summaryStyles = map[string]bool{
	"bullet_points": true,
	"paragraph":     true,
	"both":          true,
	"structured":    true,
}

// normalizeStyle maps unknown styles to the structured default.
func normalizeStyle(style string) string {
	if summaryStyles[style] {
		return style
	}
	return "structured"
}

// translate picks a translation engine for the input. The contextual engine
// handles any length; the fast engine is chosen only for short inputs and
// truncates anything over its hard cap rather than failing. Lengths are
// counted in runes, not bytes, so non-ASCII text is not penalized.
func translate(ctx context.Context, tr Translator, text, target string, contextual bool) (string, []string, error) {
	if contextual || utf8.RuneCountInString(text) > fastEngineThreshold {
		out, err := tr.TranslateContext(ctx, text, target)
		return out, nil, err
	}

	text, warnings := truncateForFastEngine(text)
	out, err := tr.TranslateFast(ctx, text, target)
	return out, warnings, err
}

// truncateForFastEngine enforces the fast engine's hard input cap. Oversized
// text is cut to the cap on a rune boundary and flagged with a warning,
// never rejected.
func truncateForFastEngine(text string) (string, []string) {
	if utf8.RuneCountInString(text) <= fastEngineLimit {
		return text, nil
	}
	return string([]rune(text)[:fastEngineLimit]), []string{truncationWarning}
}

// summarize condenses text. Short inputs go through the model in one call;
// long inputs are split on sentence boundaries, summarized chunk by chunk,
// and the concatenated chunk summaries are summarized once more.
func summarize(ctx context.Context, proc TextProcessor, text string, maxLength int, style string) (string, error) {
	style = normalizeStyle(style)

	if utf8.RuneCountInString(text) <= chunkThreshold {
		return proc.Summarize(ctx, text, maxLength, style)
	}

	chunks := splitIntoChunks(text, chunkLimit)
	partials := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		partial, err := proc.Summarize(ctx, chunk, maxLength, style)
		if err != nil {
			return "", errors.Wrap(err, "chunk summarization")
		}
		partials = append(partials, partial)
	}

	combined := strings.Join(partials, " ")
	return proc.Summarize(ctx, combined, maxLength, style)
}

// splitIntoChunks groups whole sentences into chunks of at most limit runes.
// Sentences are never cut: one longer than the limit becomes its own
// oversized chunk.
func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	current := ""
	for _, sentence := range splitSentences(text) {
		switch {
		case current == "":
			current = sentence
		case utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence) > limit:
			chunks = append(chunks, current)
			current = sentence
		default:
			current += " " + sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitSentences breaks text after each run of '.', '!', or '?' that is
// followed by whitespace. Trailing text without a terminator is kept as the
// final sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)

	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 >= len(text) || !isSpace(text[i+1]) {
				continue
			}
			sentences = append(sentences, text[start:i+1])
			j := i + 1
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
