// Package condenser shortens disruption descriptions that exceed the post
// limit, either with a language model or by plain truncation.
package condenser

import (
	"context"
	"fmt"
	"strings"

	"natrail-bot/internal/observability/metrics"
	"natrail-bot/internal/utils/text"
)

// Method names used as metric labels and in CONDENSER.
const (
	MethodTruncate = "truncate"
	MethodClaude   = "claude"
	MethodOpenAI   = "openai"
)

// maxInputRunes caps what is sent to a model.
const maxInputRunes = 4000

// Truncate cuts text to the limit and appends an ellipsis.
type Truncate struct{}

// Condense implements compose.Condenser.
func (Truncate) Condense(_ context.Context, s string, limit int) (string, error) {
	metrics.RecordCondensed(MethodTruncate)
	return text.TruncateRunes(s, limit, "…"), nil
}

func buildPrompt(s string, limit int) string {
	return fmt.Sprintf("Rewrite this UK rail disruption notice in at most %d characters. "+
		"Keep station and operator names and every word starting with '#' unchanged. "+
		"Reply with the rewritten notice only.\n\n%s", limit, s)
}

func clip(s string) string {
	return text.TruncateRunes(s, maxInputRunes, "")
}

// check rejects empty or over-limit model output so the caller falls back
// to truncation.
func check(out string, limit int) (string, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty response")
	}
	if n := text.CountRunes(out); n > limit {
		return "", fmt.Errorf("response has %d characters, limit %d", n, limit)
	}
	return out, nil
}
