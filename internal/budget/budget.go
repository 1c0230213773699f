// Package budget sizes model input with a character-based token heuristic.
package budget

import (
	"math"
	"strings"
	"unicode/utf8"
)

// charsPerToken is the conservative English average used by every estimate.
const charsPerToken = 4

// EstimateTokensFromChars converts a character count into an estimated token
// count. The result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / charsPerToken))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// EstimatePromptTokens estimates the total tokens for a prompt composed of
// a system message, a user message, and zero or more extra parts such as a
// shared context.
func EstimatePromptTokens(system string, user string, extra []string) int {
	total := EstimateTokens(system) + EstimateTokens(user)
	for _, ex := range extra {
		total += EstimateTokens(ex)
	}
	return total
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to 8192.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	name = strings.TrimPrefix(name, "models/")
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	switch {
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "512k"):
		return 512_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "128k"):
		return 128_000
	case strings.HasSuffix(name, "32k"):
		return 32_768
	case strings.HasPrefix(name, "gemini-1.5"), strings.HasPrefix(name, "gemini-2"):
		return 1_000_000
	case strings.Contains(name, "-mini"):
		return 128_000
	}
	return 8192
}

// RemainingContext computes the remaining input token budget given a model,
// a reservation for output generation and the estimated prompt tokens. The
// result is never negative.
func RemainingContext(modelName string, reservedForOutput int, promptTokens int) int {
	maxCtx := ModelContextTokens(modelName)
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	remaining := maxCtx - reservedForOutput - promptTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FitsInContext reports whether the prompt can fit into the model's context
// window when reserving the specified number of output tokens.
func FitsInContext(modelName string, reservedForOutput int, promptTokens int) bool {
	return RemainingContext(modelName, reservedForOutput, promptTokens) > 0
}

// HeadroomTokens returns the safety margin subtracted from the model context
// for tokenizer and message framing overhead: the larger of 5% of the
// context or 512 tokens.
func HeadroomTokens(modelName string) int {
	max := ModelContextTokens(modelName)
	dyn := int(math.Ceil(float64(max) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// RemainingContextWithHeadroom is RemainingContext after HeadroomTokens.
func RemainingContextWithHeadroom(modelName string, reservedForOutput int, promptTokens int) int {
	return RemainingContext(modelName, reservedForOutput+HeadroomTokens(modelName), promptTokens)
}

// TruncateToTokens cuts s so that EstimateTokens of the result is at most
// maxTokens. The cut lands on a rune boundary and backs off to the last
// paragraph or line break when one is close, so the model never sees half a
// sentence at the seam. It reports whether anything was dropped.
func TruncateToTokens(s string, maxTokens int) (string, bool) {
	if maxTokens <= 0 {
		return "", s != ""
	}
	limit := maxTokens * charsPerToken
	if len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	head := s[:cut]
	// prefer a paragraph, then a line, inside the last 10% of the window
	floor := cut - cut/10
	if i := strings.LastIndex(head, "\n\n"); i >= floor && i > 0 {
		head = head[:i]
	} else if i := strings.LastIndexByte(head, '\n'); i >= floor && i > 0 {
		head = head[:i]
	}
	return strings.TrimRight(head, " \t\n"), true
}

// knownModelMax contains rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4o":             128_000,
	"gpt-4o-mini":        128_000,
	"gpt-4-turbo":        128_000,
	"gpt-4-0125-preview": 128_000,
	"gpt-3.5-turbo":      16_384,

	"claude-3-5-sonnet": 200_000,
	"claude-3-opus":     200_000,
	"claude-3-haiku":    200_000,

	"gemini-1.0-pro": 32_768,
	"gemini-nano":    6_144,

	"llama-3":   8_192,
	"llama-3.1": 128_000,

	"openai/gpt-oss-20b": 4_096,
	"gpt-oss-20b":        4_096,
}
