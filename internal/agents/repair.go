package agents

import (
	"encoding/json"
	"regexp"
	"strings"
)

// textualToolCall is the payload some models emit as plain text instead of
// using the structured tool-call channel.
type textualToolCall struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

var (
	fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

	// ":" typed twice
	repeatedColonRe = regexp.MustCompile(`:\s*:`)

	// "key"= instead of "key":
	quotedKeyEqualsRe = regexp.MustCompile(`("[A-Za-z_][A-Za-z0-9_]*")\s*=`)

	// bare or half-quoted keys: {name": or {name:
	bareKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)"?\s*:`)

	// string value whose closing quote was dropped before the next key
	unterminatedValueRe = regexp.MustCompile(`:"([^",:{}\[\]]*?)\s*,(\s*")`)

	// missing comma between a closed value and the next object
	missingCommaBraceRe = regexp.MustCompile(`(["}\]])\s+\{`)
)

// repairToolCallJSON applies a narrow chain of fixes for the malformation
// patterns observed in textual tool-call payloads. It is deliberately not a
// general lenient-JSON parser.
func repairToolCallJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = repeatedColonRe.ReplaceAllString(s, ":")
	s = quotedKeyEqualsRe.ReplaceAllString(s, "$1:")
	s = bareKeyRe.ReplaceAllString(s, `$1"$2":`)
	s = unterminatedValueRe.ReplaceAllString(s, `:"$1",$2`)
	s = missingCommaBraceRe.ReplaceAllString(s, "$1, {")
	return s
}

// parseTextualToolCall detects a tool-call payload embedded in free text.
// It accepts well-formed JSON directly and otherwise runs the repair chain.
// The second return is false when the text is not a tool call and should be
// treated as the model's answer.
func parseTextualToolCall(content string) (*textualToolCall, bool) {
	trimmed := strings.TrimSpace(content)
	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		trimmed = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(trimmed, "{") || !strings.Contains(trimmed, "name") {
		return nil, false
	}

	var call textualToolCall
	if err := json.Unmarshal([]byte(trimmed), &call); err == nil && call.Name != "" {
		return &call, true
	}

	repaired := repairToolCallJSON(trimmed)
	if err := json.Unmarshal([]byte(repaired), &call); err == nil && call.Name != "" {
		return &call, true
	}
	return nil, false
}
