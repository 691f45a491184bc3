package scanning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?is)```json(.*?)```")

// ParseError is returned when model output is still not valid JSON after
// sanitizing.
type ParseError struct {
	// Text is the normalized text that failed to parse
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed JSON in model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NormalizeJSONText applies the best-effort repairs for model output that
// should hold a single JSON object: whitespace trimming, markdown fence
// extraction and brace balancing at either end. It does not fix anything
// inside the object.
func NormalizeJSONText(text string) string {
	text = strings.TrimSpace(text)

	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if !strings.HasPrefix(text, "{") {
		text = "{" + text
	}
	if !strings.HasSuffix(text, "}") {
		text += "}"
	}
	return text
}

// SanitizeJSON normalizes text with NormalizeJSONText and parses it.
func SanitizeJSON(text string) (map[string]any, error) {
	normalized := NormalizeJSONText(text)

	var out map[string]any
	if err := json.Unmarshal([]byte(normalized), &out); err != nil {
		return nil, &ParseError{Text: normalized, Err: err}
	}
	return out, nil
}
