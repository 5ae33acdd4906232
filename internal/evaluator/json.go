package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanJSON strips markdown code fences from a model reply and, when the
// remainder is not valid JSON, extracts the first balanced object or array
func cleanJSON(reply string) (string, error) {
	text := strings.TrimSpace(reply)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))

	if json.Valid([]byte(text)) {
		return text, nil
	}

	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", fmt.Errorf("%w: no JSON found", ErrMalformedResponse)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, nil
				}
				return "", fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
			}
		}
	}

	return "", fmt.Errorf("%w: unterminated JSON", ErrMalformedResponse)
}
