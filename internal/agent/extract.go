package agent

import "strings"

// ExtractJSON pulls a JSON document out of agent output text. Agents often
// wrap their answer in Markdown code fences or surround it with prose.
// Returns the trimmed JSON candidate and whether one was found; callers
// still validate by unmarshalling.
func ExtractJSON(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	// Fenced code block takes precedence.
	if idx := strings.Index(text, "```json"); idx != -1 {
		rest := text[idx+len("```json"):]
		if end := strings.LastIndex(rest, "```"); end != -1 {
			candidate := strings.TrimSpace(rest[:end])
			if candidate != "" {
				return candidate, true
			}
		}
	}

	// Otherwise take the outermost braces.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return strings.TrimSpace(text[start : end+1]), true
	}

	return "", false
}
