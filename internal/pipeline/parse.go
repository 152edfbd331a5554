package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractJSON pulls a JSON object out of model output. Models fence their
// JSON, preface it with prose, or trail it with commentary; this scans for
// the first balanced top-level object and unmarshals that.
func ExtractJSON(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	text = stripFences(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, eris.New("parse: no JSON object in model output")
	}

	end := matchBrace(text, start)
	if end < 0 {
		return nil, eris.New("parse: unbalanced JSON object in model output")
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, eris.Wrap(err, "parse: decode model JSON")
	}
	return out, nil
}

// stripFences removes a leading ```json (or bare ```) fence and its closer.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// matchBrace returns the index of the brace closing the object opened at
// start, honoring strings and escapes, or -1 when unbalanced.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
