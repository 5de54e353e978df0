package extract

import (
	"strings"

	"github.com/goccy/go-json"
)

// initialDataMarkers are the assignments that carry the in-page data object
// in initial markup.
var initialDataMarkers = []string{
	"var ytInitialData = ",
	`window["ytInitialData"] = `,
	"window.ytInitialData = ",
	"ytInitialData = ",
}

// ParseInitialData locates the in-page data object inside raw HTML and
// returns it as raw JSON, or nil when it is absent or not valid JSON.
func ParseInitialData(rawHTML string) json.RawMessage {
	for _, marker := range initialDataMarkers {
		idx := strings.Index(rawHTML, marker)
		if idx < 0 {
			continue
		}
		obj := cutJSONObject(rawHTML[idx+len(marker):])
		if obj == "" || !json.Valid([]byte(obj)) {
			continue
		}
		return json.RawMessage(obj)
	}
	return nil
}

// cutJSONObject returns the complete JSON object starting at s[0] == '{' by
// tracking brace depth outside of string literals.
func cutJSONObject(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" || s[0] != '{' {
		return ""
	}
	depth := 0
	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
