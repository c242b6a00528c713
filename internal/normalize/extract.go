package normalize

import (
	"encoding/json"
	"strings"
	"unicode"
)

const fence = "```"

// StripFences removes a leading ``` or ```lang fence line and a trailing ``` fence.
// Text without a leading fence is only trimmed.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, fence) {
		return t
	}

	t = strings.TrimPrefix(t, fence)
	if i := strings.IndexByte(t, '\n'); i >= 0 && isFenceLabel(t[:i]) {
		t = t[i+1:]
	} else {
		// Single-line fence such as ```json [1,2]```.
		t = strings.TrimLeftFunc(t, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		})
	}

	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, fence)
	return strings.TrimSpace(t)
}

// stripMarkdownWrapper removes a ``` or ```markdown fence opened after
// leading prose and closed on the last line. Code fences with any other
// label are part of the text and stay.
func stripMarkdownWrapper(s string) string {
	lines := strings.Split(s, "\n")
	last := len(lines) - 1
	if last < 1 || strings.TrimSpace(lines[last]) != fence {
		return s
	}
	for i := 0; i < last; i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, fence) {
			continue
		}
		switch strings.ToLower(strings.TrimPrefix(line, fence)) {
		case "", "markdown", "md":
			for _, inner := range lines[i+1 : last] {
				if strings.HasPrefix(strings.TrimSpace(inner), fence) {
					return s
				}
			}
			kept := append(append([]string{}, lines[:i]...), lines[i+1:last]...)
			return strings.TrimSpace(strings.Join(kept, "\n"))
		}
		return s
	}
	return s
}

func isFenceLabel(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' && r != '+' {
			return false
		}
	}
	return true
}

// ExtractJSON returns the JSON array (or object when object is true) embedded in s.
// Text that already is such a value is returned unchanged. Otherwise the first
// balanced span that parses as JSON wins, with brackets inside JSON strings ignored;
// when no span parses, the greedy span from the first opening to the last closing
// bracket is returned for the decoder to reject. ok is false when s has no opening bracket.
func ExtractJSON(s string, object bool) (string, bool) {
	open, closing := byte('['), byte(']')
	if object {
		open, closing = '{', '}'
	}

	t := strings.TrimSpace(s)
	if len(t) > 0 && t[0] == open && json.Valid([]byte(t)) {
		return t, true
	}

	first := strings.IndexByte(t, open)
	if first < 0 {
		return "", false
	}

	for start := first; start >= 0; {
		if end := matchingClose(t, start, open, closing); end > 0 {
			candidate := t[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(t[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}

	last := strings.LastIndexByte(t, closing)
	if last > first {
		return t[first : last+1], true
	}
	return t[first:], true
}

// matchingClose returns the index of the bracket closing the one at start, or -1.
func matchingClose(s string, start int, open, closing byte) int {
	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if ch == '\\' && inString {
			escapeNext = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
