package normalize

import (
	"fmt"

	"github.com/ryhan5/aicademy/internal/record"
)

// previewLimit bounds the raw text kept on a MalformedResponseError, in runes.
const previewLimit = 200

// MalformedResponseError reports model output that could not be parsed or validated.
type MalformedResponseError struct {
	ContentType record.ContentType
	Reason      string
	Preview     string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %s", e.ContentType, e.Reason)
}

func malformed(ct record.ContentType, raw, format string, args ...any) *MalformedResponseError {
	return &MalformedResponseError{
		ContentType: ct,
		Reason:      fmt.Sprintf(format, args...),
		Preview:     preview(raw),
	}
}

func preview(raw string) string {
	n := 0
	for i := range raw {
		if n == previewLimit {
			return raw[:i]
		}
		n++
	}
	return raw
}
