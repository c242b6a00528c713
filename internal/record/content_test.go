package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContentType(t *testing.T) {
	tests := []struct {
		input   string
		want    ContentType
		wantErr bool
	}{
		{input: "FlashCard", want: ContentTypeFlashCard},
		{input: "flashcard", want: ContentTypeFlashCard},
		{input: " conceptmap ", want: ContentTypeConceptMap},
		{input: "mcqs", want: ContentTypeMCQs},
		{input: "essay", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseContentType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmptyContent(t *testing.T) {
	for _, ct := range ContentTypes {
		t.Run(string(ct), func(t *testing.T) {
			got := EmptyContent(ct)
			assert.True(t, json.Valid(got))
			assert.False(t, Record{ContentType: ct, Content: got}.HasContent())
		})
	}
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(EmptyContent(ContentTypeConceptMap)))
}

func TestRecord_HasContent(t *testing.T) {
	assert.True(t, Record{ContentType: ContentTypeSummary, Content: json.RawMessage(`"# Intro"`)}.HasContent())
	assert.True(t, Record{ContentType: ContentTypeQA, Content: json.RawMessage(`[{"question":"q","answer":"a"}]`)}.HasContent())
	assert.False(t, Record{ContentType: ContentTypeQA}.HasContent())
}
