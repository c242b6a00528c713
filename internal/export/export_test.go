package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryhan5/aicademy/internal/record"
)

func readyRecord(ct record.ContentType, content string) *record.Record {
	return &record.Record{
		ID:          "rec-1",
		CourseID:    "course-1",
		ContentType: ct,
		Status:      record.StatusReady,
		Content:     json.RawMessage(content),
		Attempt:     1,
	}
}

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name         string
		rec          *record.Record
		wantContains []string
		wantErr      error
	}{
		{
			name: "summary",
			rec:  readyRecord(record.ContentTypeSummary, `"## Overview\nReact renders UIs."`),
			wantContains: []string{
				"# React: Summary",
				"## Overview\nReact renders UIs.",
			},
		},
		{
			name: "notes",
			rec:  readyRecord(record.ContentTypeNotes, `[{"title":"Intro","content":"Components","order":1}]`),
			wantContains: []string{
				"## Intro\n\nComponents",
			},
		},
		{
			name: "flashcards",
			rec:  readyRecord(record.ContentTypeFlashCard, `[{"front":"What is JSX?","back":"Syntax sugar"}]`),
			wantContains: []string{
				"## Card 1",
				"**What is JSX?**",
				"Syntax sugar",
			},
		},
		{
			name: "mcqs mark the correct option",
			rec: readyRecord(record.ContentTypeMCQs,
				`[{"question":"Hook for state?","options":["useState","useRef","useMemo","useId"],"correctIndex":0,"explanation":"useState holds state."}]`),
			wantContains: []string{
				"## Question 1",
				"A. useState\nB. useRef",
				"**Answer:** A. useState",
				"useState holds state.",
			},
		},
		{
			name: "qa",
			rec:  readyRecord(record.ContentTypeQA, `[{"question":"Why keys?","answer":"Stable identity."}]`),
			wantContains: []string{
				"**Q: Why keys?**\n\nStable identity.",
			},
		},
		{
			name: "concept map uses node labels for edges",
			rec: readyRecord(record.ContentTypeConceptMap,
				`{"nodes":[{"id":"a","label":"Component"},{"id":"b","label":"Props","description":"Inputs"}],"edges":[{"source":"a","target":"b","label":"receives"}]}`),
			wantContains: []string{
				"- **Component**\n",
				"- **Props**: Inputs",
				"- Component receives Props",
			},
		},
		{
			name:    "generating record",
			rec:     &record.Record{ContentType: record.ContentTypeNotes, Status: record.StatusGenerating, Content: record.EmptyContent(record.ContentTypeNotes)},
			wantErr: ErrNotReady,
		},
		{
			name:    "ready record with the empty shell",
			rec:     readyRecord(record.ContentTypeNotes, `[]`),
			wantErr: ErrNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Markdown("React", tt.rec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.wantContains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "react-hooks-notes", FileName("  React Hooks! ", record.ContentTypeNotes))
	assert.Equal(t, "course-qa", FileName("???", record.ContentTypeQA))
}

func TestWriteMarkdownAndConvert(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	rec := readyRecord(record.ContentTypeFlashCard, `[{"front":"What is JSX?","back":"Syntax sugar"}]`)

	mdPath, err := WriteMarkdown(dir, "React", rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "react-flashcard.md"), mdPath)

	pdfPath, err := ConvertMarkdownToPDF(mdPath)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(pdfPath))
	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestConvertMarkdownToPDF_RejectsOtherExtensions(t *testing.T) {
	_, err := ConvertMarkdownToPDF(filepath.Join(t.TempDir(), "notes.txt"))
	assert.ErrorContains(t, err, "must have .md extension")
}
