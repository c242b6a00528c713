package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentType identifies the kind of study material a record holds.
type ContentType string

const (
	ContentTypeNotes      ContentType = "Notes"
	ContentTypeFlashCard  ContentType = "FlashCard"
	ContentTypeQuiz       ContentType = "Quiz"
	ContentTypeMCQs       ContentType = "MCQs"
	ContentTypeSummary    ContentType = "Summary"
	ContentTypeConceptMap ContentType = "ConceptMap"
	ContentTypeQA         ContentType = "QA"
)

// ContentTypes lists every supported content type in a stable order.
var ContentTypes = []ContentType{
	ContentTypeNotes,
	ContentTypeFlashCard,
	ContentTypeQuiz,
	ContentTypeMCQs,
	ContentTypeSummary,
	ContentTypeConceptMap,
	ContentTypeQA,
}

// ParseContentType matches s case-insensitively against the supported types.
func ParseContentType(s string) (ContentType, error) {
	for _, ct := range ContentTypes {
		if strings.EqualFold(string(ct), strings.TrimSpace(s)) {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

func (ct ContentType) Valid() bool {
	_, err := ParseContentType(string(ct))
	return err == nil
}

// IsJSON reports whether the model is asked for JSON. Summary is markdown.
func (ct ContentType) IsJSON() bool {
	return ct != ContentTypeSummary
}

// IsObject reports whether the payload is a JSON object rather than an array.
func (ct ContentType) IsObject() bool {
	return ct == ContentTypeConceptMap
}

// EmptyContent is the placeholder stored while a record is Generating, shaped
// like the final payload so readers never see a type mismatch.
func EmptyContent(ct ContentType) json.RawMessage {
	switch ct {
	case ContentTypeConceptMap:
		return json.RawMessage(`{"nodes":[],"edges":[]}`)
	case ContentTypeSummary:
		return json.RawMessage(`""`)
	default:
		return json.RawMessage(`[]`)
	}
}

type Flashcard struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

type QuizQuestion struct {
	Question     string   `json:"question" validate:"required"`
	Options      []string `json:"options" validate:"len=4,dive,required"`
	CorrectIndex *int     `json:"correctIndex" validate:"required,min=0,max=3"`
	Explanation  string   `json:"explanation" validate:"required"`
}

type NoteSection struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
	Order   *int   `json:"order,omitempty"`
}

type ConceptMap struct {
	Nodes []ConceptNode `json:"nodes" validate:"required,min=1,dive"`
	Edges []ConceptEdge `json:"edges" validate:"dive"`
}

type ConceptNode struct {
	ID          string `json:"id" validate:"required"`
	Label       string `json:"label" validate:"required"`
	Description string `json:"description"`
}

type ConceptEdge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label"`
}

type QAPair struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}
