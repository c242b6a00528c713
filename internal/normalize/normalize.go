// Package normalize turns untrusted model output into a validated content payload.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ryhan5/aicademy/internal/record"
)

// Normalize parses raw model output for ct and returns the payload to store.
// Any failure is a *MalformedResponseError; there is no partial result.
func Normalize(raw string, ct record.ContentType) (json.RawMessage, error) {
	if !ct.Valid() {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	if ct == record.ContentTypeSummary {
		return normalizeSummary(raw)
	}

	text := StripFences(raw)

	if ct == record.ContentTypeQuiz || ct == record.ContentTypeMCQs {
		text = unwrapQuestions(text)
	}

	extracted, ok := ExtractJSON(text, ct.IsObject())
	if !ok {
		if ct.IsObject() {
			return nil, malformed(ct, raw, "no JSON object found")
		}
		return nil, malformed(ct, raw, "no JSON array found")
	}

	v, err := loadValidator()
	if err != nil {
		return nil, err
	}

	var payload any
	switch ct {
	case record.ContentTypeFlashCard:
		payload, err = decodeList[record.Flashcard](ct, raw, extracted, "flashcard", v)
	case record.ContentTypeQuiz, record.ContentTypeMCQs:
		payload, err = decodeList[record.QuizQuestion](ct, raw, extracted, "MCQ", v)
	case record.ContentTypeQA:
		payload, err = decodeList[record.QAPair](ct, raw, extracted, "QA pair", v)
	case record.ContentTypeNotes:
		payload, err = decodeNotes(ct, raw, extracted, v)
	case record.ContentTypeConceptMap:
		payload, err = decodeConceptMap(ct, raw, extracted, v)
	}
	if err != nil {
		return nil, err
	}

	return marshal(ct, payload)
}

// marshal encodes v without HTML escaping so stored text keeps <, > and &.
func marshal(ct record.ContentType, v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("json.Encode(%s) > %w", ct, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func normalizeSummary(raw string) (json.RawMessage, error) {
	text := StripFences(raw)
	if !strings.HasPrefix(strings.TrimSpace(raw), fence) {
		text = stripMarkdownWrapper(text)
	}
	if text == "" {
		return nil, malformed(record.ContentTypeSummary, raw, "summary is empty")
	}
	return marshal(record.ContentTypeSummary, text)
}

// unwrapQuestions accepts the {"questions":[...]} variant and returns the bare array.
func unwrapQuestions(text string) string {
	if !strings.HasPrefix(text, "{") {
		return text
	}
	var wrapper struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err != nil || len(wrapper.Questions) == 0 {
		return text
	}
	return string(wrapper.Questions)
}

func decodeList[T any](ct record.ContentType, raw, extracted, label string, v *payloadValidator) ([]T, error) {
	var items []T
	if err := json.Unmarshal([]byte(extracted), &items); err != nil {
		return nil, malformed(ct, raw, "invalid JSON: %v", err)
	}
	if len(items) == 0 {
		return nil, malformed(ct, raw, "response contains no %s items", label)
	}
	for i := range items {
		if msg, ok := v.check(items[i]); !ok {
			return nil, malformed(ct, raw, "%s %d: %s", label, i+1, msg)
		}
	}
	return items, nil
}

func decodeNotes(ct record.ContentType, raw, extracted string, v *payloadValidator) ([]record.NoteSection, error) {
	sections, err := decodeList[record.NoteSection](ct, raw, extracted, "section", v)
	if err != nil {
		return nil, err
	}
	for i := range sections {
		if sections[i].Order == nil {
			order := i
			sections[i].Order = &order
		}
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return *sections[i].Order < *sections[j].Order
	})
	return sections, nil
}

func decodeConceptMap(ct record.ContentType, raw, extracted string, v *payloadValidator) (*record.ConceptMap, error) {
	var cm record.ConceptMap
	if err := json.Unmarshal([]byte(extracted), &cm); err != nil {
		return nil, malformed(ct, raw, "invalid JSON: %v", err)
	}
	if len(cm.Nodes) == 0 {
		return nil, malformed(ct, raw, "response contains no nodes")
	}

	ids := make(map[string]bool, len(cm.Nodes))
	for i, node := range cm.Nodes {
		if msg, ok := v.check(node); !ok {
			return nil, malformed(ct, raw, "node %d: %s", i+1, msg)
		}
		if ids[node.ID] {
			return nil, malformed(ct, raw, "node %d: duplicate id %q", i+1, node.ID)
		}
		ids[node.ID] = true
	}
	if cm.Edges == nil {
		cm.Edges = []record.ConceptEdge{}
	}
	for i, edge := range cm.Edges {
		if msg, ok := v.check(edge); !ok {
			return nil, malformed(ct, raw, "edge %d: %s", i+1, msg)
		}
		if !ids[edge.Source] {
			return nil, malformed(ct, raw, "edge %d: source %q is not a node id", i+1, edge.Source)
		}
		if !ids[edge.Target] {
			return nil, malformed(ct, raw, "edge %d: target %q is not a node id", i+1, edge.Target)
		}
	}
	return &cm, nil
}
