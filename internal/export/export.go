// Package export renders Ready content records as markdown and PDF files.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mandolyte/mdtopdf"

	"github.com/ryhan5/aicademy/internal/record"
)

// ErrNotReady is returned for records that hold no finished content.
var ErrNotReady = errors.New("content record is not ready")

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Markdown renders the payload of a Ready record as a markdown document.
func Markdown(topic string, rec *record.Record) (string, error) {
	if rec.Status != record.StatusReady || !rec.HasContent() {
		return "", fmt.Errorf("%s/%s: %w", rec.CourseID, rec.ContentType, ErrNotReady)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", topic, rec.ContentType)

	var err error
	switch rec.ContentType {
	case record.ContentTypeSummary:
		err = writeSummary(&b, rec.Content)
	case record.ContentTypeNotes:
		err = writeNotes(&b, rec.Content)
	case record.ContentTypeFlashCard:
		err = writeFlashcards(&b, rec.Content)
	case record.ContentTypeQuiz, record.ContentTypeMCQs:
		err = writeQuestions(&b, rec.Content)
	case record.ContentTypeQA:
		err = writeQA(&b, rec.Content)
	case record.ContentTypeConceptMap:
		err = writeConceptMap(&b, rec.Content)
	default:
		return "", fmt.Errorf("unsupported content type %q", rec.ContentType)
	}
	if err != nil {
		return "", fmt.Errorf("render %s > %w", rec.ContentType, err)
	}
	return b.String(), nil
}

// WriteMarkdown writes the rendered record into dir and returns the file path.
func WriteMarkdown(dir, topic string, rec *record.Record) (string, error) {
	md, err := Markdown(topic, rec)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("os.MkdirAll(%s) > %w", dir, err)
	}
	path := filepath.Join(dir, FileName(topic, rec.ContentType)+".md")
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("os.WriteFile(%s) > %w", path, err)
	}
	return path, nil
}

// FileName is the extension-less base name used for exported files.
func FileName(topic string, ct record.ContentType) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(topic), "-"), "-")
	if slug == "" {
		slug = "course"
	}
	return slug + "-" + strings.ToLower(string(ct))
}

// ConvertMarkdownToPDF converts a markdown file to PDF using mdtopdf.
// The PDF file will be created in the same directory as the markdown file.
func ConvertMarkdownToPDF(markdownPath string) (string, error) {
	if !strings.HasSuffix(markdownPath, ".md") {
		return "", fmt.Errorf("input file must have .md extension: %s", markdownPath)
	}

	content, err := os.ReadFile(markdownPath)
	if err != nil {
		return "", fmt.Errorf("os.ReadFile(%s) > %w", markdownPath, err)
	}

	pdfPath := strings.TrimSuffix(markdownPath, ".md") + ".pdf"

	renderer := mdtopdf.NewPdfRenderer("P", "A4", pdfPath, "", nil, mdtopdf.LIGHT)
	if err := renderer.Process(content); err != nil {
		return "", fmt.Errorf("renderer.Process() > %w", err)
	}

	absPath, err := filepath.Abs(pdfPath)
	if err != nil {
		return pdfPath, nil
	}
	return absPath, nil
}

func writeSummary(b *strings.Builder, raw json.RawMessage) error {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return err
	}
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n")
	return nil
}

func writeNotes(b *strings.Builder, raw json.RawMessage) error {
	var sections []record.NoteSection
	if err := json.Unmarshal(raw, &sections); err != nil {
		return err
	}
	for _, s := range sections {
		fmt.Fprintf(b, "## %s\n\n%s\n\n", s.Title, strings.TrimSpace(s.Content))
	}
	return nil
}

func writeFlashcards(b *strings.Builder, raw json.RawMessage) error {
	var cards []record.Flashcard
	if err := json.Unmarshal(raw, &cards); err != nil {
		return err
	}
	for i, c := range cards {
		fmt.Fprintf(b, "## Card %d\n\n**%s**\n\n%s\n\n", i+1, c.Front, c.Back)
	}
	return nil
}

func writeQuestions(b *strings.Builder, raw json.RawMessage) error {
	var questions []record.QuizQuestion
	if err := json.Unmarshal(raw, &questions); err != nil {
		return err
	}
	for i, q := range questions {
		fmt.Fprintf(b, "## Question %d\n\n%s\n\n", i+1, q.Question)
		for j, opt := range q.Options {
			fmt.Fprintf(b, "%c. %s\n", 'A'+j, opt)
		}
		if q.CorrectIndex != nil && *q.CorrectIndex >= 0 && *q.CorrectIndex < len(q.Options) {
			fmt.Fprintf(b, "\n**Answer:** %c. %s\n", 'A'+*q.CorrectIndex, q.Options[*q.CorrectIndex])
		}
		fmt.Fprintf(b, "\n%s\n\n", q.Explanation)
	}
	return nil
}

func writeQA(b *strings.Builder, raw json.RawMessage) error {
	var pairs []record.QAPair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return err
	}
	for _, p := range pairs {
		fmt.Fprintf(b, "**Q: %s**\n\n%s\n\n", p.Question, p.Answer)
	}
	return nil
}

func writeConceptMap(b *strings.Builder, raw json.RawMessage) error {
	var m record.ConceptMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	labels := make(map[string]string, len(m.Nodes))
	b.WriteString("## Concepts\n\n")
	for _, n := range m.Nodes {
		labels[n.ID] = n.Label
		if n.Description != "" {
			fmt.Fprintf(b, "- **%s**: %s\n", n.Label, n.Description)
		} else {
			fmt.Fprintf(b, "- **%s**\n", n.Label)
		}
	}
	if len(m.Edges) == 0 {
		return nil
	}
	b.WriteString("\n## Relationships\n\n")
	for _, e := range m.Edges {
		if e.Label != "" {
			fmt.Fprintf(b, "- %s %s %s\n", labels[e.Source], e.Label, labels[e.Target])
		} else {
			fmt.Fprintf(b, "- %s -> %s\n", labels[e.Source], labels[e.Target])
		}
	}
	return nil
}
