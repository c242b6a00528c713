// Package prompt builds the LLM instructions for each content type.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ryhan5/aicademy/internal/record"
)

// MaxReferenceChars bounds the reference text interpolated into a prompt, in runes.
const MaxReferenceChars = 6000

const systemRole = `You are an expert educator who writes accurate, well-structured study material for students.`

type template struct {
	instruction string
	example     string
}

var templates = map[record.ContentType]template{
	record.ContentTypeNotes: {
		instruction: `Write structured study notes that cover the topic from fundamentals to advanced points.
Split the notes into 4 to 8 sections. Each section has a short "title", a "content" body of one or more paragraphs,
and an integer "order" starting at 1.`,
		example: `[
  {"title": "Introduction", "content": "React is a JavaScript library for building user interfaces.", "order": 1},
  {"title": "Components", "content": "Components are reusable functions that return markup.", "order": 2}
]`,
	},
	record.ContentTypeFlashCard: {
		instruction: `Create 10 flashcards. Each card has a "front" with a single question or term and a "back" with a concise answer.`,
		example: `[
  {"front": "What is React?", "back": "A JavaScript library for building user interfaces."},
  {"front": "What is JSX?", "back": "A syntax extension that lets you write markup inside JavaScript."}
]`,
	},
	record.ContentTypeQuiz: {
		instruction: `Create a 10 question quiz. Each question has exactly 4 "options", a zero-based "correctIndex" between 0 and 3,
and an "explanation" of why the correct option is right.`,
		example: quizExample,
	},
	record.ContentTypeMCQs: {
		instruction: `Create 10 multiple choice questions. Each question has exactly 4 "options", a zero-based "correctIndex"
between 0 and 3, and an "explanation" of why the correct option is right.`,
		example: quizExample,
	},
	record.ContentTypeSummary: {
		instruction: `Write a concise summary of the topic in markdown. Start with a level 1 heading, use short paragraphs
and bullet points for the key ideas, and end with a "Key Takeaways" list.`,
		example: `# React

React is a JavaScript library for building user interfaces.

## Key Takeaways
- Components are the building blocks of a React app.
- State changes trigger re-rendering.`,
	},
	record.ContentTypeConceptMap: {
		instruction: `Build a concept map of the topic with 6 to 15 concepts. Every node has a unique short "id", a "label"
and a one sentence "description". Every edge connects a "source" node id to a "target" node id and has a "label"
describing the relationship.`,
		example: `{
  "nodes": [
    {"id": "react", "label": "React", "description": "A library for building user interfaces."},
    {"id": "component", "label": "Component", "description": "A reusable piece of UI."}
  ],
  "edges": [
    {"source": "react", "target": "component", "label": "is built from"}
  ]
}`,
	},
	record.ContentTypeQA: {
		instruction: `Write 10 question and answer pairs a student could use to review the topic. Each pair has a "question"
and a complete "answer" of one to three sentences.`,
		example: `[
  {"question": "Why does React use a virtual DOM?", "answer": "It lets React compute the minimal set of changes before touching the real DOM."},
  {"question": "What triggers a re-render?", "answer": "A change to a component's state or props."}
]`,
	},
}

const quizExample = `[
  {
    "question": "What does useState return?",
    "options": ["A number", "A state value and a setter", "A DOM node", "A promise"],
    "correctIndex": 1,
    "explanation": "useState returns the current state and a function to update it."
  }
]`

// Example returns the documented output shape for ct.
func Example(ct record.ContentType) (string, error) {
	tmpl, ok := templates[ct]
	if !ok {
		return "", fmt.Errorf("unsupported content type %q", ct)
	}
	return tmpl.example, nil
}

// Build returns the prompt for ct. It panics on an unsupported content type,
// which callers rule out with record.ParseContentType.
func Build(ct record.ContentType, topic, referenceText string) string {
	p, err := For(ct, topic, referenceText)
	if err != nil {
		panic(err)
	}
	return p
}

// For returns the prompt for ct or an error when ct is unsupported.
func For(ct record.ContentType, topic, referenceText string) (string, error) {
	tmpl, ok := templates[ct]
	if !ok {
		return "", fmt.Errorf("unsupported content type %q", ct)
	}

	var b strings.Builder
	b.WriteString(systemRole)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "TOPIC: %s\n\n", strings.TrimSpace(topic))
	b.WriteString(tmpl.instruction)
	b.WriteString("\n")

	if ref := Truncate(strings.TrimSpace(referenceText), MaxReferenceChars); ref != "" {
		b.WriteString("\nBase the material on the following reference text:\n<reference>\n")
		b.WriteString(ref)
		b.WriteString("\n</reference>\n")
	}

	if ct.IsJSON() {
		b.WriteString("\nOUTPUT FORMAT EXAMPLE:\n")
		b.WriteString(tmpl.example)
		b.WriteString("\n\nReturn ONLY valid JSON in exactly this shape. No markdown fences, no commentary, no text before or after the JSON.")
	} else {
		b.WriteString("\nOUTPUT FORMAT EXAMPLE:\n")
		b.WriteString(tmpl.example)
		b.WriteString("\n\nReturn markdown only. Do not wrap the answer in JSON or code fences.")
	}
	return b.String(), nil
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
