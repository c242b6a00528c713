// Package record stores one generation record per (course, content type).
package record

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is the generation state of a record.
type Status string

const (
	StatusGenerating Status = "Generating"
	StatusReady      Status = "Ready"
	StatusError      Status = "Error"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("content record not found")
	// ErrStaleAttempt is returned when a terminal write targets an attempt
	// that is no longer the record's current Generating attempt.
	ErrStaleAttempt = errors.New("content record attempt is no longer current")
)

// Record is the persisted generation state and payload.
type Record struct {
	ID          string          `db:"id" json:"id" yaml:"id"`
	CourseID    string          `db:"course_id" json:"courseId" yaml:"course_id"`
	ContentType ContentType     `db:"content_type" json:"contentType" yaml:"content_type"`
	Status      Status          `db:"status" json:"status" yaml:"status"`
	Content     json.RawMessage `db:"-" json:"content" yaml:"-"`
	Error       string          `db:"error_message" json:"error,omitempty" yaml:"error,omitempty"`
	Attempt     int             `db:"attempt" json:"attempt" yaml:"attempt"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt" yaml:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt" yaml:"updated_at"`
}

// HasContent reports whether the payload holds more than the empty shell.
func (r Record) HasContent() bool {
	if len(r.Content) == 0 {
		return false
	}
	switch string(r.Content) {
	case "null", `""`, "[]", "{}", string(EmptyContent(r.ContentType)):
		return false
	}
	return true
}

// Terminal reports whether the record reached Ready or Error.
func (r Record) Terminal() bool {
	return r.Status == StatusReady || r.Status == StatusError
}

// row is the scan target; drivers disagree on whether TEXT comes back as
// string or []byte, and json.RawMessage only accepts the latter.
type row struct {
	ID          string      `db:"id"`
	CourseID    string      `db:"course_id"`
	ContentType ContentType `db:"content_type"`
	Status      Status      `db:"status"`
	Content     string      `db:"content"`
	Error       string      `db:"error_message"`
	Attempt     int         `db:"attempt"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r row) toRecord() *Record {
	return &Record{
		ID:          r.ID,
		CourseID:    r.CourseID,
		ContentType: r.ContentType,
		Status:      r.Status,
		Content:     json.RawMessage(r.Content),
		Error:       r.Error,
		Attempt:     r.Attempt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
