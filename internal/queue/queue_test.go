package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryhan5/aicademy/internal/record"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{
			name: "valid task",
			task: Task{
				RecordID:    "r1",
				CourseID:    "c1",
				ContentType: record.ContentTypeQuiz,
				Prompt:      "make a quiz",
				Attempt:     2,
				EnqueuedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:    "missing record id",
			task:    Task{ContentType: record.ContentTypeQuiz},
			wantErr: true,
		},
		{
			name:    "unknown content type",
			task:    Task{RecordID: "r1", ContentType: "Essay"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Encode(tt.task)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, `{"recordId":"r1","courseId":"c1","contentType":"Quiz","prompt":"make a quiz","attempt":2,"enqueuedAt":"2025-01-01T00:00:00Z"}`, string(payload))

			got, err := Decode(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.task, got)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, payload := range []string{`not json`, `{}`, `{"recordId":"r1","contentType":"Essay"}`} {
		_, err := Decode([]byte(payload))
		assert.Error(t, err, payload)
	}
}
