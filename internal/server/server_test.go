package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ryhan5/aicademy/internal/course"
	"github.com/ryhan5/aicademy/internal/generation"
	mock_inference "github.com/ryhan5/aicademy/internal/mocks/inference"
	mock_queue "github.com/ryhan5/aicademy/internal/mocks/queue"
	"github.com/ryhan5/aicademy/internal/queue"
	"github.com/ryhan5/aicademy/internal/record"
	"github.com/ryhan5/aicademy/internal/testutil"
)

const (
	flashcardsJSON = `[{"front":"What is React?","back":"A UI library"}]`
	badMCQJSON     = `[{"question":"Q1","options":["A","B","C"],"correctIndex":0,"explanation":"x"}]`
)

type testServer struct {
	url        string
	client     *http.Client
	gateway    *mock_inference.MockGateway
	dispatcher *mock_queue.MockDispatcher
	courseID   string
}

func newTestServer(t *testing.T, withQueue bool) *testServer {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	courses := course.NewDBRepository(db)
	records := record.NewDBRepository(db)
	c, err := courses.Create(context.Background(), "React", "React is a JavaScript library for building user interfaces.")
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	ts := &testServer{
		gateway:  mock_inference.NewMockGateway(ctrl),
		courseID: c.ID,
	}
	var opts []generation.Option
	if withQueue {
		ts.dispatcher = mock_queue.NewMockDispatcher(ctrl)
		opts = append(opts, generation.WithDispatcher(ts.dispatcher, false))
	}
	service := generation.NewService(courses, records, ts.gateway, opts...)

	srv := New(service, courses, WithPinger(db))
	httpServer := httptest.NewServer(srv.Handler([]string{"http://localhost:3000"}))
	t.Cleanup(httpServer.Close)

	ts.url = httpServer.URL
	ts.client = httpServer.Client()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.url+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		out = nil
	}
	return resp, out
}

func TestServer_Generate(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		courseID    func(ts *testServer) string
		modelOutput string
		callsModel  bool
		wantStatus  int
		wantBody    map[string]any
		wantError   string
	}{
		{
			name:        "flashcards become ready",
			contentType: "FlashCard",
			courseID:    func(ts *testServer) string { return ts.courseID },
			modelOutput: "```json\n" + flashcardsJSON + "\n```",
			callsModel:  true,
			wantStatus:  http.StatusOK,
			wantBody:    map[string]any{"status": "Ready"},
		},
		{
			name:        "content type is case-insensitive",
			contentType: "flashcard",
			courseID:    func(ts *testServer) string { return ts.courseID },
			modelOutput: flashcardsJSON,
			callsModel:  true,
			wantStatus:  http.StatusOK,
			wantBody:    map[string]any{"status": "Ready"},
		},
		{
			name:        "malformed MCQ is a bad gateway with the record id",
			contentType: "MCQs",
			courseID:    func(ts *testServer) string { return ts.courseID },
			modelOutput: badMCQJSON,
			callsModel:  true,
			wantStatus:  http.StatusBadGateway,
			wantBody:    map[string]any{"status": "Error"},
			wantError:   "MCQ 1: options must contain 4 items",
		},
		{
			name:        "missing course id",
			contentType: "Notes",
			courseID:    func(*testServer) string { return "" },
			wantStatus:  http.StatusBadRequest,
			wantError:   "courseId: is required",
		},
		{
			name:        "unknown content type",
			contentType: "Poem",
			courseID:    func(ts *testServer) string { return ts.courseID },
			wantStatus:  http.StatusBadRequest,
			wantError:   `unknown content type "Poem"`,
		},
		{
			name:        "unknown course",
			contentType: "Notes",
			courseID:    func(*testServer) string { return "missing" },
			wantStatus:  http.StatusNotFound,
			wantError:   "course not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			if tt.callsModel {
				ts.gateway.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(tt.modelOutput, nil)
			}

			resp, body := ts.do(t, http.MethodPost, "/generate/"+tt.contentType, map[string]string{"courseId": tt.courseID(ts)})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			for k, v := range tt.wantBody {
				assert.Equal(t, v, body[k], k)
			}
			if tt.wantError != "" {
				assert.Contains(t, body["error"], tt.wantError)
			}
			if tt.wantStatus == http.StatusOK || tt.wantStatus == http.StatusBadGateway {
				assert.NotEmpty(t, body["recordId"])
				assert.Equal(t, body["recordId"], resp.Header.Get(recordIDHeader))
			}
		})
	}
}

func TestServer_Status(t *testing.T) {
	ts := newTestServer(t, false)
	ts.gateway.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(flashcardsJSON, nil)

	resp, _ := ts.do(t, http.MethodPost, "/status/FlashCard", map[string]string{"courseId": ts.courseID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, generated := ts.do(t, http.MethodPost, "/generate/FlashCard", map[string]string{"courseId": ts.courseID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("query string", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodGet, "/status/FlashCard?courseId="+ts.courseID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, generated["recordId"], body["id"])
		assert.Equal(t, "Ready", body["status"])
		assert.Equal(t, float64(len(flashcardsJSON)), body["contentLength"])
		content, err := json.Marshal(body["content"])
		require.NoError(t, err)
		assert.JSONEq(t, flashcardsJSON, string(content))
	})

	t.Run("body with omitContent", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodPost, "/status/FlashCard", map[string]any{"courseId": ts.courseID, "omitContent": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, body, "content")
		assert.Equal(t, float64(len(flashcardsJSON)), body["contentLength"])
	})

	t.Run("missing course id", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodGet, "/status/FlashCard", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list course content", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.url+"/courses/"+ts.courseID+"/content?omitContent=true", nil)
		require.NoError(t, err)
		resp, err := ts.client.Do(req)
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var records []StatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
		require.Len(t, records, 1)
		assert.Equal(t, record.ContentTypeFlashCard, records[0].ContentType)
		assert.Empty(t, records[0].Content)
	})
}

func TestServer_Enqueue(t *testing.T) {
	t.Run("queue disabled", func(t *testing.T) {
		ts := newTestServer(t, false)
		resp, body := ts.do(t, http.MethodPost, "/enqueue/Notes", map[string]string{"courseId": ts.courseID})
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, generation.ErrQueueDisabled.Error(), body["error"])
	})

	t.Run("accepted", func(t *testing.T) {
		ts := newTestServer(t, true)
		var dispatched queue.Task
		ts.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, task queue.Task) error {
			dispatched = task
			return nil
		})

		resp, body := ts.do(t, http.MethodPost, "/enqueue/Notes", map[string]string{"courseId": ts.courseID})
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "Generating", body["status"])
		assert.Equal(t, dispatched.RecordID, body["recordId"])

		resp, body = ts.do(t, http.MethodGet, "/status/Notes?courseId="+ts.courseID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Generating", body["status"])
	})

	t.Run("dispatch failure", func(t *testing.T) {
		ts := newTestServer(t, true)
		ts.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

		resp, body := ts.do(t, http.MethodPost, "/enqueue/Notes", map[string]string{"courseId": ts.courseID})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "failed to enqueue generation", body["error"])
		assert.Equal(t, "Error", body["status"])
	})
}

func TestServer_Courses(t *testing.T) {
	ts := newTestServer(t, false)

	resp, created := ts.do(t, http.MethodPost, "/courses", map[string]string{"topic": "  Go  ", "content": "Go is a language."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Go", created["topic"])
	id, ok := created["id"].(string)
	require.True(t, ok)

	resp, got := ts.do(t, http.MethodGet, "/courses/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Go is a language.", got["content"])

	resp, body := ts.do(t, http.MethodPost, "/courses", map[string]string{"topic": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "topic is a required field", body["error"])

	resp, _ = ts.do(t, http.MethodGet, "/courses/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	listResp, err := ts.client.Get(ts.url + "/courses")
	require.NoError(t, err)
	defer func() {
		_ = listResp.Body.Close()
	}()
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var listed []course.Course
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listed))
	topics := make([]string, 0, len(listed))
	for _, c := range listed {
		topics = append(topics, c.Topic)
	}
	assert.ElementsMatch(t, []string{"React", "Go"}, topics)

	req, err := http.NewRequest(http.MethodPost, ts.url+"/courses", strings.NewReader("{not json"))
	require.NoError(t, err)
	badResp, err := ts.client.Do(req)
	require.NoError(t, err)
	_ = badResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestServer_HealthAndCORS(t *testing.T) {
	ts := newTestServer(t, false)

	resp, body := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	req, err := http.NewRequest(http.MethodOptions, ts.url+"/generate/Notes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	// Browsers send the requested header names lowercased.
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	preflight, err := ts.client.Do(req)
	require.NoError(t, err)
	_ = preflight.Body.Close()
	assert.Equal(t, "http://localhost:3000", preflight.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	denied, err := ts.client.Do(req)
	require.NoError(t, err)
	_ = denied.Body.Close()
	assert.Empty(t, denied.Header.Get("Access-Control-Allow-Origin"))
}

type fixedDepth struct {
	n   int64
	err error
}

func (f fixedDepth) Len(context.Context) (int64, error) {
	return f.n, f.err
}

func TestServer_HealthQueueDepth(t *testing.T) {
	tests := []struct {
		name       string
		queue      fixedDepth
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name:       "backlog is reported",
			queue:      fixedDepth{n: 4},
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"status": "ok", "queueDepth": float64(4)},
		},
		{
			name:       "unreachable queue",
			queue:      fixedDepth{err: errors.New("redis down")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]any{"error": "queue unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(nil, nil, WithQueueDepth(tt.queue))
			rec := httptest.NewRecorder()
			srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}
