package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ryhan5/aicademy/internal/course"
	"github.com/ryhan5/aicademy/internal/generation"
	"github.com/ryhan5/aicademy/internal/record"
)

type generateRequest struct {
	CourseID string `json:"courseId"`
}

type statusRequest struct {
	CourseID    string `json:"courseId"`
	OmitContent bool   `json:"omitContent"`
}

type createCourseRequest struct {
	Topic   string `json:"topic" validate:"required,max=200"`
	Content string `json:"content" validate:"max=200000"`
}

type healthResponse struct {
	Status     string `json:"status"`
	QueueDepth *int64 `json:"queueDepth,omitempty"`
}

type errorResponse struct {
	Error    string        `json:"error"`
	RecordID string        `json:"recordId,omitempty"`
	Status   record.Status `json:"status,omitempty"`
}

// StatusResponse is a record as clients see it. Content is left out when the
// caller asked for omitContent, ContentLength is always the stored size.
type StatusResponse struct {
	ID            string             `json:"id"`
	CourseID      string             `json:"courseId"`
	ContentType   record.ContentType `json:"contentType"`
	Status        record.Status      `json:"status"`
	Content       json.RawMessage    `json:"content,omitempty"`
	ContentLength int                `json:"contentLength"`
	Error         string             `json:"error,omitempty"`
	Attempt       int                `json:"attempt"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func newStatusResponse(rec *record.Record, omitContent bool) StatusResponse {
	resp := StatusResponse{
		ID:            rec.ID,
		CourseID:      rec.CourseID,
		ContentType:   rec.ContentType,
		Status:        rec.Status,
		Content:       rec.Content,
		ContentLength: len(rec.Content),
		Error:         rec.Error,
		Attempt:       rec.Attempt,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if omitContent {
		resp.Content = nil
	}
	return resp
}

// Record converts the response back to the stored shape.
func (r StatusResponse) Record() *record.Record {
	return &record.Record{
		ID:          r.ID,
		CourseID:    r.CourseID,
		ContentType: r.ContentType,
		Status:      r.Status,
		Content:     r.Content,
		Error:       r.Error,
		Attempt:     r.Attempt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.PingContext(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "database unavailable"})
			return
		}
	}
	resp := healthResponse{Status: "ok"}
	if s.queue != nil {
		depth, err := s.queue.Len(r.Context())
		if err != nil {
			s.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "queue unavailable"})
			return
		}
		resp.QueueDepth = &depth
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.courses.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if courses == nil {
		courses = []course.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if violations := validateStruct(req); len(violations) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: violations[0].Description})
		return
	}

	c, err := s.courses.Create(r.Context(), req.Topic, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("course created", "courseId", c.ID, "topic", c.Topic)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.courses.FindByID(r.Context(), r.PathValue("courseID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	records, err := s.generation.List(r.Context(), r.PathValue("courseID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := make([]StatusResponse, 0, len(records))
	for i := range records {
		resp = append(resp, newStatusResponse(&records[i], omitContent(r)))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.generation.Generate(r.Context(), req.CourseID, record.ContentType(r.PathValue("contentType")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set(recordIDHeader, result.RecordID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.generation.Enqueue(r.Context(), req.CourseID, record.ContentType(r.PathValue("contentType")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set(recordIDHeader, result.RecordID)
	writeJSON(w, http.StatusAccepted, result)
}

// handleStatus accepts courseId and omitContent from the query string or,
// on POST, from the JSON body. Body values win.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	req := statusRequest{
		CourseID:    r.URL.Query().Get("courseId"),
		OmitContent: omitContent(r),
	}
	if r.Method == http.MethodPost {
		var body statusRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if body.CourseID != "" {
			req.CourseID = body.CourseID
		}
		req.OmitContent = req.OmitContent || body.OmitContent
	}

	rec, err := s.generation.Status(r.Context(), req.CourseID, record.ContentType(r.PathValue("contentType")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(rec, req.OmitContent))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *generation.ValidationError
	var upstreamErr *generation.UpstreamError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error()})
	case errors.As(err, &upstreamErr):
		w.Header().Set(recordIDHeader, upstreamErr.RecordID)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:    upstreamErr.Message,
			RecordID: upstreamErr.RecordID,
			Status:   record.StatusError,
		})
	case errors.Is(err, generation.ErrCourseNotFound),
		errors.Is(err, course.ErrNotFound),
		errors.Is(err, record.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFoundMessage(err)})
	case errors.Is(err, generation.ErrQueueDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func notFoundMessage(err error) string {
	if errors.Is(err, record.ErrNotFound) {
		return record.ErrNotFound.Error()
	}
	return course.ErrNotFound.Error()
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return errors.New("request body too large")
		}
		return errors.New("request body must be a JSON object")
	}
	return nil
}

func omitContent(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("omitContent"))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
