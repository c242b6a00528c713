// Package generation drives a content record through Generating to Ready or Error.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ryhan5/aicademy/internal/course"
	"github.com/ryhan5/aicademy/internal/inference"
	"github.com/ryhan5/aicademy/internal/logger"
	"github.com/ryhan5/aicademy/internal/normalize"
	"github.com/ryhan5/aicademy/internal/prompt"
	"github.com/ryhan5/aicademy/internal/queue"
	"github.com/ryhan5/aicademy/internal/record"
)

// terminalWriteTimeout bounds the Ready/Error write once the pipeline is done.
const terminalWriteTimeout = 10 * time.Second

// CourseFinder loads the course a record belongs to.
type CourseFinder interface {
	FindByID(ctx context.Context, id string) (*course.Course, error)
}

// Result is what callers learn about a generation request.
type Result struct {
	RecordID string        `json:"recordId"`
	Status   record.Status `json:"status"`
	Error    string        `json:"error,omitempty"`
}

type Service struct {
	courses    CourseFinder
	records    record.Repository
	gateway    inference.Gateway
	dispatcher queue.Dispatcher
	fallback   bool
	logger     *logger.Logger
	locks      *keyedMutex
}

type Option func(*Service)

// WithDispatcher enables Enqueue and, when fallback is true, re-dispatches
// failed direct generations to the background queue.
func WithDispatcher(d queue.Dispatcher, fallback bool) Option {
	return func(s *Service) {
		s.dispatcher = d
		s.fallback = fallback
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func NewService(courses CourseFinder, records record.Repository, gateway inference.Gateway, opts ...Option) *Service {
	s := &Service{
		courses: courses,
		records: records,
		gateway: gateway,
		logger:  logger.Nop(),
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs the whole pipeline for the pair before returning. A failed
// generation returns the Error result together with an *UpstreamError.
func (s *Service) Generate(ctx context.Context, courseID string, contentType record.ContentType) (Result, error) {
	courseID, ct, err := parseRequest(courseID, contentType)
	if err != nil {
		return Result{}, err
	}
	c, err := s.findCourse(ctx, courseID)
	if err != nil {
		return Result{}, err
	}

	unlock := s.locks.Lock(lockKey(c.ID, ct))
	defer unlock()

	rec, err := s.records.Begin(ctx, c.ID, ct)
	if err != nil {
		return Result{}, fmt.Errorf("records.Begin() > %w", err)
	}
	s.logger.Info("generation started", "recordId", rec.ID, "courseId", c.ID, "contentType", ct, "attempt", rec.Attempt)

	return s.run(ctx, rec, prompt.Build(ct, c.Topic, c.Content), true)
}

// Enqueue moves the pair to Generating and leaves the model call to a worker.
func (s *Service) Enqueue(ctx context.Context, courseID string, contentType record.ContentType) (Result, error) {
	courseID, ct, err := parseRequest(courseID, contentType)
	if err != nil {
		return Result{}, err
	}
	if s.dispatcher == nil {
		return Result{}, ErrQueueDisabled
	}
	c, err := s.findCourse(ctx, courseID)
	if err != nil {
		return Result{}, err
	}

	unlock := s.locks.Lock(lockKey(c.ID, ct))
	defer unlock()

	rec, err := s.records.Begin(ctx, c.ID, ct)
	if err != nil {
		return Result{}, fmt.Errorf("records.Begin() > %w", err)
	}

	task := queue.Task{
		RecordID:    rec.ID,
		CourseID:    rec.CourseID,
		ContentType: ct,
		Prompt:      prompt.Build(ct, c.Topic, c.Content),
		Attempt:     rec.Attempt,
	}
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		s.logger.Error("failed to enqueue generation", "recordId", rec.ID, "error", err)
		const msg = "failed to enqueue generation"
		s.finishWithError(ctx, rec, msg)
		return Result{RecordID: rec.ID, Status: record.StatusError, Error: msg},
			&UpstreamError{RecordID: rec.ID, Message: msg, Err: err}
	}

	s.logger.Info("generation enqueued", "recordId", rec.ID, "courseId", c.ID, "contentType", ct, "attempt", rec.Attempt)
	return Result{RecordID: rec.ID, Status: record.StatusGenerating}, nil
}

// RunTask executes a queued task. Tasks for superseded attempts are dropped;
// a task whose attempt already failed starts a new attempt.
func (s *Service) RunTask(ctx context.Context, task queue.Task) error {
	unlock := s.locks.Lock(lockKey(task.CourseID, task.ContentType))
	defer unlock()

	rec, err := s.records.FindByID(ctx, task.RecordID)
	if errors.Is(err, record.ErrNotFound) {
		s.logger.Warn("dropping task for missing record", "recordId", task.RecordID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("records.FindByID() > %w", err)
	}

	switch {
	case rec.Attempt != task.Attempt:
		s.logger.Info("dropping superseded task", "recordId", rec.ID, "taskAttempt", task.Attempt, "currentAttempt", rec.Attempt)
		return nil
	case rec.Status == record.StatusReady:
		s.logger.Info("dropping task for ready record", "recordId", rec.ID, "attempt", rec.Attempt)
		return nil
	case rec.Status == record.StatusError:
		rec, err = s.records.Begin(ctx, rec.CourseID, rec.ContentType)
		if err != nil {
			return fmt.Errorf("records.Begin() > %w", err)
		}
		s.logger.Info("retrying failed generation", "recordId", rec.ID, "attempt", rec.Attempt)
	}

	p := task.Prompt
	if p == "" {
		c, err := s.courses.FindByID(ctx, rec.CourseID)
		if err != nil {
			s.finishWithError(ctx, rec, "course not found")
			return fmt.Errorf("courses.FindByID() > %w", err)
		}
		p = prompt.Build(rec.ContentType, c.Topic, c.Content)
	}

	_, err = s.run(ctx, rec, p, false)
	return err
}

// Status returns the record of the pair.
func (s *Service) Status(ctx context.Context, courseID string, contentType record.ContentType) (*record.Record, error) {
	courseID, ct, err := parseRequest(courseID, contentType)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.FindByCourseAndType(ctx, courseID, ct)
	if err != nil {
		return nil, fmt.Errorf("records.FindByCourseAndType() > %w", err)
	}
	return rec, nil
}

// List returns every record of a course.
func (s *Service) List(ctx context.Context, courseID string) ([]record.Record, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, &ValidationError{Field: "courseId", Message: "is required"}
	}
	c, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.FindByCourse(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("records.FindByCourse() > %w", err)
	}
	return records, nil
}

// run executes prompt → gateway → normalizer for a Generating record and
// always leaves it Ready or Error, panics included.
func (s *Service) run(ctx context.Context, rec *record.Record, p string, allowFallback bool) (result Result, err error) {
	// The model call is not cancelled with the caller; the gateway timeout bounds it.
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("generation panicked", "recordId", rec.ID, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
		if err == nil {
			return
		}
		msg := failureMessage(err)
		s.logger.Warn("generation failed", "recordId", rec.ID, "attempt", rec.Attempt, "error", err)
		s.finishWithError(ctx, rec, msg)
		if allowFallback {
			s.dispatchFallback(ctx, rec, p)
		}
		result = Result{RecordID: rec.ID, Status: record.StatusError, Error: msg}
		err = &UpstreamError{RecordID: rec.ID, Message: msg, Err: err}
	}()

	raw, err := s.gateway.Generate(ctx, p)
	if err != nil {
		return Result{}, fmt.Errorf("gateway.Generate() > %w", err)
	}

	content, err := normalize.Normalize(raw, rec.ContentType)
	if err != nil {
		return Result{}, err
	}

	wctx, cancel := context.WithTimeout(ctx, terminalWriteTimeout)
	defer cancel()
	if err := s.records.Complete(wctx, rec.ID, rec.Attempt, content); err != nil {
		if errors.Is(err, record.ErrStaleAttempt) {
			// A newer attempt owns the record now; its outcome is the one that counts.
			s.logger.Info("discarding result of superseded attempt", "recordId", rec.ID, "attempt", rec.Attempt)
			return Result{RecordID: rec.ID, Status: record.StatusGenerating}, nil
		}
		return Result{}, fmt.Errorf("records.Complete() > %w", err)
	}

	s.logger.Info("generation ready", "recordId", rec.ID, "attempt", rec.Attempt, "bytes", len(content))
	return Result{RecordID: rec.ID, Status: record.StatusReady}, nil
}

func (s *Service) finishWithError(ctx context.Context, rec *record.Record, msg string) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	err := s.records.Fail(wctx, rec.ID, rec.Attempt, msg)
	switch {
	case err == nil:
	case errors.Is(err, record.ErrStaleAttempt):
		s.logger.Info("superseded attempt not marked failed", "recordId", rec.ID, "attempt", rec.Attempt)
	default:
		s.logger.Error("failed to mark record as failed", "recordId", rec.ID, "attempt", rec.Attempt, "error", err)
	}
}

// dispatchFallback is best effort: its failure is logged, never returned.
func (s *Service) dispatchFallback(ctx context.Context, rec *record.Record, p string) {
	if s.dispatcher == nil || !s.fallback {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	task := queue.Task{
		RecordID:    rec.ID,
		CourseID:    rec.CourseID,
		ContentType: rec.ContentType,
		Prompt:      p,
		Attempt:     rec.Attempt,
	}
	if err := s.dispatcher.Dispatch(wctx, task); err != nil {
		s.logger.Warn("fallback dispatch failed", "recordId", rec.ID, "error", err)
		return
	}
	s.logger.Info("fallback dispatched", "recordId", rec.ID, "attempt", rec.Attempt)
}

func (s *Service) findCourse(ctx context.Context, courseID string) (*course.Course, error) {
	c, err := s.courses.FindByID(ctx, courseID)
	if errors.Is(err, course.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
	}
	if err != nil {
		return nil, fmt.Errorf("courses.FindByID() > %w", err)
	}
	return c, nil
}

// parseRequest trims the course id and canonicalizes the content type.
func parseRequest(courseID string, contentType record.ContentType) (string, record.ContentType, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return "", "", &ValidationError{Field: "courseId", Message: "is required"}
	}
	ct, err := record.ParseContentType(string(contentType))
	if err != nil {
		return "", "", &ValidationError{Field: "contentType", Message: err.Error()}
	}
	return courseID, ct, nil
}

func lockKey(courseID string, ct record.ContentType) string {
	return courseID + "/" + string(ct)
}
