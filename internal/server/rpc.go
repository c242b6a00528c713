package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/genproto/googleapis/rpc/errdetails"

	"github.com/ryhan5/aicademy/internal/course"
	"github.com/ryhan5/aicademy/internal/generation"
	"github.com/ryhan5/aicademy/internal/logger"
	"github.com/ryhan5/aicademy/internal/record"
)

const (
	GenerationServiceName = "aicademy.v1.GenerationService"

	GenerateProcedure  = "/" + GenerationServiceName + "/Generate"
	EnqueueProcedure   = "/" + GenerationServiceName + "/Enqueue"
	GetStatusProcedure = "/" + GenerationServiceName + "/GetStatus"

	// recordIDHeader carries the affected record id on responses and errors.
	recordIDHeader = "Aicademy-Record-Id"
)

type GenerateRequest struct {
	CourseID    string `json:"courseId" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
}

type GetStatusRequest struct {
	CourseID    string `json:"courseId" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
	OmitContent bool   `json:"omitContent"`
}

// jsonCodec lets Connect carry plain Go structs. It replaces the default
// protojson codec registered under the same name.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// GenerationServiceHandler serves the Connect procedures of the generation service.
type GenerationServiceHandler struct {
	generation GenerationService
	logger     *logger.Logger
}

// NewGenerationServiceHandler returns the mount path and handler of the service.
func NewGenerationServiceHandler(gen GenerationService, log *logger.Logger, opts ...connect.HandlerOption) (string, http.Handler) {
	h := &GenerationServiceHandler{generation: gen, logger: log}
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GenerateProcedure, connect.NewUnaryHandler(GenerateProcedure, h.Generate, opts...))
	mux.Handle(EnqueueProcedure, connect.NewUnaryHandler(EnqueueProcedure, h.Enqueue, opts...))
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, h.GetStatus, opts...))
	return "/" + GenerationServiceName + "/", mux
}

// Generate runs a generation and waits for its outcome.
func (h *GenerationServiceHandler) Generate(
	ctx context.Context,
	req *connect.Request[GenerateRequest],
) (*connect.Response[generation.Result], error) {
	if err := validateRequest(req.Msg); err != nil {
		return nil, err
	}
	result, err := h.generation.Generate(ctx, req.Msg.CourseID, record.ContentType(req.Msg.ContentType))
	if err != nil {
		return nil, h.toConnectError(err)
	}
	resp := connect.NewResponse(&result)
	resp.Header().Set(recordIDHeader, result.RecordID)
	return resp, nil
}

// Enqueue starts a background generation.
func (h *GenerationServiceHandler) Enqueue(
	ctx context.Context,
	req *connect.Request[GenerateRequest],
) (*connect.Response[generation.Result], error) {
	if err := validateRequest(req.Msg); err != nil {
		return nil, err
	}
	result, err := h.generation.Enqueue(ctx, req.Msg.CourseID, record.ContentType(req.Msg.ContentType))
	if err != nil {
		return nil, h.toConnectError(err)
	}
	resp := connect.NewResponse(&result)
	resp.Header().Set(recordIDHeader, result.RecordID)
	return resp, nil
}

// GetStatus returns the record of the pair.
func (h *GenerationServiceHandler) GetStatus(
	ctx context.Context,
	req *connect.Request[GetStatusRequest],
) (*connect.Response[StatusResponse], error) {
	if err := validateRequest(req.Msg); err != nil {
		return nil, err
	}
	rec, err := h.generation.Status(ctx, req.Msg.CourseID, record.ContentType(req.Msg.ContentType))
	if err != nil {
		return nil, h.toConnectError(err)
	}
	status := newStatusResponse(rec, req.Msg.OmitContent)
	return connect.NewResponse(&status), nil
}

func (h *GenerationServiceHandler) toConnectError(err error) *connect.Error {
	var validationErr *generation.ValidationError
	var upstreamErr *generation.UpstreamError
	switch {
	case errors.As(err, &validationErr):
		return invalidArgument(err, []*errdetails.BadRequest_FieldViolation{{
			Field:       validationErr.Field,
			Description: validationErr.Message,
		}})
	case errors.As(err, &upstreamErr):
		connectErr := connect.NewError(connect.CodeUnavailable, errors.New(upstreamErr.Message))
		connectErr.Meta().Set(recordIDHeader, upstreamErr.RecordID)
		return connectErr
	case errors.Is(err, generation.ErrCourseNotFound),
		errors.Is(err, course.ErrNotFound),
		errors.Is(err, record.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, errors.New(notFoundMessage(err)))
	case errors.Is(err, generation.ErrQueueDisabled):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		h.logger.Error("rpc failed", "error", err)
		return connect.NewError(connect.CodeInternal, errors.New("internal server error"))
	}
}

func validateRequest(msg any) *connect.Error {
	violations := validateStruct(msg)
	if len(violations) == 0 {
		return nil
	}
	return invalidArgument(errors.New(violations[0].Description), violations)
}

func invalidArgument(err error, violations []*errdetails.BadRequest_FieldViolation) *connect.Error {
	connectErr := connect.NewError(connect.CodeInvalidArgument, err)
	if detail, detailErr := connect.NewErrorDetail(&errdetails.BadRequest{
		FieldViolations: violations,
	}); detailErr == nil {
		connectErr.AddDetail(detail)
	}
	return connectErr
}
