package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/genproto/googleapis/rpc/errdetails"

	"github.com/ryhan5/aicademy/internal/generation"
	"github.com/ryhan5/aicademy/internal/record"
)

// GenerationClient calls the Connect procedures of a running server.
type GenerationClient struct {
	generate  *connect.Client[GenerateRequest, generation.Result]
	enqueue   *connect.Client[GenerateRequest, generation.Result]
	getStatus *connect.Client[GetStatusRequest, StatusResponse]
}

func NewGenerationClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GenerationClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &GenerationClient{
		generate:  connect.NewClient[GenerateRequest, generation.Result](httpClient, baseURL+GenerateProcedure, opts...),
		enqueue:   connect.NewClient[GenerateRequest, generation.Result](httpClient, baseURL+EnqueueProcedure, opts...),
		getStatus: connect.NewClient[GetStatusRequest, StatusResponse](httpClient, baseURL+GetStatusProcedure, opts...),
	}
}

func (c *GenerationClient) Generate(ctx context.Context, courseID string, contentType record.ContentType) (*generation.Result, error) {
	resp, err := c.generate.CallUnary(ctx, connect.NewRequest(&GenerateRequest{
		CourseID:    courseID,
		ContentType: string(contentType),
	}))
	if err != nil {
		return nil, fmt.Errorf("generate.CallUnary() > %w", err)
	}
	return resp.Msg, nil
}

func (c *GenerationClient) Enqueue(ctx context.Context, courseID string, contentType record.ContentType) (*generation.Result, error) {
	resp, err := c.enqueue.CallUnary(ctx, connect.NewRequest(&GenerateRequest{
		CourseID:    courseID,
		ContentType: string(contentType),
	}))
	if err != nil {
		return nil, fmt.Errorf("enqueue.CallUnary() > %w", err)
	}
	return resp.Msg, nil
}

func (c *GenerationClient) GetStatus(ctx context.Context, courseID string, contentType record.ContentType, omitContent bool) (*StatusResponse, error) {
	resp, err := c.getStatus.CallUnary(ctx, connect.NewRequest(&GetStatusRequest{
		CourseID:    courseID,
		ContentType: string(contentType),
		OmitContent: omitContent,
	}))
	if err != nil {
		return nil, fmt.Errorf("getStatus.CallUnary() > %w", err)
	}
	return resp.Msg, nil
}

// CheckStatus satisfies poller.StatusChecker. A NotFound code is reported as
// record.ErrNotFound so a record that does not exist yet keeps the poll going.
func (c *GenerationClient) CheckStatus(ctx context.Context, courseID string, contentType record.ContentType) (*record.Record, error) {
	status, err := c.GetStatus(ctx, courseID, contentType, false)
	if connect.CodeOf(err) == connect.CodeNotFound {
		return nil, fmt.Errorf("%s/%s > %w", courseID, contentType, record.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return status.Record(), nil
}

// RecordIDOf returns the record id attached to a failed call, if any.
func RecordIDOf(err error) string {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Meta().Get(recordIDHeader)
	}
	return ""
}

// FieldViolations returns the bad request details attached to a failed call.
func FieldViolations(err error) []*errdetails.BadRequest_FieldViolation {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return nil
	}
	var violations []*errdetails.BadRequest_FieldViolation
	for _, detail := range connectErr.Details() {
		value, err := detail.Value()
		if err != nil {
			continue
		}
		if badRequest, ok := value.(*errdetails.BadRequest); ok {
			violations = append(violations, badRequest.GetFieldViolations()...)
		}
	}
	return violations
}
