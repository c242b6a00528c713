package inference_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ryhan5/aicademy/internal/inference"
	mock_inference "github.com/ryhan5/aicademy/internal/mocks/inference"
)

func TestWithRetry(t *testing.T) {
	rateLimited := &inference.StatusError{Provider: "groq", StatusCode: http.StatusTooManyRequests, Body: "slow down"}
	badRequest := &inference.StatusError{Provider: "groq", StatusCode: http.StatusBadRequest, Body: "bad prompt"}

	tests := []struct {
		name      string
		setup     func(m *mock_inference.MockGatewayMockRecorder)
		want      string
		wantErrIs error
	}{
		{
			name: "succeeds first time",
			setup: func(m *mock_inference.MockGatewayMockRecorder) {
				m.Generate(gomock.Any(), "prompt").Return("[]", nil).Times(1)
			},
			want: "[]",
		},
		{
			name: "retries rate limits then succeeds",
			setup: func(m *mock_inference.MockGatewayMockRecorder) {
				gomock.InOrder(
					m.Generate(gomock.Any(), "prompt").Return("", rateLimited),
					m.Generate(gomock.Any(), "prompt").Return("", fmt.Errorf("wrapped > %w", rateLimited)),
					m.Generate(gomock.Any(), "prompt").Return("ok", nil),
				)
			},
			want: "ok",
		},
		{
			name: "gives up after attempts are exhausted",
			setup: func(m *mock_inference.MockGatewayMockRecorder) {
				m.Generate(gomock.Any(), "prompt").Return("", rateLimited).Times(3)
			},
			wantErrIs: inference.ErrRateLimited,
		},
		{
			name: "does not retry client errors",
			setup: func(m *mock_inference.MockGatewayMockRecorder) {
				m.Generate(gomock.Any(), "prompt").Return("", badRequest).Times(1)
			},
			wantErrIs: badRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			next := mock_inference.NewMockGateway(ctrl)
			tt.setup(next.EXPECT())

			gw := inference.WithRetry(next, 2, time.Millisecond, nil)
			got, err := gw.Generate(context.Background(), "prompt")
			if tt.wantErrIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErrIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: inference.ErrRateLimited, want: true},
		{name: "429", err: &inference.StatusError{StatusCode: 429}, want: true},
		{name: "503", err: &inference.StatusError{StatusCode: 503}, want: true},
		{name: "401", err: &inference.StatusError{StatusCode: 401}, want: false},
		{name: "context canceled", err: fmt.Errorf("call > %w", context.Canceled), want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inference.IsRetryable(tt.err))
		})
	}
}

func TestStatusError_Is(t *testing.T) {
	err := fmt.Errorf("groq > %w", &inference.StatusError{Provider: "groq", StatusCode: 429})
	assert.ErrorIs(t, err, inference.ErrRateLimited)
	assert.NotErrorIs(t, &inference.StatusError{StatusCode: 500}, inference.ErrRateLimited)
}
