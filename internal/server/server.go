// Package server exposes content generation over REST and Connect RPC.
package server

import (
	"context"
	"net/http"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ryhan5/aicademy/internal/course"
	"github.com/ryhan5/aicademy/internal/generation"
	"github.com/ryhan5/aicademy/internal/logger"
	"github.com/ryhan5/aicademy/internal/record"
)

// maxBodyBytes caps request bodies; course reference text is the largest field.
const maxBodyBytes = 1 << 20

// GenerationService is the orchestrator surface the handlers call.
type GenerationService interface {
	Generate(ctx context.Context, courseID string, contentType record.ContentType) (generation.Result, error)
	Enqueue(ctx context.Context, courseID string, contentType record.ContentType) (generation.Result, error)
	Status(ctx context.Context, courseID string, contentType record.ContentType) (*record.Record, error)
	List(ctx context.Context, courseID string) ([]record.Record, error)
}

// Pinger reports database reachability for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueDepth reports how many tasks wait in the generation queue.
type QueueDepth interface {
	Len(ctx context.Context) (int64, error)
}

type Server struct {
	generation GenerationService
	courses    course.Repository
	pinger     Pinger
	queue      QueueDepth
	logger     *logger.Logger
}

type Option func(*Server)

func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.pinger = p
	}
}

// WithQueueDepth adds the queue backlog to /healthz.
func WithQueueDepth(q QueueDepth) Option {
	return func(s *Server) {
		s.queue = q
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func New(gen GenerationService, courses course.Repository, opts ...Option) *Server {
	s := &Server{
		generation: gen,
		courses:    courses,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers the REST endpoints and the Connect service on one mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /courses", s.handleListCourses)
	mux.HandleFunc("POST /courses", s.handleCreateCourse)
	mux.HandleFunc("GET /courses/{courseID}", s.handleGetCourse)
	mux.HandleFunc("GET /courses/{courseID}/content", s.handleListContent)
	mux.HandleFunc("POST /generate/{contentType}", s.handleGenerate)
	mux.HandleFunc("POST /enqueue/{contentType}", s.handleEnqueue)
	mux.HandleFunc("GET /status/{contentType}", s.handleStatus)
	mux.HandleFunc("POST /status/{contentType}", s.handleStatus)

	path, h := NewGenerationServiceHandler(s.generation, s.logger)
	mux.Handle(path, h)
	return mux
}

// Handler wraps Routes with CORS for allowedOrigins and h2c so Connect
// clients can speak HTTP/2 without TLS.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type", "Accept", "Origin",
			"Connect-Protocol-Version", "Connect-Timeout-Ms",
		},
		ExposedHeaders: []string{recordIDHeader},
		MaxAge:         3600,
	})
	return c.Handler(h2c.NewHandler(s.Routes(), &http2.Server{}))
}
