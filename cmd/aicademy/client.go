package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ryhan5/aicademy/internal/course"
	"github.com/ryhan5/aicademy/internal/poller"
	"github.com/ryhan5/aicademy/internal/server"
)

// apiClient talks REST for courses and Connect for generation.
type apiClient struct {
	rest       *resty.Client
	generation *server.GenerationClient
	status     *poller.HTTPStatusChecker
}

type apiError struct {
	Error string `json:"error"`
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	baseURL = strings.TrimRight(baseURL, "/")
	rest := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	httpClient := &http.Client{}
	if timeout > 0 {
		rest.SetTimeout(timeout)
		httpClient.Timeout = timeout
	}
	return &apiClient{
		rest:       rest,
		generation: server.NewGenerationClient(httpClient, baseURL),
		status:     poller.NewHTTPStatusChecker(baseURL, timeout),
	}
}

func (c *apiClient) CreateCourse(ctx context.Context, topic, content string) (*course.Course, error) {
	var created course.Course
	var apiErr apiError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"topic": topic, "content": content}).
		SetResult(&created).
		SetError(&apiErr).
		Post("/courses")
	if err != nil {
		return nil, fmt.Errorf("client.Post(courses) > %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create course failed with %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return &created, nil
}

func (c *apiClient) ListCourses(ctx context.Context) ([]course.Course, error) {
	var courses []course.Course
	var apiErr apiError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&courses).
		SetError(&apiErr).
		Get("/courses")
	if err != nil {
		return nil, fmt.Errorf("client.Get(courses) > %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list courses failed with %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return courses, nil
}

func (c *apiClient) GetCourse(ctx context.Context, id string) (*course.Course, error) {
	var found course.Course
	var apiErr apiError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&found).
		SetError(&apiErr).
		Get("/courses/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("client.Get(course) > %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%s > %w", id, course.ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get course failed with %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return &found, nil
}
