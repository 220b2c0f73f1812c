package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Brownie44l1/binfill-api/internal/model"
	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 30 * time.Second

type Client struct {
	rest *resty.Client
}

// New returns a client for the service at baseURL. A zero timeout uses
// DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		rest: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout),
	}
}

type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Detail)
}

func (c *Client) Analyze(ctx context.Context, filename string, data []byte) (*model.AnalyzeResponse, error) {
	var result model.AnalyzeResponse
	var failure model.ErrorResponse

	resp, err := c.rest.R().
		SetContext(ctx).
		SetMultipartField("photo", filepath.Base(filename), contentType(filename, data), bytes.NewReader(data)).
		SetResult(&result).
		SetError(&failure).
		Post("/analyze")
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	if resp.IsError() {
		detail := failure.Detail
		if detail == "" {
			detail = strings.TrimSpace(resp.String())
		}
		return nil, &StatusError{StatusCode: resp.StatusCode(), Detail: detail}
	}
	return &result, nil
}

func (c *Client) Health(ctx context.Context) error {
	var result model.HealthResponse
	resp, err := c.rest.R().SetContext(ctx).SetResult(&result).Get("/health")
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || result.Status != "healthy" {
		return &StatusError{StatusCode: resp.StatusCode(), Detail: strings.TrimSpace(resp.String())}
	}
	return nil
}

func contentType(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return http.DetectContentType(data)
}
