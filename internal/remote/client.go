// Package remote talks to the exercise persistence service.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

var ErrNotAuthenticated = errors.New("remote: credential required")

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("exercise api error: status=%d body=%s", e.Status, e.Body)
}

// IsNotFound reports a 404 from the service.
// 삭제 시 이미 없는 레코드는 성공으로 취급할 때 사용.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == fasthttp.StatusNotFound
}

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithHTTPClient swaps the transport; tests dial an in-memory listener.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout is the per-request bound applied when ctx has no earlier deadline.
func (c *Client) Timeout() time.Duration { return c.defaultTimeout }

type createRequest struct {
	Name       string                  `json:"name"`
	InitialFEN string                  `json:"initialFen"`
	PGN        string                  `json:"pgn"`
	Analysis   []trainerdto.Annotation `json:"analysis,omitempty"`
	Color      string                  `json:"color"`
	IsPublic   bool                    `json:"isPublic"`
}

// Create stores a new exercise owned by the credential holder.
func (c *Client) Create(ctx context.Context, credential string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrNotAuthenticated
	}
	in := createRequest{
		Name:       ex.Name,
		InitialFEN: ex.InitialFEN,
		PGN:        ex.PGN,
		Analysis:   ex.Analysis,
		Color:      ex.Color,
		IsPublic:   ex.IsPublic,
	}
	var out trainerdto.ExerciseResource
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/exercises", credential, in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMine(ctx context.Context, credential string) ([]trainerdto.ExerciseResource, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrNotAuthenticated
	}
	var out []trainerdto.ExerciseResource
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/exercises/mine", credential, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPublic needs no credential but forwards one when present.
func (c *Client) ListPublic(ctx context.Context, credential string) ([]trainerdto.ExerciseResource, error) {
	var out []trainerdto.ExerciseResource
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/exercises/public", credential, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, credential string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrNotAuthenticated
	}
	var out trainerdto.ExerciseResource
	path := "/api/exercises/" + strconv.FormatInt(ex.ID, 10)
	if err := c.doJSON(ctx, fasthttp.MethodPut, path, credential, ex, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, credential string, id int64) error {
	if strings.TrimSpace(credential) == "" {
		return ErrNotAuthenticated
	}
	return c.doJSON(ctx, fasthttp.MethodDelete, "/api/exercises/"+strconv.FormatInt(id, 10), credential, nil, nil, false)
}

func (c *Client) doJSON(ctx context.Context, method, path, credential string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if cred := strings.TrimSpace(credential); cred != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+cred)
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			if attempt == attempts {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			serr := &StatusError{Status: status, Body: truncate(string(resp.Body()), 512)}
			if attempt == attempts || !shouldRetryStatus(status) {
				return serr
			}
			lastErr = serr
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil && len(resp.Body()) > 0 {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
