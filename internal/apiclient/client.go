// Package apiclient talks to a running vench daemon over its HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vench/internal/api"
	"vench/internal/jobs"
)

// ErrAPIUnavailable is returned when no daemon address is configured.
var ErrAPIUnavailable = errors.New("vench API unavailable")

// StatusError carries a non-2xx API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.Code)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Message)
}

// Client is a thin JSON client for the daemon API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client for bind (host:port or URL). An empty bind yields a nil
// client whose methods return ErrAPIUnavailable.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// CreateDiary uploads an audio file and returns the pending job.
func (c *Client) CreateDiary(ctx context.Context, fileName string, audio io.Reader) (*jobs.Job, error) {
	if c == nil {
		return nil, ErrAPIUnavailable
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("audio", filepath.Base(fileName))
		if err == nil {
			_, err = io.Copy(part, audio)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var resp api.JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/diaries", nil, mw.FormDataContentType(), pr, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

// CreateFeedback records feedback against a completed diary.
func (c *Client) CreateFeedback(ctx context.Context, req api.FeedbackRequest) (*jobs.Job, error) {
	var resp api.JobResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/feedback", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

// Job fetches one job by numeric id or UUID.
func (c *Client) Job(ctx context.Context, ref string) (api.JobResponse, error) {
	var resp api.JobResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(ref), nil, nil, &resp)
	return resp, err
}

// List returns jobs matching req, newest first.
func (c *Client) List(ctx context.Context, req api.ListRequest) (api.ListResponse, error) {
	values := url.Values{}
	for _, kind := range req.Kinds {
		values.Add("kind", string(kind))
	}
	for _, status := range req.Statuses {
		values.Add("status", string(status))
	}
	if !req.Since.IsZero() {
		values.Set("since", req.Since.UTC().Format(time.RFC3339))
	}
	if req.Limit > 0 {
		values.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		values.Set("offset", strconv.Itoa(req.Offset))
	}
	var resp api.ListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/jobs", values, nil, &resp)
	return resp, err
}

// Retry resets a failed or skipped job and resubmits it.
func (c *Client) Retry(ctx context.Context, ref string) (*jobs.Job, error) {
	var resp api.JobResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(ref)+"/retry", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

// EmotionStats sums emotion scores over the last days.
func (c *Client) EmotionStats(ctx context.Context, days int) (api.EmotionStats, error) {
	values := url.Values{}
	if days > 0 {
		values.Set("days", strconv.Itoa(days))
	}
	var resp api.EmotionStats
	err := c.doJSON(ctx, http.MethodGet, "/api/stats/emotions", values, nil, &resp)
	return resp, err
}

// KeywordStats lists frequent feedback keywords over the last days.
func (c *Client) KeywordStats(ctx context.Context, days, limit int) (api.KeywordStats, error) {
	values := url.Values{}
	if days > 0 {
		values.Set("days", strconv.Itoa(days))
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var resp api.KeywordStats
	err := c.doJSON(ctx, http.MethodGet, "/api/stats/keywords", values, nil, &resp)
	return resp, err
}

// Status reports daemon health. checkLLM asks the daemon to ping the LLM.
func (c *Client) Status(ctx context.Context, checkLLM bool) (api.Status, error) {
	values := url.Values{}
	if checkLLM {
		values.Set("llm", "1")
	}
	var resp api.Status
	err := c.doJSON(ctx, http.MethodGet, "/api/status", values, nil, &resp)
	return resp, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, query, contentType, reader, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}
