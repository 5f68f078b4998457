package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voxport/internal/api"
)

// ErrDaemonUnavailable is returned when the daemon API cannot be reached.
var ErrDaemonUnavailable = errors.New("voxportd API unavailable")

// Client talks to a running voxportd over its HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// Filters carries the optional record filters of a selection, plus the
// requested metadata format for submissions.
type Filters struct {
	Gender    string
	AgeGroup  string
	Education string
	Domain    string
	Category  string
	Split     string
	UserID    string
	Format    string
}

// New builds a client for the given bind address (host:port or URL).
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api address is required")
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
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Submit queues an export job for language at the given percentage.
func (c *Client) Submit(ctx context.Context, language string, pct float64, filters Filters) (api.ExportSubmitted, error) {
	var out api.ExportSubmitted
	path := fmt.Sprintf("/api/exports/%s/%s", url.PathEscape(language), formatPct(pct))
	err := c.do(ctx, http.MethodPost, path, filters.values(), &out)
	return out, err
}

// Job fetches one job's status.
func (c *Client) Job(ctx context.Context, id string) (api.JobStatus, error) {
	var out api.JobStatus
	err := c.do(ctx, http.MethodGet, "/api/exports/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Jobs lists jobs, optionally filtered by status.
func (c *Client) Jobs(ctx context.Context, status string, limit int) ([]api.JobStatus, error) {
	values := url.Values{}
	if status != "" {
		values.Set("status", status)
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out api.JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/exports", values, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Status fetches daemon health.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// Preview fetches playback samples for a language.
func (c *Client) Preview(ctx context.Context, language string, limit int, filters Filters) (api.PreviewResponse, error) {
	values := filters.values()
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out api.PreviewResponse
	err := c.do(ctx, http.MethodGet, "/api/samples/"+url.PathEscape(language)+"/preview", values, &out)
	return out, err
}

// Estimate fetches the projected archive size for a selection.
func (c *Client) Estimate(ctx context.Context, language string, pct float64, filters Filters) (api.EstimateResponse, error) {
	var out api.EstimateResponse
	path := fmt.Sprintf("/api/estimate/%s/%s", url.PathEscape(language), formatPct(pct))
	err := c.do(ctx, http.MethodGet, path, filters.values(), &out)
	return out, err
}

// LogTail fetches a page of daemon log lines. A negative offset requests the
// last limit lines; follow asks the daemon to wait for new lines before
// responding.
func (c *Client) LogTail(ctx context.Context, offset int64, limit int, follow bool) (api.LogTailResponse, error) {
	values := url.Values{}
	values.Set("offset", strconv.FormatInt(offset, 10))
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if follow {
		values.Set("follow", "true")
	}
	var out api.LogTailResponse
	err := c.do(ctx, http.MethodGet, "/api/logs", values, &out)
	return out, err
}

// Watch subscribes to a job's websocket status stream and invokes fn for
// each snapshot until a terminal state, the stream closing, or ctx ending.
// It returns the last snapshot seen.
func (c *Client) Watch(ctx context.Context, id string, fn func(api.JobStatus)) (api.JobStatus, error) {
	wsURL := *c.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/api/exports/" + url.PathEscape(id) + "/ws"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return api.JobStatus{}, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var last api.JobStatus
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.ClosePolicyViolation) {
				return last, nil
			}
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, err
		}
		var failure api.ErrorResponse
		if json.Unmarshal(payload, &failure) == nil && failure.Error != "" {
			return last, errors.New(failure.Error)
		}
		var snapshot api.JobStatus
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return last, fmt.Errorf("decode status snapshot: %w", err)
		}
		last = snapshot
		if fn != nil {
			fn(snapshot)
		}
	}
}

func (f Filters) values() url.Values {
	values := url.Values{}
	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			values.Set(key, value)
		}
	}
	set("gender", f.Gender)
	set("age_group", f.AgeGroup)
	set("education", f.Education)
	set("domain", f.Domain)
	set("category", f.Category)
	set("split", f.Split)
	set("user_id", f.UserID)
	set("format", f.Format)
	return values
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, out any) error {
	endpoint := *c.base
	endpoint.Path = path
	if values != nil {
		endpoint.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var failure api.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, failure.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func formatPct(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64)
}
