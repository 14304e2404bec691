// Package client talks to a focus server over its REST API. Client
// implements timer.Writer, so a local timer can record sessions remotely.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/joescharf/focus/internal/api"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/store"
	"github.com/joescharf/focus/internal/timer"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// Client is a REST client for one user.
type Client struct {
	http *resty.Client
	user string
}

// New creates a client for baseURL acting as user.
func New(baseURL, user string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader(api.UserHeader, user).
		SetTimeout(timeout)
	return &Client{http: c, user: user}
}

// User returns the user the client acts as.
func (c *Client) User() string { return c.user }

type errorBody struct {
	Error string `json:"error"`
}

// check maps an error response onto the package sentinels so callers can
// use errors.Is on remote failures the same way as on local ones.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	msg := resp.Status()
	if e, ok := resp.Error().(*errorBody); ok && e.Error != "" {
		msg = e.Error
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", store.ErrNotFound, msg)
	case http.StatusBadRequest:
		if strings.HasPrefix(msg, sessions.ErrInvalidCategory.Error()) {
			return fmt.Errorf("%w: %s", sessions.ErrInvalidCategory, msg)
		}
		return fmt.Errorf("%w: %s", sessions.ErrInvalidSession, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", timer.ErrInvalidTransition, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", timer.ErrPersistence, msg)
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode(), msg)
	}
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&errorBody{})
}

// Ping checks the server's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return check(c.req(ctx).Get("/healthz"))
}

// --- timer.Writer ---

func (c *Client) CreateSession(ctx context.Context, userID string, categoryID *string, start time.Time, mode models.Mode) (string, error) {
	var out api.SessionView
	resp, err := c.req(ctx).
		SetHeader(api.UserHeader, userID).
		SetBody(api.CreateSessionRequest{
			ID:         models.SessionIDFromContext(ctx),
			CategoryID: categoryID,
			Start:      &start,
			Mode:       string(mode),
		}).
		SetResult(&out).
		Post("/api/v1/sessions")
	if err := check(resp, err); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return out.ID, nil
}

func (c *Client) EndSession(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int) error {
	resp, err := c.req(ctx).
		SetBody(api.EndSessionRequest{EndedAt: &endedAt, Duration: &durationSeconds}).
		Post("/api/v1/sessions/" + url.PathEscape(sessionID) + "/end")
	if err := check(resp, err); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (c *Client) UpdateSessionCategory(ctx context.Context, sessionID string, categoryID *string) error {
	resp, err := c.req(ctx).
		SetBody(api.CategoryRequest{CategoryID: categoryID}).
		Put("/api/v1/sessions/" + url.PathEscape(sessionID) + "/category")
	if err := check(resp, err); err != nil {
		return fmt.Errorf("update session category: %w", err)
	}
	return nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	resp, err := c.req(ctx).Delete("/api/v1/sessions/" + url.PathEscape(sessionID))
	if err := check(resp, err); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// --- Queries ---

// ListSessions lists sessions matching filter. The filter's user overrides
// the client's.
func (c *Client) ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	r := c.req(ctx)
	if filter.UserID != "" {
		r.SetHeader(api.UserHeader, filter.UserID)
	}
	if filter.CategoryID != "" {
		r.SetQueryParam("category_id", filter.CategoryID)
	}
	if filter.Mode != "" {
		r.SetQueryParam("mode", string(filter.Mode))
	}
	if !filter.Since.IsZero() {
		r.SetQueryParam("since", filter.Since.Format(time.RFC3339))
	}
	if !filter.Until.IsZero() {
		r.SetQueryParam("until", filter.Until.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(filter.Limit))
	}

	var views []api.SessionView
	resp, err := r.SetResult(&views).Get("/api/v1/sessions")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]*models.Session, 0, len(views))
	for _, v := range views {
		out = append(out, v.Model())
	}
	return out, nil
}

// GetStreakThreshold returns the user's streak threshold in minutes.
func (c *Client) GetStreakThreshold(ctx context.Context, userID string) (int, error) {
	var out map[string]int
	resp, err := c.req(ctx).
		SetHeader(api.UserHeader, userID).
		SetResult(&out).
		Get("/api/v1/settings/streak-threshold")
	if err := check(resp, err); err != nil {
		return 0, fmt.Errorf("get streak threshold: %w", err)
	}
	return out["threshold_minutes"], nil
}

func (c *Client) Streak(ctx context.Context) (api.StreakView, error) {
	var out api.StreakView
	resp, err := c.req(ctx).SetResult(&out).Get("/api/v1/streak")
	return out, check(resp, err)
}

func (c *Client) Stats(ctx context.Context) (api.StatsView, error) {
	var out api.StatsView
	resp, err := c.req(ctx).SetResult(&out).Get("/api/v1/stats")
	return out, check(resp, err)
}

// --- Remote timer ---

func (c *Client) Timer(ctx context.Context) (api.TimerResponse, error) {
	var out api.TimerResponse
	resp, err := c.req(ctx).SetResult(&out).Get("/api/v1/timer")
	return out, check(resp, err)
}

func (c *Client) StartTimer(ctx context.Context, mode models.Mode, category string) (api.TimerResponse, error) {
	return c.timerAction(ctx, "start", api.StartTimerRequest{Mode: string(mode), Category: category})
}

func (c *Client) PauseTimer(ctx context.Context) (api.TimerResponse, error) {
	return c.timerAction(ctx, "pause", nil)
}

func (c *Client) ResumeTimer(ctx context.Context) (api.TimerResponse, error) {
	return c.timerAction(ctx, "resume", nil)
}

func (c *Client) StopTimer(ctx context.Context) (api.TimerResponse, error) {
	return c.timerAction(ctx, "stop", nil)
}

func (c *Client) ResetTimer(ctx context.Context) (api.TimerResponse, error) {
	return c.timerAction(ctx, "reset", nil)
}

func (c *Client) timerAction(ctx context.Context, action string, body any) (api.TimerResponse, error) {
	var out api.TimerResponse
	r := c.req(ctx).SetResult(&out)
	if body != nil {
		r.SetBody(body)
	}
	resp, err := r.Post("/api/v1/timer/" + action)
	if err := check(resp, err); err != nil {
		return out, fmt.Errorf("%s timer: %w", action, err)
	}
	return out, nil
}
