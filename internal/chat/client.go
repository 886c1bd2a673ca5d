// Package chat implements the JSON-over-HTTP polling protocol spoken by the
// ROFLFaucet chat, notifications, and balance endpoints. The client fetches
// only messages newer than a high-water-mark cursor and never re-fetches
// history.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/roflfaucet/roflchat/internal/metrics"
)

const maxResponseSize = 1 << 20 // 1 MiB cap on endpoint responses

// ErrReadOnly is returned when a guest client attempts a mutating action.
var ErrReadOnly = errors.New("guest session is read-only")

// APIError is an application-level rejection from an endpoint
// (success=false with an error field). It is not retried automatically.
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s rejected by server: %s", e.Op, e.Message)
}

// Client talks to the chat and notifications endpoints for one identity.
// The zero value is not usable; construct with NewClient or NewGuestClient.
type Client struct {
	baseURL    string
	username   string
	userID     string
	guest      bool
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Username       string
	UserID         string
	RequestTimeout time.Duration
	SendRate       float64 // sends per second
	SendBurst      int
}

// NewClient creates an authenticated chat client.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("chat base URL is required")
	}
	if opts.Username == "" || opts.UserID == "" {
		return nil, fmt.Errorf("username and user_id are required for an authenticated client")
	}
	return newClient(opts, false, logger), nil
}

// NewGuestClient creates a read-only chat client. Polls omit identity and
// carry guest=1; Send always fails with ErrReadOnly.
func NewGuestClient(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("chat base URL is required")
	}
	opts.Username = ""
	opts.UserID = ""
	return newClient(opts, true, logger), nil
}

func newClient(opts Options, guest bool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendRate := opts.SendRate
	if sendRate <= 0 {
		sendRate = 1
	}
	burst := opts.SendBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:    opts.BaseURL,
		username:   opts.Username,
		userID:     opts.UserID,
		guest:      guest,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(sendRate), burst),
		logger:     logger.With("component", "chat_client"),
	}
}

// Guest reports whether the client is a read-only guest variant.
func (c *Client) Guest() bool { return c.guest }

// Username returns the identity the client polls and sends as. Empty for guests.
func (c *Client) Username() string { return c.username }

// Poll fetches messages newer than since. since must be monotonically
// non-decreasing across calls; use NextCursor to advance it.
func (c *Client) Poll(ctx context.Context, since float64) (*PollResult, error) {
	metrics.PollsTotal.Inc()

	q := url.Values{}
	q.Set("since", formatTimestamp(since))
	if c.guest {
		q.Set("guest", "1")
	} else {
		q.Set("user_id", c.userID)
		q.Set("username", c.username)
	}

	var resp pollResponse
	if err := c.getJSON(ctx, "/chat", q, &resp); err != nil {
		metrics.PollFailuresTotal.Inc()
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{Op: "poll", Message: resp.Error}
	}

	return &PollResult{
		Messages:         resp.Messages,
		OnlineCount:      resp.OnlineCount,
		CurrentTimestamp: resp.CurrentTimestamp,
	}, nil
}

// Send posts a chat message to the given room. The server echoes accepted
// messages back through the poll stream; Send does not insert locally.
func (c *Client) Send(ctx context.Context, room, text string) error {
	if c.guest {
		return ErrReadOnly
	}
	if text == "" {
		return fmt.Errorf("message text is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate limiter: %w", err)
	}

	body := map[string]string{
		"message":  text,
		"room":     room,
		"username": c.username,
		"user_id":  c.userID,
	}

	var resp sendResponse
	if err := c.postJSON(ctx, "/chat", body, &resp); err != nil {
		metrics.SendFailuresTotal.Inc()
		return err
	}
	if !resp.Success {
		metrics.SendFailuresTotal.Inc()
		return &APIError{Op: "send", Message: resp.Error}
	}

	metrics.SendsTotal.Inc()
	return nil
}

// Notifications fetches all notifications for the client's user, newest first.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	if c.guest {
		return nil, ErrReadOnly
	}

	q := url.Values{}
	q.Set("action", "all")
	q.Set("user_id", c.userID)
	q.Set("username", c.username)

	var resp notificationsResponse
	if err := c.getJSON(ctx, "/notifications", q, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{Op: "notifications", Message: resp.Error}
	}
	return resp.Notifications, nil
}

// NotificationAction posts a mutating notification action. Valid actions are
// mark_replied, dismiss, mark_read (single id), clear_all and mark_all_read
// (no id). dismiss and clear_all are irreversible.
func (c *Client) NotificationAction(ctx context.Context, action string, notificationID string) error {
	if c.guest {
		return ErrReadOnly
	}

	body := map[string]any{
		"action":   action,
		"user_id":  c.userID,
		"username": c.username,
	}
	if notificationID != "" {
		body["notification_id"] = notificationID
	}

	var resp actionResponse
	if err := c.postJSON(ctx, "/notifications", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{Op: "notification " + action, Message: resp.Error}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "path", req.URL.Path, "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, req.URL.Path, string(snippet))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", req.URL.Path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid JSON from %s: %w", req.URL.Path, err)
	}
	return nil
}

// NextCursor advances a poll cursor from a poll result. The cursor moves to
// the highest message timestamp returned; when no messages arrived it still
// advances to the server-reported current timestamp if that is newer, so a
// server clock ahead of the client cannot leave the cursor lagging forever.
// The result is never less than cur.
func NextCursor(cur float64, res *PollResult) float64 {
	next := cur
	for _, m := range res.Messages {
		if m.Timestamp > next {
			next = m.Timestamp
		}
	}
	if len(res.Messages) == 0 && res.CurrentTimestamp > next {
		next = res.CurrentTimestamp
	}
	return next
}

func formatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}
