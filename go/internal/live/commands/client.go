package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bizmonopoly/go/internal/live/view"
)

var (
	// ErrBadResponse is returned when a 2xx reply body is empty or not JSON
	ErrBadResponse = errors.New("empty or malformed response body")
	// ErrUnexpectedStatus is returned when the reply status is not the one the
	// command confirms with
	ErrUnexpectedStatus = errors.New("unexpected command status")
)

// APIError is a command the server rejected
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("command rejected with status code %d", e.StatusCode)
	}
	return fmt.Sprintf("command rejected with status code %d: %s", e.StatusCode, e.Reason)
}

// UserMessage is the server-provided reason, shown to the player verbatim
func (e *APIError) UserMessage() string {
	return e.Reason
}

// Result is a successful command reply
type Result struct {
	// NoContent is set for 204 replies; the confirmation arrives later on the
	// personal channel
	NoContent  bool
	Status     string
	Message    string
	IsObserver *bool
}

type reply struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Detail     string `json:"detail"`
	IsObserver *bool  `json:"is_observer"`
}

// Client sends game commands for one session. Every call carries the
// session's anti-forgery token.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	session *view.Session
}

// NewClient creates a command client rooted at baseURL (e.g. https://host)
func NewClient(baseURL string, session *view.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		headers: map[string]string{
			"X-Requested-With": "XMLHttpRequest",
		},
		session: session,
	}
}

func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetHTTPClient swaps the transport, e.g. to share a cookie jar with the
// channel dialer
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.client = hc
}

func (c *Client) gamePath(action string) string {
	return fmt.Sprintf("/games/%s/%s/", c.session.GameID(), action)
}

// post sends a form-encoded command. requireBody rejects empty 2xx replies.
func (c *Client) post(ctx context.Context, endpoint string, form url.Values, requireBody bool) (Result, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("X-CSRFToken", c.session.CSRFToken())
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug().
		Str("endpoint", endpoint).
		Int("status_code", resp.StatusCode).
		Int("bytes", len(responseBody)).
		Msg("command sent")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &APIError{StatusCode: resp.StatusCode, Reason: reasonFrom(responseBody)}
	}

	if resp.StatusCode == http.StatusNoContent {
		return Result{NoContent: true}, nil
	}

	trimmed := bytes.TrimSpace(responseBody)
	if len(trimmed) == 0 {
		if requireBody {
			return Result{}, ErrBadResponse
		}
		return Result{}, nil
	}

	var r reply
	if err := json.Unmarshal(trimmed, &r); err != nil {
		if requireBody {
			return Result{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		return Result{}, nil
	}

	if r.Error != "" || r.Status == "error" {
		return Result{}, &APIError{StatusCode: resp.StatusCode, Reason: firstNonEmpty(r.Error, r.Message, r.Detail)}
	}

	return Result{
		Status:     r.Status,
		Message:    r.Message,
		IsObserver: r.IsObserver,
	}, nil
}

// reasonFrom extracts the error text from a rejected reply
func reasonFrom(body []byte) string {
	var r reply
	if err := json.Unmarshal(bytes.TrimSpace(body), &r); err != nil {
		return ""
	}
	return strings.TrimSpace(firstNonEmpty(r.Error, r.Message, r.Detail))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
