package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/upnext/internal/app/notification"
	"github.com/osa030/upnext/internal/app/session"
)

// Client calls the control API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
// A nil httpClient uses http.DefaultClient.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// Status fetches the session status.
func (c *Client) Status(ctx context.Context) (*session.Status, error) {
	var st session.Status
	if err := c.call(ctx, http.MethodGet, "/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Queue fetches the queue contents.
func (c *Client) Queue(ctx context.Context) (*QueueResponse, error) {
	var q QueueResponse
	if err := c.call(ctx, http.MethodGet, "/v1/queue", nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// History fetches the play history.
func (c *Client) History(ctx context.Context) (*HistoryResponse, error) {
	var h HistoryResponse
	if err := c.call(ctx, http.MethodGet, "/v1/history", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// SetPlaylist replaces the main queue.
func (c *Client) SetPlaylist(ctx context.Context, req PlaylistRequest) (*session.Status, error) {
	return c.command(ctx, http.MethodPut, "/v1/playlist", req)
}

// AddPlayNext queues a track to play after the current one.
func (c *Client) AddPlayNext(ctx context.Context, req TrackRequest) (*session.Status, error) {
	return c.command(ctx, http.MethodPost, "/v1/next-queue", req)
}

// Do sends a bodyless command such as "play" or "play/main/2".
func (c *Client) Do(ctx context.Context, action string) (*session.Status, error) {
	return c.command(ctx, http.MethodPost, "/v1/"+strings.TrimLeft(action, "/"), nil)
}

// Seek moves to fraction of the current track.
func (c *Client) Seek(ctx context.Context, fraction float64) (*session.Status, error) {
	return c.command(ctx, http.MethodPost, "/v1/seek", SeekRequest{Fraction: &fraction})
}

// SetShuffle turns shuffle on or off.
func (c *Client) SetShuffle(ctx context.Context, enabled bool) (*session.Status, error) {
	return c.command(ctx, http.MethodPut, "/v1/shuffle", ShuffleRequest{Enabled: enabled})
}

// SetRepeat sets the repeat mode to "off", "all" or "one".
func (c *Client) SetRepeat(ctx context.Context, mode string) (*session.Status, error) {
	return c.command(ctx, http.MethodPut, "/v1/repeat", RepeatRequest{Mode: mode})
}

// SetMute mutes or unmutes output.
func (c *Client) SetMute(ctx context.Context, muted bool) (*session.Status, error) {
	return c.command(ctx, http.MethodPut, "/v1/mute", MuteRequest{Muted: muted})
}

// Watch streams notifications to fn until ctx ends or the server closes
// the stream.
func (c *Client) Watch(ctx context.Context, fn func(*notification.Notification)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/events", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to open event stream")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var n notification.Notification
		if err := json.Unmarshal(scanner.Bytes(), &n); err != nil {
			return errors.Wrap(err, "invalid event")
		}
		fn(&n)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "event stream interrupted")
	}
	return nil
}

func (c *Client) command(ctx context.Context, method, path string, body any) (*session.Status, error) {
	var st session.Status
	if err := c.call(ctx, method, path, body, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "invalid response")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request")
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set(AdminTokenHeader, c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func decodeError(resp *http.Response) error {
	var msg ErrorMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil || msg.Message == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg.Message}
}
