package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/flowdeck/core/errors"
	"github.com/flowdeck/core/pkg/session"
)

// HTTPClient implements Client against the backend's REST API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	streamURL  string
	timeout    time.Duration
}

// NewHTTPClient creates a client for the backend at baseURL, e.g.
// "http://localhost:8080".
func NewHTTPClient(baseURL string, opts Options) *HTTPClient {
	timeout := opts.CommandTimeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	streamURL := opts.StreamURL
	if streamURL == "" {
		streamURL = deriveStreamURL(baseURL)
	}

	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		streamURL:  streamURL,
		timeout:    timeout,
	}
}

// deriveStreamURL swaps http(s) for ws(s) and appends the stream path.
func deriveStreamURL(baseURL string) string {
	ws := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/api/simulation/stream"
}

// Launch starts a simulation process.
func (c *HTTPClient) Launch(ctx context.Context, req LaunchRequest) (session.ProcessHandle, error) {
	var resp launchResponse
	if err := c.post(ctx, "/api/simulation/launch", req, &resp); err != nil {
		return session.ProcessHandle{}, c.wrapTransport("launch simulation", err)
	}
	if !resp.Success || resp.Process == nil {
		return session.ProcessHandle{}, errors.LaunchRejected(req.SessionID, resp.Message)
	}
	return *resp.Process, nil
}

// Pause suspends the simulation process.
func (c *HTTPClient) Pause(ctx context.Context, processID int) error {
	return c.command(ctx, "pause", fmt.Sprintf("/api/simulation/pause/%d", processID))
}

// Resume continues a paused simulation process.
func (c *HTTPClient) Resume(ctx context.Context, processID int) error {
	return c.command(ctx, "resume", fmt.Sprintf("/api/simulation/resume/%d", processID))
}

// Stop terminates the simulation process.
func (c *HTTPClient) Stop(ctx context.Context, processID int) error {
	return c.command(ctx, "stop", fmt.Sprintf("/api/simulation/stop/%d", processID))
}

// GetZoom fetches the authoritative zoom level.
func (c *HTTPClient) GetZoom(ctx context.Context, processID int) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET",
		c.baseURL+fmt.Sprintf("/api/simulation/zoom/%d", processID), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, c.wrapTransport("get zoom", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return 0, errors.CommandRejected("get zoom", fmt.Sprintf("backend returned status %d", httpResp.StatusCode))
	}

	var resp zoomResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return 0, fmt.Errorf("failed to decode zoom response: %w", err)
	}
	if !resp.Success {
		return 0, errors.CommandRejected("get zoom", resp.Message)
	}
	return resp.ZoomLevel, nil
}

// SetZoom pushes a new absolute zoom level.
func (c *HTTPClient) SetZoom(ctx context.Context, processID int, level float64) error {
	body := map[string]float64{"zoomLevel": level}
	var resp commandResponse
	if err := c.post(ctx, fmt.Sprintf("/api/simulation/zoom/%d", processID), body, &resp); err != nil {
		return c.wrapTransport("set zoom", err)
	}
	if !resp.Success {
		return errors.CommandRejected("set zoom", resp.Message)
	}
	return nil
}

// SaveSession persists the session's results on the backend.
func (c *HTTPClient) SaveSession(ctx context.Context, req SaveRequest) error {
	var resp commandResponse
	if err := c.post(ctx, "/api/simulation/save-session", req, &resp); err != nil {
		return c.wrapTransport("save session", err)
	}
	if !resp.Success {
		return errors.CommandRejected("save session", resp.Message)
	}
	return nil
}

// command runs a bodyless POST command keyed by process id.
func (c *HTTPClient) command(ctx context.Context, action, path string) error {
	var resp commandResponse
	if err := c.post(ctx, path, nil, &resp); err != nil {
		return c.wrapTransport(action+" simulation", err)
	}
	if !resp.Success {
		return errors.CommandRejected(action, resp.Message)
	}
	return nil
}

// wrapTransport maps a transport failure to the error taxonomy: deadline
// expiry becomes a command timeout, everything else an unreachable backend.
func (c *HTTPClient) wrapTransport(action string, err error) error {
	var nerr net.Error
	if stderrors.As(err, &nerr) && nerr.Timeout() {
		return errors.CommandTimeout(action, c.timeout.String())
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.CommandTimeout(action, c.timeout.String())
	}
	return errors.BackendUnreachable(action, err)
}

// post sends a JSON POST and decodes the JSON response into out.
func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Close cleans up any resources used by the client.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
