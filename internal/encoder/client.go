package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultStopPollInterval = 100 * time.Millisecond

// Job states reported by the agent.
const (
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"
)

// Client is a Controller backed by the encoder agent's HTTP API:
//
//	POST   /jobs               {"timeline_id"}       -> {"handle"}
//	PUT    /jobs/{h}/outputs   {"destination_ids"}
//	DELETE /jobs/{h}
//	GET    /jobs/{h}                                 -> {"state"}
type Client struct {
	baseURL      string
	http         *http.Client
	log          *slog.Logger
	pollInterval time.Duration
}

// NewClient returns a Client for the agent at baseURL. timeout bounds each
// individual request.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: timeout},
		log:          log,
		pollInterval: defaultStopPollInterval,
	}
}

type beginRequest struct {
	TimelineID string `json:"timeline_id"`
}

type beginResponse struct {
	Handle string `json:"handle"`
}

type outputsRequest struct {
	DestinationIDs []string `json:"destination_ids"`
}

type jobStatus struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Begin implements Controller.Begin.
func (c *Client) Begin(ctx context.Context, timelineID string) (Handle, error) {
	var out beginResponse
	if err := c.do(ctx, http.MethodPost, "/jobs", beginRequest{TimelineID: timelineID}, &out); err != nil {
		return "", fmt.Errorf("begin encoder job: %w", err)
	}
	if out.Handle == "" {
		return "", fmt.Errorf("begin encoder job: agent returned empty handle")
	}
	c.log.Debug("encoder job started", slog.String("timeline_id", timelineID), slog.String("handle", out.Handle))
	return Handle(out.Handle), nil
}

// Reconfigure implements Controller.Reconfigure.
func (c *Client) Reconfigure(ctx context.Context, h Handle, destinationIDs []string) error {
	if err := c.do(ctx, http.MethodPut, jobPath(h)+"/outputs", outputsRequest{DestinationIDs: destinationIDs}, nil); err != nil {
		return fmt.Errorf("reconfigure encoder job %s: %w", h, err)
	}
	return nil
}

// End implements Controller.End. Ending an unknown job succeeds.
func (c *Client) End(ctx context.Context, h Handle) error {
	err := c.do(ctx, http.MethodDelete, jobPath(h), nil, nil)
	if err != nil && err != ErrUnknownJob {
		return fmt.Errorf("end encoder job %s: %w", h, err)
	}
	return nil
}

// AwaitStopped implements Controller.AwaitStopped by polling the job state.
func (c *Client) AwaitStopped(ctx context.Context, h Handle) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var st jobStatus
		err := c.do(ctx, http.MethodGet, jobPath(h), nil, &st)
		switch {
		case err == ErrUnknownJob:
			return nil
		case err == nil && st.State == StateStopped:
			return nil
		case err != nil && ctx.Err() == nil:
			c.log.Debug("encoder status poll failed", slog.String("handle", string(h)), slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func jobPath(h Handle) string {
	return "/jobs/" + url.PathEscape(string(h))
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUnknownJob
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("agent responded %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode agent response: %w", err)
		}
	}
	return nil
}
