package e2etest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myrjola/keeper/internal/errors"
)

// Client talks to the JSON API of the Keeper server.
type Client struct {
	client *http.Client
	url    string
}

func NewClient(url string) *Client {
	return &Client{
		client: &http.Client{}, //nolint:exhaustruct // requests carry their own context
		url:    url,
	}
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	for {
		resp, err := c.Do(ctx, http.MethodGet, urlPath, nil)
		if err == nil {
			status := resp.StatusCode
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
			if status == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Do sends a request with an optional JSON body.
func (c *Client) Do(ctx context.Context, method, urlPath string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request body")
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, reader)
	if err != nil {
		return nil, errors.Wrap(err, "create request", slog.String("path", urlPath))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request", slog.String("path", urlPath))
	}
	return resp, nil
}

// JSON sends a request and decodes the JSON response into dst when dst is not nil. It returns the status code.
func (c *Client) JSON(ctx context.Context, method, urlPath string, body, dst any) (int, error) {
	resp, err := c.Do(ctx, method, urlPath, body)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if dst == nil || resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err = json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp.StatusCode, errors.Wrap(err, "decode response", slog.String("path", urlPath))
	}
	return resp.StatusCode, nil
}

// Event is a server-sent event.
type Event struct {
	Name string
	Data string
}

// Events reads the server-sent events of urlPath until the server ends the stream.
func (c *Client) Events(ctx context.Context, urlPath string) ([]Event, error) {
	resp, err := c.Do(ctx, http.MethodGet, urlPath, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected status code", slog.Int("status", resp.StatusCode))
	}

	var (
		events  []Event
		current Event
		data    []string
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20) //nolint:mnd // sessions can be long
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if current.Name != "" || len(data) > 0 {
				current.Data = strings.Join(data, "\n")
				events = append(events, current)
			}
			current, data = Event{Name: "", Data: ""}, nil
		case strings.HasPrefix(line, "event:"):
			current.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err = scanner.Err(); err != nil {
		return events, errors.Wrap(err, "read events", slog.String("path", urlPath))
	}
	return events, nil
}
