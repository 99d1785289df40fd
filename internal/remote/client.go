package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pursuit-rl-go/internal/engine"
)

const maxResponseBody = 64 * 1024

// ClientOptions tune the remote calls.
type ClientOptions struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 50 * time.Millisecond
	}
	return o
}

// Client talks to a maze Server. It implements engine.Mover and engine.Resetter.
// Every answer is checked against the local copy of the maze, so a misbehaving
// service surfaces as a TransportError instead of teleporting an agent.
type Client struct {
	baseURL string
	maze    *engine.GridMaze
	http    *http.Client
	opts    ClientOptions
	logger  zerolog.Logger
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, maze *engine.GridMaze, opts ClientOptions, logger zerolog.Logger) *Client {
	opts = opts.withDefaults()
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		maze:    maze,
		http:    &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		logger:  logger,
	}
}

// Move implements engine.Mover.
func (c *Client) Move(ctx context.Context, role engine.Role, from engine.Position, d engine.Direction) (engine.Position, error) {
	dx, dy := d.Delta()
	body, err := json.Marshal(MoveRequest{Role: role, X: from.X, Y: from.Y, DX: dx, DY: dy})
	if err != nil {
		return from, &engine.TransportError{Op: "move", Err: err}
	}
	var resp PositionResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/move", body, &resp); err != nil {
		return from, &engine.TransportError{Op: "move", Err: err}
	}
	next, err := c.position("position", resp.X, resp.Y)
	if err != nil {
		return from, &engine.TransportError{Op: "move", Err: err}
	}
	if engine.ManhattanDistance(from, next) > 1 {
		return from, &engine.TransportError{Op: "move", Err: fmt.Errorf("answer %s is not adjacent to %s", next, from)}
	}
	return next, nil
}

// Reset implements engine.Resetter.
func (c *Client) Reset(ctx context.Context) (engine.Starts, error) {
	var resp struct {
		Police *PositionResponse `json:"police"`
		Thief  *PositionResponse `json:"thief"`
		Goal   *PositionResponse `json:"goal"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/reset", nil, &resp); err != nil {
		return engine.Starts{}, &engine.TransportError{Op: "reset", Err: err}
	}
	var starts engine.Starts
	fields := []struct {
		name string
		in   *PositionResponse
		out  *engine.Position
	}{
		{"police", resp.Police, &starts.Police},
		{"thief", resp.Thief, &starts.Thief},
		{"goal", resp.Goal, &starts.Goal},
	}
	for _, f := range fields {
		if f.in == nil {
			return engine.Starts{}, &engine.TransportError{Op: "reset", Err: fmt.Errorf("missing %s", f.name)}
		}
		p, err := c.position(f.name, f.in.X, f.in.Y)
		if err != nil {
			return engine.Starts{}, &engine.TransportError{Op: "reset", Err: err}
		}
		*f.out = p
	}
	return starts, nil
}

func (c *Client) position(name string, x, y *int) (engine.Position, error) {
	if x == nil || y == nil {
		return engine.Position{}, fmt.Errorf("%s is missing a coordinate", name)
	}
	p := engine.Position{X: *x, Y: *y}
	if c.maze != nil && !c.maze.IsOpen(p) {
		return engine.Position{}, fmt.Errorf("%s %s is not an open cell", name, p)
	}
	return p, nil
}

// statusError is a non-2xx answer.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return !errors.As(err, &syntax) && !errors.As(err, &typ)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var err error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn().Err(err).Str("path", path).Int("attempt", attempt).Msg("retrying maze service call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.Backoff * time.Duration(attempt)):
			}
		}
		err = c.once(ctx, method, path, body, out)
		if err == nil || ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &statusError{code: res.StatusCode, body: strings.TrimSpace(string(data))}
	}
	return json.Unmarshal(data, out)
}
