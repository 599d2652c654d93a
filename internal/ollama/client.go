// Package ollama is a minimal client for a locally hosted Ollama inference
// service. It exposes a single-shot generate call with retries and a bounded
// model warmup check; it never pulls models and never blocks past its
// configured deadlines.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Error taxonomy for the inference boundary. Callers match with errors.Is.
var (
	// ErrServiceUnavailable means the host could not be reached at all.
	ErrServiceUnavailable = errors.New("ollama service unavailable")
	// ErrModelNotLoaded means the named model is absent or did not warm up
	// within the bounded wait. Never retried by the client.
	ErrModelNotLoaded = errors.New("ollama model not loaded")
	// ErrTimeout means no response arrived within the configured deadline.
	ErrTimeout = errors.New("ollama request timed out")
)

const warmupPollInterval = 3 * time.Second

// Client talks to one Ollama host. It is safe for concurrent use; a process
// level rate limiter keeps parallel test workers from stampeding a single
// local model.
type Client struct {
	host        string
	model       string
	temperature float64
	timeout     time.Duration
	maxRetries  int
	backoff     time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	log         *zap.Logger
}

// Options configures a Client. Zero values fall back to conservative defaults.
type Options struct {
	Host        string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
	Logger      *zap.Logger
	// Limiter throttles requests to the local model. Defaults to one request
	// per second with burst 1.
	Limiter *rate.Limiter
}

// New creates a Client. It performs no network I/O.
func New(opts Options) *Client {
	if opts.Host == "" {
		opts.Host = "http://localhost:11434"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	return &Client{
		host:        strings.TrimRight(opts.Host, "/"),
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		maxRetries:  opts.MaxRetries,
		backoff:     opts.Backoff,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		limiter:     opts.Limiter,
		log:         opts.Logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Host returns the configured host address.
func (c *Client) Host() string { return c.host }

// Generate sends a prompt (plus optional screenshot) and returns the raw
// response text. Transient connection failures are retried with linear
// backoff; a missing model surfaces immediately as ErrModelNotLoaded.
func (c *Client) Generate(ctx context.Context, prompt, system string, screenshotPath string) (string, error) {
	req := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: system,
		Stream: false,
		Options: &generateOptions{
			Temperature: c.temperature,
			NumCtx:      8192,
		},
	}

	if screenshotPath != "" {
		if img, err := os.ReadFile(screenshotPath); err == nil {
			req.Images = []string{base64.StdEncoding.EncodeToString(img)}
		} else {
			c.log.Warn("screenshot unreadable, sending text-only prompt",
				zap.String("path", screenshotPath), zap.Error(err))
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.backoff
			c.log.Debug("retrying ollama request",
				zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
		}

		text, err := c.generateOnce(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		// ErrModelNotLoaded and deadline expiry are not transient.
		if errors.Is(err, ErrModelNotLoaded) || errors.Is(err, ErrTimeout) {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) generateOnce(ctx context.Context, req generateRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: model %q", ErrModelNotLoaded, req.Model)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrServiceUnavailable, resp.StatusCode, string(respBody))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if genResp.Error != "" {
		if strings.Contains(genResp.Error, "not found") {
			return "", fmt.Errorf("%w: %s", ErrModelNotLoaded, genResp.Error)
		}
		return "", fmt.Errorf("%w: %s", ErrServiceUnavailable, genResp.Error)
	}

	return genResp.Response, nil
}

// EnsureReady verifies the service is reachable and the model answers a tiny
// warmup prompt within the given wait. It does not attempt to pull a missing
// model; that is an operator action.
func (c *Client) EnsureReady(ctx context.Context, maxWait time.Duration) error {
	tagsCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tags, err := c.listTags(tagsCtx)
	if err != nil {
		return err
	}

	found := false
	for _, m := range tags.Models {
		if strings.Contains(m.Name, c.model) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: model %q not present on %s", ErrModelNotLoaded, c.model, c.host)
	}

	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		warmCtx, cancelWarm := context.WithTimeout(ctx, 30*time.Second)
		text, err := c.generateOnce(warmCtx, generateRequest{
			Model:   c.model,
			Prompt:  "Hello",
			Stream:  false,
			Options: &generateOptions{Temperature: 0, NumPredict: 5},
		})
		cancelWarm()
		if err == nil && strings.TrimSpace(text) != "" {
			return nil
		}
		if errors.Is(err, ErrModelNotLoaded) {
			return err
		}
		c.log.Debug("waiting for model warmup", zap.Error(err))

		select {
		case <-time.After(warmupPollInterval):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
	}
	return fmt.Errorf("%w: model %q did not warm up within %s", ErrModelNotLoaded, c.model, maxWait)
}

func (c *Client) listTags(ctx context.Context) (*tagsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from /api/tags", ErrServiceUnavailable, resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return &tags, nil
}

// classifyTransportError maps transport failures onto the client's error
// taxonomy: deadline expiry is ErrTimeout, anything else unreachable-host.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}
