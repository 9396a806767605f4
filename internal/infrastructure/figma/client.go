package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ncastellanos/figma-qa/internal/infrastructure/resilience"
)

// Client talks to the Figma REST API. Calls share a rate limiter so the
// worker stays under the per-token request budget, and every request goes
// through the resilience executor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	exec       *resilience.Executor

	nodesPerCall      int
	imagesPerCall     int
	renderConcurrency int
}

type Options struct {
	BaseURL           string
	RequestsPerSecond float64
	NodesPerCall      int
	ImagesPerCall     int
	RenderConcurrency int
}

func New(opts Options, exec *resilience.Executor) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.figma.com/v1"
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	nodesPerCall := opts.NodesPerCall
	if nodesPerCall <= 0 {
		nodesPerCall = 35
	}
	imagesPerCall := opts.ImagesPerCall
	if imagesPerCall <= 0 {
		imagesPerCall = 40
	}
	renderConcurrency := opts.RenderConcurrency
	if renderConcurrency <= 0 {
		renderConcurrency = 3
	}

	return &Client{
		baseURL:           baseURL,
		httpClient:        &http.Client{Timeout: 30 * time.Second},
		limiter:           rate.NewLimiter(rate.Limit(rps), 1),
		exec:              exec,
		nodesPerCall:      nodesPerCall,
		imagesPerCall:     imagesPerCall,
		renderConcurrency: renderConcurrency,
	}
}

func (c *Client) getJSON(ctx context.Context, token, path string, params url.Values, out any, operation string) error {
	call := func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.doGet(ctx, token, path, params, out, operation)
	}

	if c.exec == nil {
		return call(ctx)
	}
	return c.exec.Execute(ctx, "figma_"+operation, call, classifyFigmaError)
}

func (c *Client) doGet(ctx context.Context, token, path string, params url.Values, out any, operation string) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("figma %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if remaining := resp.Header.Get("X-Ratelimit-Remaining"); remaining != "" {
		slog.Debug("figma_rate_limit", "operation", operation, "remaining", remaining)
	}

	if resp.StatusCode >= 300 {
		return newHTTPStatusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func chunked(ids []string, size int) [][]string {
	if size <= 0 {
		return [][]string{ids}
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
