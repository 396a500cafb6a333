package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Colors for terminal output
const (
	Red    = "\033[0;31m"
	Green  = "\033[0;32m"
	Yellow = "\033[1;33m"
	Blue   = "\033[0;34m"
	Cyan   = "\033[0;36m"
	Reset  = "\033[0m"
)

// Client handles API requests
type Client struct {
	Config     *Config
	HTTPClient *http.Client
	Logger     *slog.Logger
	Registry   *prometheus.Registry

	limiter  *rate.Limiter
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewClient creates a new API client
func NewClient(config *Config) *Client {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Total number of backend requests.",
	}, []string{"method", "endpoint", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "billing",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Backend request latency in seconds.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "endpoint"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(requests, latency)

	limit := rate.Limit(config.RateLimit)
	if config.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &Client{
		Config: config,
		HTTPClient: &http.Client{
			Timeout: config.Timeout,
		},
		Logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Registry: registry,
		limiter:  rate.NewLimiter(limit, max(config.RateBurst, 1)),
		requests: requests,
		latency:  latency,
	}
}

// endpointLabel collapses numeric path segments so metric labels stay bounded.
func endpointLabel(endpoint string) string {
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// do sends one request and returns the raw response body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	fullURL := c.Config.APIURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("request cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	label := endpointLabel(endpoint)
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	elapsed := time.Since(start)
	c.latency.WithLabelValues(method, label).Observe(elapsed.Seconds())
	if err != nil {
		c.requests.WithLabelValues(method, label, "error").Inc()
		c.Logger.Error("request failed",
			"request_id", requestID, "method", method, "path", endpoint,
			"duration_ms", elapsed.Milliseconds(), "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.requests.WithLabelValues(method, label, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(respBody)}
		var payload struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			apiErr.Detail = payload.Detail
		}
		c.Logger.Warn("request rejected",
			"request_id", requestID, "method", method, "path", endpoint,
			"status", resp.StatusCode, "duration_ms", elapsed.Milliseconds(), "detail", apiErr.Detail)
		return nil, apiErr
	}

	c.Logger.Debug("request done",
		"request_id", requestID, "method", method, "path", endpoint,
		"status", resp.StatusCode, "duration_ms", elapsed.Milliseconds())
	return respBody, nil
}

// Request makes a JSON API request and decodes the reply into out (if non-nil).
func (c *Client) Request(ctx context.Context, method, endpoint string, query url.Values, body, out interface{}) error {
	respBody, err := c.do(ctx, method, endpoint, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %s", string(respBody))
	}
	return nil
}

// RequestRaw makes a request and returns the undecoded body, used for binary documents.
func (c *Client) RequestRaw(ctx context.Context, method, endpoint string) ([]byte, error) {
	return c.do(ctx, method, endpoint, nil, nil)
}

// ServeMetrics exposes the client's metrics registry on addr until ctx is done.
func (c *Client) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}

// CmdPing tests the connection
func (c *Client) CmdPing() error {
	fmt.Printf("%sTesting connection to %s...%s\n", Blue, c.Config.APIURL, Reset)

	start := time.Now()
	var root map[string]interface{}
	if err := c.Request(context.Background(), http.MethodGet, "/", nil, nil, &root); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	fmt.Printf("%s✓ Connection successful%s (%s)\n", Green, Reset, time.Since(start).Round(time.Millisecond))
	if len(root) > 0 {
		fmt.Printf("  Resources:")
		for _, name := range []string{"medicines", "customers", "invoices"} {
			if _, ok := root[name]; ok {
				fmt.Printf(" %s%s%s", Yellow, name, Reset)
			}
		}
		fmt.Println()
	}
	return nil
}

// CmdConfig shows current configuration
func (c *Client) CmdConfig() error {
	fmt.Printf("%sCurrent configuration:%s\n", Blue, Reset)
	if c.Config.Path != "" {
		fmt.Printf("  Config file: %s\n", c.Config.Path)
	} else {
		fmt.Printf("  Config file: %snone%s (defaults + environment)\n", Yellow, Reset)
	}
	fmt.Printf("  API URL: %s\n", c.Config.APIURL)
	fmt.Printf("  Brand: %s\n", c.Config.Brand)
	fmt.Printf("  Currency: %s\n", c.Config.Currency)
	if c.Config.Timeout > 0 {
		fmt.Printf("  Timeout: %s\n", c.Config.Timeout)
	} else {
		fmt.Printf("  Timeout: %snone%s\n", Yellow, Reset)
	}
	fmt.Printf("  Rate limit: %.0f req/s (burst %d)\n", c.Config.RateLimit, c.Config.RateBurst)
	fmt.Printf("  Download dir: %s\n", c.Config.DownloadDir)
	if c.Config.LogFile != "" {
		fmt.Printf("  Log file: %s (%s)\n", c.Config.LogFile, c.Config.LogLevel)
	}
	if c.Config.MetricsAddr != "" {
		fmt.Printf("  Metrics: http://%s/metrics\n", c.Config.MetricsAddr)
	}
	return nil
}
