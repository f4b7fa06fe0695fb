package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/whookdev/composer/internal/metrics"
	"github.com/whookdev/composer/internal/models"
)

const (
	DefaultTimeout = 60000 * time.Millisecond

	UserAgent = "composer/1.0"
)

// ErrRequestTimeout matches any *TimeoutError with errors.Is.
var ErrRequestTimeout = errors.New("request timeout")

// ErrUnexpected is returned for every failure other than a timeout where no
// HTTP response is available. The underlying cause is logged, not returned.
var ErrUnexpected = errors.New("unexpected error occurred")

// TimeoutError carries the diagnostic of a request that got no reply within
// the configured timeout.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	return e.Message
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrRequestTimeout
}

// Result is the outcome of a call that produced an HTTP response, whatever
// its status code.
type Result struct {
	Response       *models.Response
	// RequestHeaders includes Host and a non-zero Content-Length. Headers
	// the http.Transport adds on its own, such as Accept-Encoding, are not
	// listed.
	RequestHeaders map[string]string
}

// Client executes wire requests. It performs a single call per Send and
// never retries.
type Client struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(options ...Option) *Client {
	c := &Client{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	rt := http.DefaultTransport

	for _, option := range options {
		switch option.Ident() {
		case identTimeout{}:
			c.timeout = option.Value().(time.Duration)
		case identTransport{}:
			rt = option.Value().(http.RoundTripper)
		case identLogger{}:
			c.logger = option.Value().(*slog.Logger)
		case identMetrics{}:
			c.metrics = option.Value().(*metrics.Metrics)
		}
	}

	c.logger = c.logger.With("component", "transport")
	c.client = &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
	}

	return c
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) Send(ctx context.Context, opts *models.RequestOptions) (*Result, error) {
	if c.metrics != nil {
		c.metrics.RequestsInFlight.WithLabelValues(opts.Method).Inc()
		defer c.metrics.RequestsInFlight.WithLabelValues(opts.Method).Dec()
	}

	res, err := c.send(ctx, opts)
	c.observe(opts.Method, res, err)
	return res, err
}

func (c *Client) send(ctx context.Context, opts *models.RequestOptions) (*Result, error) {
	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, body)
	if err != nil {
		c.logger.Error("failed to build request", "url", opts.URL, "error", err)
		return nil, ErrUnexpected
	}

	for _, h := range opts.Headers {
		req.Header.Add(h.Name, h.Value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	c.logger.Debug("sending request", "method", req.Method, "url", opts.URL)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classify(opts, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(opts, fmt.Errorf("reading response body: %w", err))
	}

	return &Result{
		Response: &models.Response{
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Headers:    flatten(resp.Header),
			Body:       string(raw),
		},
		RequestHeaders: sentHeaders(req),
	}, nil
}

func (c *Client) classify(opts *models.RequestOptions, err error) error {
	if isTimeout(err) {
		c.logger.Warn("request timed out", "url", opts.URL, "timeout", c.timeout, "error", err)
		return &TimeoutError{Message: err.Error()}
	}

	c.logger.Error("request failed", "url", opts.URL, "error", err)
	return ErrUnexpected
}

func (c *Client) observe(method string, res *Result, err error) {
	if c.metrics == nil {
		return
	}

	outcome := "response"
	switch {
	case errors.Is(err, ErrRequestTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "unexpected"
	default:
		c.metrics.ResponsesTotal.WithLabelValues(metrics.StatusClass(res.Response.Status)).Inc()
	}
	c.metrics.RequestsTotal.WithLabelValues(method, outcome).Inc()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func statusText(resp *http.Response) string {
	if text, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func sentHeaders(req *http.Request) map[string]string {
	out := flatten(req.Header)

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	out["Host"] = host
	if req.ContentLength > 0 {
		out["Content-Length"] = strconv.FormatInt(req.ContentLength, 10)
	}
	return out
}

// flatten joins repeated header values the way they would appear on the wire.
func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
