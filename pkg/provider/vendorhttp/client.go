// Package vendorhttp is the HTTP client shared by vendor adapters. It applies
// base URL normalization, bearer auth, outbound pacing, tracing and metrics,
// and maps non-2xx responses to typed upstream errors.
package vendorhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/observability"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
)

// maxBodyBytes bounds how much of a vendor response is buffered.
const maxBodyBytes = 32 << 20

// Client performs requests against one vendor endpoint with one credential.
// It is cheap to construct per call; the underlying http.Client and limiter
// are shared.
type Client struct {
	vendor     string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration

	// AuthHeader sets the credential on outgoing requests. Defaults to a
	// bearer Authorization header.
	AuthHeader func(h http.Header, apiKey string)

	// Header is added to every request.
	Header http.Header
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Timeout    time.Duration
}

// New creates a Client. baseURL is normalized with NormalizeBaseURL(baseURL, "").
func New(vendor, baseURL, apiKey string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		vendor:     vendor,
		baseURL:    NormalizeBaseURL(baseURL, ""),
		apiKey:     apiKey,
		httpClient: hc,
		limiter:    opts.Limiter,
		timeout:    timeout,
		AuthHeader: BearerAuth,
	}
}

// BearerAuth sets "Authorization: Bearer <key>" when key is non-empty.
func BearerAuth(h http.Header, apiKey string) {
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
}

// NewLimiter builds a shared outbound limiter; nil when rps <= 0.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NormalizeBaseURL trims trailing slashes and appends segment unless the URL
// already ends with it (e.g. "/v1" is not doubled).
func NormalizeBaseURL(baseURL, segment string) string {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if segment == "" || u == "" {
		return u
	}
	seg := "/" + strings.Trim(segment, "/")
	if strings.HasSuffix(u, seg) {
		return u
	}
	return u + seg
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Vendor returns the vendor name used in errors and metrics.
func (c *Client) Vendor() string { return c.vendor }

// URL joins path onto the base URL. Absolute URLs are returned unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Response is a fully read 2xx vendor response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// IsEventStream reports whether the body is server-sent events.
func (r *Response) IsEventStream() bool {
	return strings.HasPrefix(r.ContentType, "text/event-stream") ||
		bytes.HasPrefix(bytes.TrimSpace(r.Body), []byte("data:"))
}

// Do sends a request with an optional JSON body and returns the read response.
// Non-2xx statuses become UpstreamError; transport failures become
// UpstreamError with status 0; context cancellation is returned unchanged.
func (c *Client) Do(ctx context.Context, method, path string, body any, header http.Header) (*Response, error) {
	if c.baseURL == "" && !strings.HasPrefix(path, "http") {
		return nil, api.NewCredentialMissingError(c.vendor, "no base URL configured for "+c.vendor)
	}

	ctx, span := observability.StartSpan(ctx, "vendor."+c.vendor,
		attribute.String("http.method", method),
		attribute.String("vendor.path", path),
	)
	resp, err := c.do(ctx, method, path, body, header)
	observability.EndSpan(span, err)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, api.NewTooManyRequestsError(fmt.Sprintf("%s: outbound rate limit: %v", c.vendor, err))
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
		}
		reader = bytes.NewReader(data)
		debug.Trace(debug.Vendor, "request body", "vendor", c.vendor, "body", string(data))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.URL(path)
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	for k, vs := range c.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Set(k, v)
		}
	}
	if c.AuthHeader != nil {
		c.AuthHeader(httpReq.Header, c.apiKey)
	}

	debug.Log(debug.Vendor, "request", "vendor", c.vendor, "method", method, "url", url)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		observability.VendorRequestDuration.WithLabelValues(c.vendor, "error").Observe(time.Since(start).Seconds())
		if parent := context.Cause(ctx); errors.Is(parent, context.Canceled) {
			return nil, parent
		}
		return nil, MapNetworkError(c.vendor, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	observability.VendorRequestDuration.WithLabelValues(c.vendor, strconv.Itoa(httpResp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, MapNetworkError(c.vendor, err)
	}

	debug.Log(debug.Vendor, "response", "vendor", c.vendor, "status", httpResp.StatusCode, "bytes", len(data))
	debug.Trace(debug.Vendor, "response body", "vendor", c.vendor, "body", debug.Truncate(string(data), 8192))

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(c.vendor, httpResp.StatusCode, data)
	}

	return &Response{
		Status:      httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// DoJSON sends a request and decodes a JSON response into out. A 2xx body
// that is not valid JSON fails with MalformedUpstreamResponse.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.Do(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	return DecodeJSON(c.vendor, resp.Body, out)
}

// DecodeJSON unmarshals data, mapping failures to MalformedUpstreamResponse.
func DecodeJSON(vendor string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return api.NewMalformedUpstreamError(vendor,
			fmt.Sprintf("unparsable response: %v (body: %s)", err, debug.Truncate(string(data), 200)))
	}
	return nil
}

// Shared holds the per-vendor pieces reused by every call: the http.Client,
// the outbound limiter and the timeouts.
type Shared struct {
	vendor     string
	settings   provider.HTTPSettings
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewShared builds the per-vendor transport from settings.
func NewShared(vendor string, settings provider.HTTPSettings) *Shared {
	return &Shared{
		vendor:     vendor,
		settings:   settings,
		httpClient: &http.Client{},
		limiter:    NewLimiter(settings.RatePerSecond, settings.Burst),
	}
}

// Settings returns the effective settings.
func (s *Shared) Settings() provider.HTTPSettings { return s.settings }

// Client returns a Client for one call using pc's credential. An empty
// pc.BaseURL falls back to the configured default. segment is appended to the
// base URL unless already present. long selects the long timeout.
func (s *Shared) Client(pc *provider.Context, segment string, long bool) *Client {
	base, key := s.settings.DefaultBaseURL, ""
	if pc != nil {
		if pc.BaseURL != "" {
			base = pc.BaseURL
		}
		key = pc.APIKey
	}
	timeout := s.settings.Timeout
	if long {
		timeout = s.settings.LongTimeout
	}
	return New(s.vendor, NormalizeBaseURL(base, segment), key, Options{
		HTTPClient: s.httpClient,
		Limiter:    s.limiter,
		Timeout:    timeout,
	})
}
