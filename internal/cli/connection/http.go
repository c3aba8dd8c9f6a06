package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/infra/buildinfo"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/logger"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/metric"
)

// DefaultTimeout bounds every host request.
const DefaultTimeout = 30 * time.Second

// HeaderRequestID carries the per-request ULID.
const HeaderRequestID = "X-Request-ID"

// maxErrorBody caps how much of a failed response is kept for messages.
const maxErrorBody = 4 << 10

// HTTPClientOptions configures an HTTPClient.
type HTTPClientOptions struct {
	Timeout   time.Duration
	TLSConfig *tls.Config
	UserAgent string
	Metrics   *metric.Registry
	Logger    logger.Logger
}

// HTTPClient is the transport shared by a host session. It keeps a cookie
// jar and a set of headers added to every request.
type HTTPClient struct {
	client    *http.Client
	jar       *cookiejar.Jar
	headers   http.Header
	userAgent string
	metrics   *metric.Registry
	log       logger.Logger
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(opts HTTPClientOptions) (*HTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.TLSConfig != nil {
		transport.TLSClientConfig = opts.TLSConfig
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = buildinfo.UserAgent()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: transport,
		},
		jar:       jar,
		headers:   make(http.Header),
		userAgent: ua,
		metrics:   opts.Metrics,
		log:       log,
	}, nil
}

// SetHeader sets a header sent with every subsequent request.
func (c *HTTPClient) SetHeader(key, value string) {
	c.headers.Set(key, value)
}

// DelHeader removes a persistent header.
func (c *HTTPClient) DelHeader(key string) {
	c.headers.Del(key)
}

// Header returns a persistent header value.
func (c *HTTPClient) Header(key string) string {
	return c.headers.Get(key)
}

// Cookies returns the cookies the jar would send to rawURL.
func (c *HTTPClient) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return c.jar.Cookies(u)
}

// SetCookies stores cookies for rawURL.
func (c *HTTPClient) SetCookies(rawURL string, cookies []*http.Cookie) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	c.jar.SetCookies(u, cookies)
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

// PostJSON performs a POST request with a JSON body.
func (c *HTTPClient) PostJSON(ctx context.Context, rawURL string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

// PostForm performs a POST request with a URL-encoded form body.
func (c *HTTPClient) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// do adds common headers, sends req, and records the outcome. Transport
// failures are returned as ErrTransport.
func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	id := ulid.Make().String()
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, id)

	route := req.URL.Path
	ctx := logger.WithLogger(logger.WithRequestID(req.Context(), id), c.log)
	log := logger.L(ctx).With("method", req.Method, "url", req.URL.Redacted())

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(route, metric.OutcomeTransport, elapsed)
		log.Debug("host request failed", "error", err, "elapsed", elapsed)
		return nil, domain.ErrTransport.WithDetails(fmt.Sprintf("%s %s", req.Method, req.URL.Redacted())).WithCause(err)
	}

	outcome := metric.OutcomeOK
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = metric.OutcomeTransport
	}
	c.metrics.ObserveRequest(route, outcome, elapsed)
	log.Debug("host request", "status", resp.StatusCode, "elapsed", elapsed)
	return resp, nil
}

// ParseResponse parses a JSON response body into the target struct and
// closes the body. A non-2xx status is ErrTransport; a body that is not the
// expected JSON is ErrProtocol.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		details := fmt.Sprintf("%s %s: status %d", resp.Request.Method, resp.Request.URL.Redacted(), resp.StatusCode)
		if msg := errorMessage(body); msg != "" {
			details += ": " + msg
		}
		return domain.ErrTransport.WithDetails(details)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return domain.ErrProtocol.WithDetails(fmt.Sprintf("parse %s response", resp.Request.URL.Path)).WithCause(err)
		}
	}

	return nil
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(body []byte) string {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		return errResp.Error
	}
	return ""
}
