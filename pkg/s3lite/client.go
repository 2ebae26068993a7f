package s3lite

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skylatch/s3lite/pkg/sigv4"
	"github.com/skylatch/s3lite/pkg/xmlite"
)

// Doer is the transport capability: send one HTTP request, receive the
// response. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client executes logical operations against one S3-compatible endpoint.
//
// Configuration fields are plain in-memory values with no locking. A
// setter call racing with an in-flight request is a documented hazard:
// the request signs with whichever snapshot it captured, pre- or
// post-update depending on timing.
type Client struct {
	cfg    Config
	http   Doer
	crypto sigv4.Crypto
	log    Logger
	now    func() time.Time
	dec    *xmlite.Decoder
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithCrypto substitutes the hashing capability passed to the signer.
func WithCrypto(cr sigv4.Crypto) Option {
	return func(c *Client) { c.crypto = cr }
}

// WithLogger attaches a structured logger. Details are sanitized before
// they reach the sink.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock substitutes the signing clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client for the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		http:   http.DefaultClient,
		crypto: sigv4.StdCrypto(),
		log:    NopLogger{},
		now:    time.Now,
		dec:    xmlite.NewDecoder("Contents", "CommonPrefixes", "Upload", "Part"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns a snapshot of the current configuration.
func (c *Client) Config() Config { return c.cfg }

// SetConfig replaces the whole configuration.
func (c *Client) SetConfig(cfg Config) { c.cfg = cfg }

// Endpoint returns the configured endpoint origin.
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// SetEndpoint replaces the endpoint origin.
func (c *Client) SetEndpoint(endpoint string) { c.cfg.Endpoint = endpoint }

// Region returns the configured signing region.
func (c *Client) Region() string { return c.cfg.Region }

// SetRegion replaces the signing region.
func (c *Client) SetRegion(region string) { c.cfg.Region = region }

// MaxBodyBytes returns the request-body ceiling (zero = unlimited).
func (c *Client) MaxBodyBytes() int64 { return c.cfg.MaxBodyBytes }

// SetMaxBodyBytes replaces the request-body ceiling.
func (c *Client) SetMaxBodyBytes(n int64) { c.cfg.MaxBodyBytes = n }

// AbortTimeout returns the per-exchange timeout (zero = none).
func (c *Client) AbortTimeout() time.Duration { return c.cfg.AbortTimeout }

// SetAbortTimeout replaces the per-exchange timeout.
func (c *Client) SetAbortTimeout(d time.Duration) { c.cfg.AbortTimeout = d }

// call describes one logical operation for the dispatcher.
type call struct {
	op      string
	method  string
	key     string            // empty for bucket-level operations
	options map[string]string // free-form: query params mixed with conditional/range headers
	headers map[string]string
	body    []byte

	// tolerate lists non-2xx statuses that are ordinary outcomes for
	// this call (e.g. 404 on an existence probe). Tolerated responses
	// come back unmodified with a nil error for caller interpretation.
	tolerate []int

	// stream leaves a 2xx response body unread for the caller.
	stream bool
}

// Response is the raw outcome of a call.
type Response struct {
	StatusCode int
	Header     http.Header

	// Body holds the full response body, except for streamed calls.
	Body []byte

	// Stream is set instead of Body for streamed 2xx responses. The
	// caller owns it and must close it.
	Stream io.ReadCloser
}

// headerOptions are option-map keys lifted out of the free-form options
// and sent as real request headers, matched case-insensitively.
var headerOptions = map[string]struct{}{
	"if-match":            {},
	"if-none-match":       {},
	"if-modified-since":   {},
	"if-unmodified-since": {},
	"range":               {},
	"content-type":        {},
}

// splitOptions partitions a free-form options map into query parameters
// and request headers.
func splitOptions(options map[string]string) (query, headers map[string]string) {
	query = make(map[string]string, len(options))
	headers = make(map[string]string)
	for k, v := range options {
		if _, ok := headerOptions[strings.ToLower(k)]; ok {
			headers[strings.ToLower(k)] = v
			continue
		}
		query[k] = v
	}
	return query, headers
}

// do executes one call end to end: split options, sign, send, classify.
func (c *Client) do(ctx context.Context, cl call) (*Response, error) {
	cfg := c.cfg // configuration snapshot for this exchange

	endpoint, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes > 0 && int64(len(cl.body)) > cfg.MaxBodyBytes {
		return nil, &ValidationError{
			Field:   "Body",
			Message: fmt.Sprintf("body size %d exceeds ceiling %d", len(cl.body), cfg.MaxBodyBytes),
		}
	}

	query, condHeaders := splitOptions(cl.options)
	headers := make(map[string]string, len(cl.headers)+len(condHeaders))
	for k, v := range cl.headers {
		headers[k] = v
	}
	for k, v := range condHeaders {
		headers[k] = v
	}

	path := strings.TrimSuffix(endpoint.EscapedPath(), "/")
	if cl.key != "" {
		path += "/" + sigv4.URIEncode(cl.key, false)
	}
	if path == "" {
		path = "/"
	}

	signer := sigv4.New(cfg.AccessKey, cfg.SecretKey, cfg.Region,
		sigv4.WithCrypto(c.crypto), sigv4.WithClock(c.now))
	signed := signer.Sign(sigv4.Request{
		Method:  cl.method,
		Host:    endpoint.Host,
		Path:    path,
		Query:   query,
		Headers: headers,
		Body:    cl.body,
	})

	reqURL := endpoint.Scheme + "://" + endpoint.Host + path
	if rawQuery := sigv4.CanonicalQuery(query); rawQuery != "" {
		reqURL += "?" + rawQuery
	}

	// For streamed calls the timeout bounds the header exchange only: a
	// body already being read must not be cut off mid-stream, so the
	// deadline is a stoppable timer rather than a context deadline.
	reqCtx := ctx
	cancel := context.CancelFunc(func() {})
	var abortTimer *time.Timer
	if cfg.AbortTimeout > 0 {
		if cl.stream {
			reqCtx, cancel = context.WithCancel(ctx)
			abortTimer = time.AfterFunc(cfg.AbortTimeout, cancel)
		} else {
			reqCtx, cancel = context.WithTimeout(ctx, cfg.AbortTimeout)
		}
	}

	var bodyReader io.Reader
	if len(cl.body) > 0 {
		bodyReader = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(reqCtx, cl.method, reqURL, bodyReader)
	if err != nil {
		cancel()
		return nil, &ValidationError{Field: "Request", Message: err.Error()}
	}
	req.ContentLength = int64(len(cl.body))
	for k, v := range signed {
		if strings.EqualFold(k, "host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		netErr := &NetworkError{Op: cl.op, Reason: classifyNetworkReason(err), Err: err}
		c.logCall(cl, cfg, 0, c.now().Sub(start), netErr)
		return nil, netErr
	}

	if cl.stream && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if abortTimer != nil {
			abortTimer.Stop()
		}
		c.logCall(cl, cfg, resp.StatusCode, c.now().Sub(start), nil)
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Stream:     &cancelReadCloser{rc: resp.Body, cancel: cancel},
		}, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	cancel()
	if readErr != nil {
		netErr := &NetworkError{Op: cl.op, Reason: classifyNetworkReason(readErr), Err: readErr}
		c.logCall(cl, cfg, resp.StatusCode, c.now().Sub(start), netErr)
		return nil, netErr
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logCall(cl, cfg, resp.StatusCode, c.now().Sub(start), nil)
		return out, nil
	}
	for _, tolerated := range cl.tolerate {
		if resp.StatusCode == tolerated {
			c.logCall(cl, cfg, resp.StatusCode, c.now().Sub(start), nil)
			return out, nil
		}
	}

	code, message := c.providerError(resp.Header, body)
	svcErr := &ServiceError{
		Op:         cl.op,
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    message,
		Body:       body,
	}
	c.logCall(cl, cfg, resp.StatusCode, c.now().Sub(start), svcErr)
	return nil, svcErr
}

// providerError extracts the provider error code and message from the
// response headers or XML body. HEAD responses carry no body, so the
// x-amz-error-* headers are the fallback.
func (c *Client) providerError(header http.Header, body []byte) (code, message string) {
	if len(body) > 0 {
		doc := asMap(c.dec.Decode(string(body)))
		if errNode := asMap(doc["Error"]); errNode != nil {
			return str(errNode, "Code"), str(errNode, "Message")
		}
	}
	return header.Get("x-amz-error-code"), header.Get("x-amz-error-message")
}

func (c *Client) logCall(cl call, cfg Config, status int, elapsed time.Duration, err error) {
	details := map[string]any{
		"op":         cl.op,
		"method":     cl.method,
		"key":        cl.key,
		"status":     status,
		"elapsed_ms": elapsed.Milliseconds(),
		"access_key": AccessKeyHint(cfg.AccessKey),
		"options":    cl.options,
	}
	sanitized := Sanitize(details).(map[string]any)
	if err != nil {
		sanitized["error"] = err.Error()
		c.log.Error("s3 call failed", sanitized)
		return
	}
	c.log.Info("s3 call", sanitized)
}

// cancelReadCloser releases the request's context when the caller
// finishes reading a streamed body.
type cancelReadCloser struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cancelReadCloser) Close() error {
	err := c.rc.Close()
	c.cancel()
	return err
}
