package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/warehouse-flow/pkg/errors"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
	"github.com/angelmondragon/warehouse-flow/pkg/metrics"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestID      = "X-Request-ID"

	defaultTimeout        = 10 * time.Second
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	maxResponseBytes      = 4 << 20
)

// TokenProvider returns the bearer token attached to every call.
type TokenProvider interface {
	Token() (string, error)
}

// Options configures a Client for one peer service.
type Options struct {
	Target         string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Tokens         TokenProvider
	Metrics        *metrics.DownstreamMetrics
	HTTPClient     *http.Client
	Logger         *logger.Logger
	RequestID      func(ctx context.Context) string
}

// Client performs JSON calls against a peer service and maps failures onto
// the shared error taxonomy.
type Client struct {
	target    string
	baseURL   string
	http      *http.Client
	tokens    TokenProvider
	metrics   *metrics.DownstreamMetrics
	logg      *logger.Logger
	requestID func(ctx context.Context) string

	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Request describes a single logical call. Retries reuse the same body and
// idempotency key.
type Request struct {
	Operation      string
	Method         string
	Path           string
	Body           any
	IdempotencyKey string
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *wireError      `json:"error"`
}

type wireError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func New(opts Options) (*Client, error) {
	target := strings.TrimSpace(opts.Target)
	if target == "" {
		return nil, fmt.Errorf("downstream target is required")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%s base url is required", target)
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("%s token provider is required", target)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	initial := opts.InitialBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	maxBackoff := opts.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	return &Client{
		target:         target,
		baseURL:        base,
		http:           httpClient,
		tokens:         opts.Tokens,
		metrics:        opts.Metrics,
		logg:           opts.Logger,
		requestID:      opts.RequestID,
		maxRetries:     opts.MaxRetries,
		initialBackoff: initial,
		maxBackoff:     maxBackoff,
	}, nil
}

// Target names the peer service this client talks to.
func (c *Client) Target() string {
	return c.target
}

// Do sends the request, retrying only unavailable outcomes, and decodes the
// success envelope's data into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var body []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "encode downstream request").
				WithDetail(errors.DetailService, c.target).
				WithDetail(errors.DetailOperation, req.Operation)
		}
		body = encoded
	}

	backoff := retry.NewExponential(c.initialBackoff)
	backoff = retry.WithCappedDuration(c.maxBackoff, backoff)
	backoff = retry.WithMaxRetries(c.maxRetries, backoff)

	start := time.Now()
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		callErr := c.once(ctx, req, body, out)
		if callErr != nil && errors.IsRetryable(callErr) {
			if c.logg != nil {
				logCtx := c.logg.WithFields(ctx, map[string]any{
					"target":    c.target,
					"operation": req.Operation,
					"attempt":   attempts,
				})
				c.logg.Warn(logCtx, "downstream call failed, retrying")
			}
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil && errors.As(err) == nil {
		// retry.Do surfaces the context error when cancelled between attempts.
		err = c.unavailable(req.Operation, err, "")
	}

	c.metrics.Observe(c.target, req.Operation, outcomeOf(err), time.Since(start))
	return err
}

func (c *Client) once(ctx context.Context, req Request, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, reader)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "build downstream request").
			WithDetail(errors.DetailService, c.target).
			WithDetail(errors.DetailOperation, req.Operation)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, req.IdempotencyKey)
	}
	if c.requestID != nil {
		if id := c.requestID(ctx); id != "" {
			httpReq.Header.Set(HeaderRequestID, id)
		}
	}
	token, err := c.tokens.Token()
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "mint service token").
			WithDetail(errors.DetailService, c.target).
			WithDetail(errors.DetailOperation, req.Operation)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return c.unavailable(req.Operation, err, "")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.unavailable(req.Operation, err, "")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return c.decodeSuccess(req.Operation, raw, out)
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		downstreamCode := ""
		if env.Error != nil {
			downstreamCode = env.Error.Code
		}
		return c.unavailable(req.Operation, fmt.Errorf("%s responded %d", c.target, resp.StatusCode), downstreamCode)
	}

	return c.rejected(req.Operation, resp.StatusCode, env.Error)
}

func (c *Client) decodeSuccess(operation string, raw []byte, out any) error {
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "decode downstream response").
			WithDetail(errors.DetailService, c.target).
			WithDetail(errors.DetailOperation, operation)
	}
	if len(env.Data) == 0 {
		return errors.New(errors.CodeDependency, "downstream response missing data").
			WithDetail(errors.DetailService, c.target).
			WithDetail(errors.DetailOperation, operation)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "decode downstream data").
			WithDetail(errors.DetailService, c.target).
			WithDetail(errors.DetailOperation, operation)
	}
	return nil
}

func (c *Client) unavailable(operation string, cause error, downstreamCode string) *errors.Error {
	err := errors.Wrap(errors.CodeDependency, cause, fmt.Sprintf("%s service unavailable", c.target)).
		WithDetail(errors.DetailService, c.target).
		WithDetail(errors.DetailOperation, operation)
	if downstreamCode != "" {
		err.WithDetail(errors.DetailDownstreamCode, downstreamCode)
	}
	return err
}

func (c *Client) rejected(operation string, status int, wire *wireError) *errors.Error {
	message := fmt.Sprintf("%s rejected %s", c.target, operation)
	code := ""
	if wire != nil {
		code = wire.Code
		if wire.Message != "" {
			message = wire.Message
		}
	}
	if code == "" {
		code = fallbackCode(status)
	}

	err := errors.New(errors.CodeDownstreamRejected, message).
		WithDetail(errors.DetailService, c.target).
		WithDetail(errors.DetailOperation, operation).
		WithDetail(errors.DetailDownstreamCode, code)
	if wire != nil {
		for key, value := range wire.Details {
			if _, taken := err.Detail(key); taken {
				continue
			}
			err.WithDetail(key, value)
		}
	}
	return err
}

func fallbackCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return string(errors.CodeNotFound)
	case http.StatusConflict:
		return string(errors.CodeConflict)
	case http.StatusUnprocessableEntity:
		return string(errors.CodeStateConflict)
	case http.StatusUnauthorized:
		return string(errors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(errors.CodeForbidden)
	default:
		return string(errors.CodeValidation)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.IsRetryable(err):
		return "unavailable"
	default:
		return "rejected"
	}
}

// DownstreamCode returns the peer's error code carried by a rejected call.
func DownstreamCode(err error) errors.Code {
	typed := errors.As(err)
	if typed == nil {
		return ""
	}
	raw, ok := typed.Detail(errors.DetailDownstreamCode)
	if !ok {
		return ""
	}
	value, _ := raw.(string)
	return errors.Code(value)
}

// IsRejectedWith reports whether the peer rejected the call with code and,
// when reason is non-empty, that reason.
func IsRejectedWith(err error, code errors.Code, reason string) bool {
	if !errors.IsCode(err, errors.CodeDownstreamRejected) {
		return false
	}
	if DownstreamCode(err) != code {
		return false
	}
	return reason == "" || errors.Reason(err) == reason
}
