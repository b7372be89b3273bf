package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/de-tools/secboard/pkg/models/api"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "secboard"
	maxErrorBody     = 4 << 10
)

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout bounds a single HTTP attempt when HTTPClient is not provided.
	Timeout   time.Duration
	UserAgent string
	Retry     RetryPolicy
}

// Client talks to the findings backend. It never stores credentials passed
// in request bodies.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	retry     RetryPolicy
	validate  *validator.Validate
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		userAgent: userAgent,
		retry:     cfg.Retry,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.String() + "/" + strings.Join(escaped, "/")
}

// call validates in, sends it, and decodes the response into out. Only GETs
// are retried.
func (c *Client) call(ctx context.Context, op, method, target string, in, out any) error {
	status, body, err := c.exchange(ctx, op, method, target, in)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindDecode, Op: op, StatusCode: status, Err: err}
	}
	if isStructPtr(out) {
		if err := c.validate.StructCtx(ctx, out); err != nil {
			return &Error{Kind: KindDecode, Op: op, StatusCode: status, Message: describeValidation(err), Err: err}
		}
	}
	return nil
}

// acknowledge posts in and accepts any 2xx reply. The body is read best-effort.
func (c *Client) acknowledge(ctx context.Context, op, target string, in any) (*api.Ack, error) {
	_, body, err := c.exchange(ctx, op, http.MethodPost, target, in)
	if err != nil {
		return nil, err
	}
	ack := api.ParseAck(body)
	return &ack, nil
}

// exchange validates in and sends it. Replies outside 2xx are rejections.
func (c *Client) exchange(ctx context.Context, op, method, target string, in any) (int, []byte, error) {
	var payload []byte
	if in != nil {
		if err := c.validate.StructCtx(ctx, in); err != nil {
			return 0, nil, &Error{Kind: KindValidation, Op: op, Message: describeValidation(err), Err: err}
		}
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return 0, nil, &Error{Kind: KindValidation, Op: op, Err: err}
		}
	}

	status, body, err := c.send(ctx, op, method, target, payload)
	if err != nil {
		return 0, nil, err
	}

	if status < 200 || status > 299 {
		return status, body, &Error{Kind: KindRejected, Op: op, StatusCode: status, Message: rejectionMessage(body)}
	}
	return status, body, nil
}

func (c *Client) send(ctx context.Context, op, method, target string, payload []byte) (int, []byte, error) {
	logger := zerolog.Ctx(ctx)

	retries := 0
	if method == http.MethodGet {
		retries = c.retry.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := c.retry.wait(ctx, attempt-1); err != nil {
				return 0, nil, &Error{Kind: KindTransport, Op: op, Err: err}
			}
		}

		status, body, err := c.roundTrip(ctx, method, target, payload)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			logger.Debug().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("request failed")
			continue
		}

		if attempt < retries && c.retry.retryStatus(status) {
			logger.Warn().Str("op", op).Int("status_code", status).Int("attempt", attempt+1).Msg("retryable status, backing off")
			lastErr = &Error{Kind: KindRejected, Op: op, StatusCode: status, Message: rejectionMessage(body)}
			continue
		}
		return status, body, nil
	}

	var rejected *Error
	if errors.As(lastErr, &rejected) {
		return 0, nil, rejected
	}
	return 0, nil, &Error{Kind: KindTransport, Op: op, Err: lastErr}
}

func (c *Client) roundTrip(ctx context.Context, method, target string, payload []byte) (int, []byte, error) {
	logger := zerolog.Ctx(ctx)

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close response body")
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Bodies are never logged: request payloads may carry GitHub tokens.
	logger.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	return resp.StatusCode, body, nil
}

func rejectionMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var e api.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func describeValidation(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := fmt.Sprintf("%s failed '%s'", e.Field(), e.Tag())
		if e.Param() != "" {
			msg += fmt.Sprintf(" (%s)", e.Param())
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}

func isStructPtr(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct
}
