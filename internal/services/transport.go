package services

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

	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/google/uuid"
	"github.com/mystery-box/client/internal/auth"
	"github.com/mystery-box/client/internal/http/dto"
	"go.uber.org/zap"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// APIError is a non-2xx answer from the box API.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("box api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("box api returned %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status of an *APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Transport performs box API calls. Every call is fire-once: the heimdall
// client is built with zero retries and requests are never replayed here.
type Transport struct {
	baseURL string
	client  *httpclient.Client
	tokens  auth.TokenSource
	log     *zap.Logger
}

func NewTransport(baseURL string, timeout time.Duration, log *zap.Logger) *Transport {
	client := httpclient.NewClient(
		httpclient.WithHTTPTimeout(timeout),
		httpclient.WithRetryCount(0),
	)
	client.AddPlugin(newRequestLogger(log))

	return &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     log,
	}
}

// WithTokenSource returns a copy of t that authenticates every request.
func (t *Transport) WithTokenSource(tokens auth.TokenSource) *Transport {
	cp := *t
	cp.tokens = tokens
	return &cp
}

type callOptions struct {
	body       any
	idempotent bool
}

func (t *Transport) call(ctx context.Context, method, path string, opts callOptions, out any) error {
	var reader io.Reader
	if opts.body != nil {
		b, err := json.Marshal(opts.body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := uuid.New().String()
	req.Header.Set(HeaderRequestID, requestID)
	if opts.idempotent {
		req.Header.Set(HeaderIdempotencyKey, uuid.New().String())
	}

	if t.tokens != nil {
		token, err := t.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire session token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("box api unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID}

		var errResp dto.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			if errResp.RequestID != "" {
				apiErr.RequestID = errResp.RequestID
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}

		if resp.StatusCode == http.StatusUnauthorized && t.tokens != nil {
			t.tokens.Invalidate()
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

type requestStartKey struct{}

// requestLogger is a heimdall plugin logging every round trip.
type requestLogger struct {
	log *zap.Logger
}

func newRequestLogger(log *zap.Logger) *requestLogger {
	return &requestLogger{log: log}
}

func (p *requestLogger) OnRequestStart(req *http.Request) {
	ctx := context.WithValue(req.Context(), requestStartKey{}, time.Now())
	*req = *req.WithContext(ctx)
}

func (p *requestLogger) OnRequestEnd(req *http.Request, resp *http.Response) {
	p.log.Info("box api request",
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", p.latency(req)),
	)
}

func (p *requestLogger) OnError(req *http.Request, err error) {
	p.log.Warn("box api request failed",
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("latency", p.latency(req)),
		zap.Error(err),
	)
}

func (p *requestLogger) latency(req *http.Request) time.Duration {
	start, ok := req.Context().Value(requestStartKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}
