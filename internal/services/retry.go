package services

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	logger "github.com/greenlight-dev/greenlight/internal/logger"
)

// RetryConfig tunes the retrying HTTP client the dispatcher uses for
// execution-service calls
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the retry tuning used when the config file
// does not override it
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// RetryableHTTPClient wraps http.Client with bounded exponential backoff
// for transient transport failures and retryable status codes. Requests
// with a body must carry GetBody so later attempts can rewind it; requests
// built with http.NewRequest from a bytes or strings reader do.
type RetryableHTTPClient struct {
	client *http.Client
	config RetryConfig
}

// NewRetryableHTTPClient creates a client with the given per-request
// timeout. MaxAttempts below one behaves as a single attempt.
func NewRetryableHTTPClient(timeout time.Duration, config RetryConfig) *RetryableHTTPClient {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 500 * time.Millisecond
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}
	return &RetryableHTTPClient{
		client: &http.Client{Timeout: timeout},
		config: config,
	}
}

// Do executes the request, retrying transient failures. The final attempt's
// response is returned as-is even when its status is retryable; callers
// interpret status codes themselves.
func (r *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		clone := req.Clone(req.Context())
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			clone.Body = body
		}

		resp, err := r.client.Do(clone)
		if err == nil {
			if !retryableStatus(resp.StatusCode) || attempt == r.config.MaxAttempts {
				return resp, nil
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			logger.Debug("Retrying after retryable status",
				"status_code", resp.StatusCode,
				"attempt", attempt,
				"url", req.URL.String())
		} else {
			if !retryableError(err) {
				return nil, err
			}
			lastErr = err
			logger.Debug("Retrying after transport error",
				"error", err.Error(),
				"attempt", attempt,
				"url", req.URL.String())
		}

		if attempt < r.config.MaxAttempts {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(r.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}

// backoff returns the delay before the attempt following the given one,
// doubling from the initial delay up to the cap
func (r *RetryableHTTPClient) backoff(attempt int) time.Duration {
	delay := r.config.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.config.MaxBackoff {
			return r.config.MaxBackoff
		}
	}
	if delay > r.config.MaxBackoff {
		return r.config.MaxBackoff
	}
	return delay
}

func retryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
