// Package client builds the HTTP clients used for third-party APIs.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jaxron/axonet/middleware/circuitbreaker"
	axonetRedis "github.com/jaxron/axonet/middleware/redis"
	"github.com/jaxron/axonet/middleware/retry"
	"github.com/jaxron/axonet/middleware/singleflight"
	"github.com/jaxron/axonet/pkg/client"
	"github.com/jaxron/axonet/pkg/client/middleware"
	"github.com/redis/rueidis"
	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/robalyx/snowball/internal/setup/telemetry/logger"
	"go.uber.org/zap"
)

// UserAgent identifies the bot to third-party APIs.
const UserAgent = "snowball (+https://github.com/robalyx/snowball)"

// ErrNoResponse is returned when a request failed before any response arrived.
var ErrNoResponse = errors.New("no response")

// Options configures a client built by New.
type Options struct {
	// Cache stores GET responses. Nil disables response caching.
	Cache rueidis.Client
	// CacheTTL of stored responses. Zero disables response caching.
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	Retry          config.Retry
	CircuitBreaker config.CircuitBreaker
}

// New constructs an HTTP client with a middleware chain for reliability and
// caching. Middleware order matters, each layer wraps the next.
func New(opts Options, zapLogger *zap.Logger) *client.Client {
	middlewares := []middleware.Middleware{
		circuitbreaker.New(
			opts.CircuitBreaker.MaxRequests,
			opts.CircuitBreaker.Interval,
			opts.CircuitBreaker.Timeout,
		),
		retry.New(
			opts.Retry.MaxRetries,
			opts.Retry.Delay,
			opts.Retry.MaxDelay,
		),
		singleflight.New(),
	}

	if opts.Cache != nil && opts.CacheTTL > 0 {
		middlewares = append(middlewares, axonetRedis.New(opts.Cache, opts.CacheTTL))
	}

	middlewares = append(middlewares, newHeaders(map[string]string{
		"User-Agent": UserAgent,
		"Accept":     "application/json",
	}))

	return client.NewClient(
		client.WithMarshalFunc(sonic.Marshal),
		client.WithUnmarshalFunc(sonic.Unmarshal),
		client.WithLogger(logger.New(zapLogger)),
		client.WithTimeout(opts.RequestTimeout),
		client.WithMiddleware(middlewares...),
	)
}

// Get fetches url and returns the status code with at most maxSize bytes of
// the body. Non-2xx responses are returned as data, not as errors, so callers
// can map them to their own errors.
func Get(ctx context.Context, c *client.Client, url string, maxSize int64) (int, []byte, error) {
	resp, err := c.NewRequest().Method(http.MethodGet).URL(url).Do(ctx)
	if resp == nil {
		if err == nil {
			err = ErrNoResponse
		}

		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxSize))
	if readErr != nil {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return 0, nil, fmt.Errorf("failed to read response: %w", readErr)
		}

		// The status alone is enough to describe a failed request
		body = nil
	}

	return resp.StatusCode, body, nil
}
