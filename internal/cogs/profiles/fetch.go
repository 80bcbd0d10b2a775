package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaxron/axonet/pkg/client"
	"github.com/robalyx/snowball/internal/metrics"
	httpclient "github.com/robalyx/snowball/internal/setup/client"
	"go.uber.org/zap"
)

const maxResponseSize = 4 << 20

// ErrUnexpectedStatus is returned for non-2xx responses when a request has no Check.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Request describes one GET request to a plugin's API.
type Request struct {
	URL string
	// Check maps a response to an error. When nil every non-2xx response
	// fails with ErrUnexpectedStatus.
	Check func(status int, body []byte) error
}

// Fetcher performs the API requests of one plugin. Retries, response caching
// and collapsing of identical requests are handled by the client's middleware.
type Fetcher struct {
	plugin string
	client *client.Client
	logger *zap.Logger
}

// NewFetcher creates a Fetcher for the named plugin.
func NewFetcher(plugin string, client *client.Client, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		plugin: plugin,
		client: client,
		logger: logger.Named("profile_fetcher").With(zap.String("plugin", plugin)),
	}
}

// Fetch returns the response body of a request.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	status, body, err := httpclient.Get(ctx, f.client, req.URL, maxResponseSize)
	if err != nil {
		metrics.APIRequests.WithLabelValues(f.plugin, "error").Inc()
		f.logger.Debug("Request failed", zap.Error(err))

		return nil, err
	}

	if err := check(req, status, body); err != nil {
		metrics.APIRequests.WithLabelValues(f.plugin, "error").Inc()
		f.logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))

		return nil, err
	}

	metrics.APIRequests.WithLabelValues(f.plugin, "ok").Inc()

	return body, nil
}

func check(req Request, status int, body []byte) error {
	if req.Check != nil {
		return req.Check(status, body)
	}

	if status < 200 || status > 299 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}

	return nil
}
