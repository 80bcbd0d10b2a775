package client

import (
	"context"
	"net/http"

	"github.com/jaxron/axonet/pkg/client/logger"
	"github.com/jaxron/axonet/pkg/client/middleware"
)

// headers sets fixed request headers before passing the request on.
type headers struct {
	values map[string]string
	logger logger.Logger
}

func newHeaders(values map[string]string) *headers {
	return &headers{
		values: values,
		logger: &logger.NoOpLogger{},
	}
}

// Process applies the headers before passing the request to the next middleware.
func (m *headers) Process(
	ctx context.Context, httpClient *http.Client, req *http.Request, next middleware.NextFunc,
) (*http.Response, error) {
	for key, value := range m.values {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	return next(ctx, httpClient, req)
}

// SetLogger sets the logger for the middleware.
func (m *headers) SetLogger(l logger.Logger) {
	m.logger = l
}
