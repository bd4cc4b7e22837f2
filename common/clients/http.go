package clients

import (
	"context"
	"io"
	"net/http"
	"os"
)

// Logger interface for HTTP client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// HTTPClient wraps http.Client with context-aware helpers for internal
// service-to-service calls. It marks requests as internal so they bypass
// the public rate limiter.
type HTTPClient struct {
	client *http.Client
	logger Logger
}

// NewHTTPClient creates a new HTTP client wrapper
func NewHTTPClient(client *http.Client, logger Logger) *HTTPClient {
	return &HTTPClient{
		client: client,
		logger: logger,
	}
}

// DoRequest creates and executes an HTTP request with internal-service
// headers applied.
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	// Create request with context
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	if secret := internalSecret(); secret != "" {
		req.Header.Set("X-Internal-Service", secret)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Execute request
	return c.client.Do(req)
}

func internalSecret() string {
	if secret := os.Getenv("INTERNAL_SERVICE_SECRET"); secret != "" {
		return secret
	}
	return "default-internal-secret-change-in-prod" // Fallback for dev
}
