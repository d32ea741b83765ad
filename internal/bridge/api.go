package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	DefaultAPIRetries = 5
	DefaultAPITimeout = 30 * time.Second
)

// APIClient fetches proofs and attestations from off-chain bridge services.
type APIClient struct {
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewAPIClient returns an APIClient retrying transport errors and 5xx/429
// responses with jittered backoff.
func NewAPIClient(logger *zap.Logger, maxRetries int, timeout time.Duration) *APIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = DefaultAPIRetries
	}
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}

	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.Logger = nil
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		yes, err2 := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		if yes {
			if resp == nil {
				logger.Warn("retrying bridge api request", zap.Error(err2))
			} else {
				logger.Warn("retrying bridge api request", zap.String("status", resp.Status), zap.Error(err2))
			}
		}
		return yes, err2
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Backoff = retryablehttp.LinearJitterBackoff
	client.HTTPClient.Timeout = timeout

	return &APIClient{client: client, logger: logger}
}

// getJSON issues a GET and decodes a 200 response into out. Any other status
// is returned with the body for the caller to classify.
func (c *APIClient) getJSON(ctx context.Context, url string, out interface{}) (int, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observeAPIRequest("error", start)
		return 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()
	observeAPIRequest(http.StatusText(resp.StatusCode), start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("request %s: status %d: %s", url, resp.StatusCode, truncate(body, 256))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", url, err)
	}
	return resp.StatusCode, nil
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
