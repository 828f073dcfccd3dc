package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const maxErrorBody = 512

// newRetryableClient builds an HTTP client that retries connection errors, 429 and 5xx
func newRetryableClient(timeout time.Duration, maxRetries int, logger *zap.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryMax = maxRetries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = zapLeveledLogger{logger: logger}
	// hand the final response back instead of a generic "giving up" error
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// postJSON sends payload and decodes a 2xx response into out
func postJSON(ctx context.Context, client *retryablehttp.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: HTTP %d", ErrChannelUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: HTTP %d: %s", ErrDeliveryRejected, resp.StatusCode, truncate(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}

// zapLeveledLogger adapts zap to retryablehttp.LeveledLogger
type zapLeveledLogger struct {
	logger *zap.Logger
}

func (l zapLeveledLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, keysAndValues...)
}

func (l zapLeveledLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l zapLeveledLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapLeveledLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Sugar().Warnw(msg, keysAndValues...)
}

var _ retryablehttp.LeveledLogger = zapLeveledLogger{}
