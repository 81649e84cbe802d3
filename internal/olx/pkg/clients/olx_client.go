package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"olxmarket_api/config/values"
	"olxmarket_api/internal/olx/business/services"
	"olxmarket_api/metrics"
	"olxmarket_api/pkg/logger"

	"golang.org/x/time/rate"
)

// TokenSource supplies bearer tokens per shop and can force a refresh when
// the marketplace reports the current one invalid.
type TokenSource interface {
	Token(ctx context.Context, shopID int64) (string, error)
	Refresh(ctx context.Context, shopID int64) (string, error)
}

// OlxClient is the single HTTP gateway to the marketplace. Every call goes
// through the shared rate limiter and the bounded retry/backoff budget;
// a 401 triggers one transparent token refresh before the call counts as
// failed.
type OlxClient struct {
	BaseURL string
	tokens  TokenSource
	client  *http.Client
	limiter *rate.Limiter
	retry   values.RetryConfig
	log     logger.Logger
}

func NewOlxClient(baseURL string, tokens TokenSource, vals values.OlxValues, log logger.Logger) *OlxClient {
	rps := vals.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	retry := vals.Retry
	if retry.MaxAttempts <= 0 {
		retry = values.DefaultOlxValues().Retry
	}
	return &OlxClient{
		BaseURL: baseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retry:   retry,
		log:     log,
	}
}

// Do executes one marketplace call. requestBody and out may be nil.
func (c *OlxClient) Do(ctx context.Context, shopID int64, method, endpoint string, requestBody, out interface{}) error {
	var bodyBytes []byte
	if requestBody != nil {
		var err error
		bodyBytes, err = json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}
	}

	delay := c.retry.InitialDelay
	refreshed := false
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.doOnce(ctx, shopID, method, endpoint, bodyBytes, out, &refreshed)
		if err == nil {
			return nil
		}
		if !services.IsTransient(err) {
			return err
		}
		lastErr = err

		if attempt < c.retry.MaxAttempts {
			metrics.RecordMarketplaceRetry()
			c.log.Log("retrying %s %s after attempt %d: %v", method, endpoint, attempt, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.retry.Multiplier)
		}
	}
	return fmt.Errorf("marketplace call %s %s exhausted %d attempts: %w",
		method, endpoint, c.retry.MaxAttempts, lastErr)
}

func (c *OlxClient) doOnce(ctx context.Context, shopID int64, method, endpoint string, body []byte, out interface{}, refreshed *bool) error {
	token, err := c.tokens.Token(ctx, shopID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return &services.TransientError{Err: err}
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized && !*refreshed:
		// token may have expired server-side; refresh once and retry
		*refreshed = true
		if _, err := c.tokens.Refresh(ctx, shopID); err != nil {
			return err
		}
		return &services.TransientError{Status: resp.StatusCode, Err: fmt.Errorf("token rejected, refreshed")}
	case resp.StatusCode == http.StatusUnauthorized:
		return &services.AuthError{ShopID: shopID, Err: fmt.Errorf("token rejected after refresh")}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &services.TransientError{Status: resp.StatusCode, Err: fmt.Errorf("status %s", resp.Status)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("marketplace rejected %s %s: status %s: %s", method, endpoint, resp.Status, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response of %s %s: %w", method, endpoint, err)
	}
	return nil
}
