package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/marloweapps/flexspend-api/internal/domain"
	"github.com/marloweapps/flexspend-api/internal/infra/observability"
	"github.com/marloweapps/flexspend-api/internal/infra/resilience"
)

// VerificationClient talks to the SMS verification service that sends
// and checks one-time login codes.
type VerificationClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewVerificationClient creates an SMS verification client.
func NewVerificationClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger, metrics *observability.Metrics) *VerificationClient {
	return &VerificationClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// SendCode asks the verification service to text a one-time code.
func (c *VerificationClient) SendCode(ctx context.Context, phone string) error {
	ctx, span := tracer.Start(ctx, "VerificationClient.SendCode")
	defer span.End()

	form := url.Values{"To": {phone}, "Channel": {"sms"}}
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			_, err := c.postForm(ctx, "/Verifications", form)
			return err
		})
	})
	if err != nil {
		c.metrics.IncrExternalError("verification")
		return &domain.ErrExternalService{Service: "verification", Err: err}
	}
	return nil
}

type checkResponse struct {
	Status string `json:"status"`
}

// CheckCode verifies a one-time code. A wrong code is a normal outcome
// (approved=false), not an error; errors mean the service itself failed.
func (c *VerificationClient) CheckCode(ctx context.Context, phone, code string) (bool, error) {
	ctx, span := tracer.Start(ctx, "VerificationClient.CheckCode")
	defer span.End()

	form := url.Values{"To": {phone}, "Code": {code}}
	var approved bool
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.postForm(ctx, "/VerificationCheck", form)
			if err != nil {
				return err
			}
			var resp checkResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("decode verification check: %w", err)
			}
			approved = resp.Status == "approved"
			return nil
		})
	})
	if err != nil {
		c.metrics.IncrExternalError("verification")
		return false, &domain.ErrExternalService{Service: "verification", Err: err}
	}
	return approved, nil
}

func (c *VerificationClient) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("verification: request failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("verification: non-2xx response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("verification service returned status %d", resp.StatusCode)
	}
	return body, nil
}
