// Package client contains HTTP clients for external services: the
// account-linking provider that delivers bank transactions and the SMS
// verification service used at login.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/marloweapps/flexspend-api/internal/domain"
	"github.com/marloweapps/flexspend-api/internal/infra/observability"
	"github.com/marloweapps/flexspend-api/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// ProviderClient talks to the account-linking provider: public-token
// exchange at link time, the incremental transactions delta, and the
// full per-account history used by the backfill.
type ProviderClient struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewProviderClient creates an account-linking provider client.
func NewProviderClient(httpClient *http.Client, baseURL, clientID, secret string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger, metrics *observability.Metrics) *ProviderClient {
	return &ProviderClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		clientID:   clientID,
		secret:     secret,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

type exchangeRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	PublicToken string `json:"public_token"`
}

type exchangeResponse struct {
	AccessToken string                 `json:"access_token"`
	Accounts    []domain.LinkedAccount `json:"accounts"`
}

// ExchangeToken swaps the short-lived public token from the link flow
// for a durable access token plus the accounts it covers.
func (c *ProviderClient) ExchangeToken(ctx context.Context, publicToken string) (string, []domain.LinkedAccount, error) {
	ctx, span := tracer.Start(ctx, "ProviderClient.ExchangeToken")
	defer span.End()

	req := exchangeRequest{ClientID: c.clientID, Secret: c.secret, PublicToken: publicToken}
	var resp exchangeResponse
	if err := c.post(ctx, "/item/public_token/exchange", req, &resp); err != nil {
		return "", nil, err
	}
	return resp.AccessToken, resp.Accounts, nil
}

type deltaRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
}

// FetchTransactionDelta returns the provider's incremental feed of
// added, modified, and removed transactions since the last call.
func (c *ProviderClient) FetchTransactionDelta(ctx context.Context, accessToken string) (*domain.TransactionDelta, error) {
	ctx, span := tracer.Start(ctx, "ProviderClient.FetchTransactionDelta")
	defer span.End()

	req := deltaRequest{ClientID: c.clientID, Secret: c.secret, AccessToken: accessToken}
	var delta domain.TransactionDelta
	if err := c.post(ctx, "/transactions/sync", req, &delta); err != nil {
		return nil, err
	}
	c.logger.Debug("provider: fetched transaction delta",
		zap.Int("added", len(delta.Added)),
		zap.Int("modified", len(delta.Modified)),
		zap.Int("removed", len(delta.Removed)),
	)
	return &delta, nil
}

type historyRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
	AccountID   string `json:"account_id"`
}

type historyResponse struct {
	Transactions []domain.ProviderTransaction `json:"transactions"`
}

// FetchTransactionHistory returns every transaction the provider holds
// for one account, oldest first.
func (c *ProviderClient) FetchTransactionHistory(ctx context.Context, accessToken, accountID string) ([]domain.ProviderTransaction, error) {
	ctx, span := tracer.Start(ctx, "ProviderClient.FetchTransactionHistory")
	defer span.End()

	req := historyRequest{ClientID: c.clientID, Secret: c.secret, AccessToken: accessToken, AccountID: accountID}
	var resp historyResponse
	if err := c.post(ctx, "/transactions/history", req, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// post executes a JSON POST behind the circuit breaker with retries and
// decodes the response into out.
func (c *ProviderClient) post(ctx context.Context, path string, payload, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.postOnce(ctx, path, payload, out)
		})
	})
	if err != nil {
		c.metrics.IncrExternalError("provider")
		if _, ok := err.(*domain.ErrNotFound); ok {
			return err
		}
		return &domain.ErrExternalService{Service: "provider", Err: err}
	}
	return nil
}

func (c *ProviderClient) postOnce(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("provider: request failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return &domain.ErrNotFound{Resource: "provider resource", ID: path}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("provider: non-2xx response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
