package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/marloweapps/flexspend-api/internal/domain"
)

const dateLayout = "2006-01-02"

// transactionRow mirrors the transactions table. Dates travel as
// YYYY-MM-DD strings so Postgres can index them as DATE columns.
type transactionRow struct {
	ID           string   `json:"id"`
	AccountID    string   `json:"account_id"`
	UserID       string   `json:"user_id"`
	Amount       float64  `json:"amount"`
	Date         string   `json:"date"`
	Category     string   `json:"category"`
	SubCategory  string   `json:"sub_category"`
	MerchantName string   `json:"merchant_name,omitempty"`
	Name         string   `json:"name,omitempty"`
	BudgetClass  string   `json:"budget_category"`
	ProductClass string   `json:"product_category"`
	FixedAmount  *float64 `json:"fixed_amount,omitempty"`
	Pending      bool     `json:"pending"`
	IsRemoved    bool     `json:"is_removed"`
}

func toRow(tx *domain.Transaction) transactionRow {
	return transactionRow{
		ID:           tx.ID,
		AccountID:    tx.AccountID,
		UserID:       tx.UserID,
		Amount:       tx.Amount,
		Date:         tx.Date.Format(dateLayout),
		Category:     tx.Category,
		SubCategory:  tx.SubCategory,
		MerchantName: tx.MerchantName,
		Name:         tx.Name,
		BudgetClass:  string(tx.BudgetClass),
		ProductClass: tx.ProductClass,
		FixedAmount:  tx.FixedAmount,
		Pending:      tx.Pending,
		IsRemoved:    tx.IsRemoved,
	}
}

func fromRow(row transactionRow) (domain.Transaction, error) {
	date, err := time.ParseInLocation(dateLayout, row.Date, time.UTC)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("parse transaction date %q: %w", row.Date, err)
	}
	return domain.Transaction{
		ID:           row.ID,
		AccountID:    row.AccountID,
		UserID:       row.UserID,
		Amount:       row.Amount,
		Date:         date,
		Category:     row.Category,
		SubCategory:  row.SubCategory,
		MerchantName: row.MerchantName,
		Name:         row.Name,
		BudgetClass:  domain.BudgetCategory(row.BudgetClass),
		ProductClass: row.ProductClass,
		FixedAmount:  row.FixedAmount,
		Pending:      row.Pending,
		IsRemoved:    row.IsRemoved,
	}, nil
}

// --- TransactionStore ---

func (c *Client) UpsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "postgrest.UpsertTransaction")
	defer span.End()

	path := "transactions?on_conflict=id"
	if _, err := c.doRequest(ctx, http.MethodPost, path, []transactionRow{toRow(tx)}); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

func (c *Client) DeleteTransaction(ctx context.Context, userID, txID string) error {
	ctx, span := tracer.Start(ctx, "postgrest.DeleteTransaction")
	defer span.End()

	path := fmt.Sprintf("transactions?user_id=eq.%s&id=eq.%s",
		url.QueryEscape(userID), url.QueryEscape(txID))
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

func (c *Client) SoftRemoveTransaction(ctx context.Context, userID, txID string) error {
	ctx, span := tracer.Start(ctx, "postgrest.SoftRemoveTransaction")
	defer span.End()

	path := fmt.Sprintf("transactions?user_id=eq.%s&id=eq.%s",
		url.QueryEscape(userID), url.QueryEscape(txID))
	patch := map[string]bool{"is_removed": true}
	if _, err := c.doRequest(ctx, http.MethodPatch, path, patch); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

func (c *Client) GetTransaction(ctx context.Context, userID, txID string) (*domain.Transaction, error) {
	path := fmt.Sprintf("transactions?user_id=eq.%s&id=eq.%s&limit=1",
		url.QueryEscape(userID), url.QueryEscape(txID))
	rows, err := c.fetchTransactions(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: txID}
	}
	return &rows[0], nil
}

func (c *Client) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "postgrest.ListTransactions")
	defer span.End()

	path := fmt.Sprintf("transactions?user_id=eq.%s&order=date.asc,id.asc", url.QueryEscape(userID))
	return c.fetchTransactions(ctx, path)
}

func (c *Client) ListTransactionsByDateRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error) {
	path := fmt.Sprintf("transactions?user_id=eq.%s&date=gte.%s&date=lte.%s&order=date.asc,id.asc",
		url.QueryEscape(userID), from.Format(dateLayout), to.Format(dateLayout))
	return c.fetchTransactions(ctx, path)
}

func (c *Client) ListTransactionsByAccount(ctx context.Context, userID, accountID string) ([]domain.Transaction, error) {
	path := fmt.Sprintf("transactions?user_id=eq.%s&account_id=eq.%s&order=date.asc,id.asc",
		url.QueryEscape(userID), url.QueryEscape(accountID))
	return c.fetchTransactions(ctx, path)
}

func (c *Client) fetchTransactions(ctx context.Context, path string) ([]domain.Transaction, error) {
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if body == nil {
		return []domain.Transaction{}, nil
	}

	var rows []transactionRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// --- PreferenceStore ---

type preferenceRow struct {
	UserID       string   `json:"user_id"`
	Category     string   `json:"category"`
	SubCategory  string   `json:"sub_category"`
	ProductClass string   `json:"product_category"`
	BudgetClass  string   `json:"budget_category"`
	FixedAmount  *float64 `json:"fixed_amount,omitempty"`
}

func (c *Client) ListPreferences(ctx context.Context, userID string) ([]domain.BudgetPreference, error) {
	path := fmt.Sprintf("budget_preferences?user_id=eq.%s&order=category.asc,sub_category.asc", url.QueryEscape(userID))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if body == nil {
		return []domain.BudgetPreference{}, nil
	}

	var rows []preferenceRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}

	out := make([]domain.BudgetPreference, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BudgetPreference{
			Category:     row.Category,
			SubCategory:  row.SubCategory,
			ProductClass: row.ProductClass,
			BudgetClass:  domain.BudgetCategory(row.BudgetClass),
			FixedAmount:  row.FixedAmount,
		})
	}
	return out, nil
}

func (c *Client) ReplacePreferences(ctx context.Context, userID string, prefs []domain.BudgetPreference) error {
	ctx, span := tracer.Start(ctx, "postgrest.ReplacePreferences")
	defer span.End()

	// The client pushes the whole table at once, so replace wholesale:
	// clear then insert. PostgREST has no multi-statement transaction
	// over REST; a torn write is repaired by the next full push.
	deletePath := fmt.Sprintf("budget_preferences?user_id=eq.%s", url.QueryEscape(userID))
	if _, err := c.doRequest(ctx, http.MethodDelete, deletePath, nil); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if len(prefs) == 0 {
		return nil
	}

	rows := make([]preferenceRow, 0, len(prefs))
	for _, p := range prefs {
		rows = append(rows, preferenceRow{
			UserID:       userID,
			Category:     p.Category,
			SubCategory:  p.SubCategory,
			ProductClass: p.ProductClass,
			BudgetClass:  string(p.BudgetClass),
			FixedAmount:  p.FixedAmount,
		})
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "budget_preferences", rows); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

// --- SyncStateStore ---

type syncStateRow struct {
	UserID               string  `json:"user_id"`
	FirstTransactionDate *string `json:"first_transaction_date,omitempty"`
	BackfillComplete     bool    `json:"backfill_complete"`
}

func (c *Client) GetSyncState(ctx context.Context, userID string) (*domain.SyncState, error) {
	path := fmt.Sprintf("sync_states?user_id=eq.%s&limit=1", url.QueryEscape(userID))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	var rows []syncStateRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode sync state: %w", err)
		}
	}
	if len(rows) == 0 {
		// Never-synced users get a pristine state, not an error.
		return &domain.SyncState{UserID: userID}, nil
	}

	state := &domain.SyncState{
		UserID:           rows[0].UserID,
		BackfillComplete: rows[0].BackfillComplete,
	}
	if rows[0].FirstTransactionDate != nil {
		first, err := time.ParseInLocation(dateLayout, *rows[0].FirstTransactionDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse first transaction date: %w", err)
		}
		state.FirstTransactionDate = &first
	}
	return state, nil
}

func (c *Client) PutSyncState(ctx context.Context, state *domain.SyncState) error {
	row := syncStateRow{
		UserID:           state.UserID,
		BackfillComplete: state.BackfillComplete,
	}
	if state.FirstTransactionDate != nil {
		formatted := state.FirstTransactionDate.Format(dateLayout)
		row.FirstTransactionDate = &formatted
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "sync_states?on_conflict=user_id", []syncStateRow{row}); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

// --- SettingsStore ---

func (c *Client) GetSettings(ctx context.Context, userID string) (*domain.BudgetSettings, error) {
	path := fmt.Sprintf("budget_settings?user_id=eq.%s&limit=1", url.QueryEscape(userID))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	var rows []domain.BudgetSettings
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "settings", ID: userID}
	}
	return &rows[0], nil
}

func (c *Client) PutSettings(ctx context.Context, settings *domain.BudgetSettings) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "budget_settings?on_conflict=user_id", []domain.BudgetSettings{*settings}); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

// --- AccountStore ---

func (c *Client) ListLinkedAccounts(ctx context.Context, userID string) ([]domain.LinkedAccount, error) {
	path := fmt.Sprintf("linked_accounts?user_id=eq.%s&order=id.asc", url.QueryEscape(userID))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if body == nil {
		return []domain.LinkedAccount{}, nil
	}

	var accounts []domain.LinkedAccount
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("decode linked accounts: %w", err)
	}
	return accounts, nil
}

func (c *Client) PutLinkedAccount(ctx context.Context, account *domain.LinkedAccount) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "linked_accounts?on_conflict=id", []domain.LinkedAccount{*account}); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

type providerTokenRow struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

func (c *Client) GetAccessToken(ctx context.Context, userID string) (string, error) {
	path := fmt.Sprintf("provider_tokens?user_id=eq.%s&limit=1", url.QueryEscape(userID))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	var rows []providerTokenRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return "", fmt.Errorf("decode provider token: %w", err)
		}
	}
	if len(rows) == 0 {
		return "", &domain.ErrNotFound{Resource: "access_token", ID: userID}
	}
	return rows[0].AccessToken, nil
}

func (c *Client) PutAccessToken(ctx context.Context, userID, accessToken string) error {
	row := providerTokenRow{UserID: userID, AccessToken: accessToken}
	if _, err := c.doRequest(ctx, http.MethodPost, "provider_tokens?on_conflict=user_id", []providerTokenRow{row}); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

// --- SessionStore ---

type refreshTokenRow struct {
	UserID    string `json:"user_id"`
	TokenHash string `json:"token_hash"`
	ExpiresAt string `json:"expires_at"`
}

func (c *Client) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	row := refreshTokenRow{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "refresh_tokens?on_conflict=token_hash", []refreshTokenRow{row}); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

func (c *Client) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	path := fmt.Sprintf("refresh_tokens?token_hash=eq.%s&limit=1", url.QueryEscape(tokenHash))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	var rows []refreshTokenRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode refresh token: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	expiresAt, err := time.Parse(time.RFC3339, rows[0].ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse refresh token expiry: %w", err)
	}
	return &domain.RefreshTokenRecord{
		UserID:    rows[0].UserID,
		TokenHash: rows[0].TokenHash,
		ExpiresAt: expiresAt,
	}, nil
}

func (c *Client) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	path := fmt.Sprintf("refresh_tokens?token_hash=eq.%s", url.QueryEscape(tokenHash))
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

func (c *Client) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	path := fmt.Sprintf("refresh_tokens?user_id=eq.%s", url.QueryEscape(userID))
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

type passcodeRow struct {
	UserID       string `json:"user_id"`
	PasscodeHash string `json:"passcode_hash"`
}

func (c *Client) GetPasscodeHash(ctx context.Context, userID string) (string, error) {
	path := fmt.Sprintf("device_passcodes?user_id=eq.%s&limit=1", url.QueryEscape(userID))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	var rows []passcodeRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return "", fmt.Errorf("decode passcode: %w", err)
		}
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].PasscodeHash, nil
}

func (c *Client) PutPasscodeHash(ctx context.Context, userID, hash string) error {
	row := passcodeRow{UserID: userID, PasscodeHash: hash}
	if _, err := c.doRequest(ctx, http.MethodPost, "device_passcodes?on_conflict=user_id", []passcodeRow{row}); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}
