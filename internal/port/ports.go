// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/marloweapps/flexspend-api/internal/domain"
)

// TransactionStore is the durable, queryable collection of classified
// transactions, keyed by transaction id. Upsert and delete are
// idempotent: re-applying the same write leaves the store unchanged.
type TransactionStore interface {
	UpsertTransaction(ctx context.Context, tx *domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, txID string) error
	SoftRemoveTransaction(ctx context.Context, userID, txID string) error
	GetTransaction(ctx context.Context, userID, txID string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	ListTransactionsByDateRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, userID, accountID string) ([]domain.Transaction, error)
}

// PreferenceStore holds the user-editable classification rules keyed by
// (category, subCategory). ReplacePreferences overwrites the table
// wholesale, matching how the client pushes edits.
type PreferenceStore interface {
	ListPreferences(ctx context.Context, userID string) ([]domain.BudgetPreference, error)
	ReplacePreferences(ctx context.Context, userID string, prefs []domain.BudgetPreference) error
}

// SyncStateStore persists the per-user sync markers: first transaction
// date encountered and the one-time backfill-complete flag.
type SyncStateStore interface {
	GetSyncState(ctx context.Context, userID string) (*domain.SyncState, error)
	PutSyncState(ctx context.Context, state *domain.SyncState) error
}

// SettingsStore persists the user's expected/target budget values.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (*domain.BudgetSettings, error)
	PutSettings(ctx context.Context, settings *domain.BudgetSettings) error
}

// AccountStore tracks accounts registered through the linking flow,
// along with the provider access token obtained at link time.
type AccountStore interface {
	ListLinkedAccounts(ctx context.Context, userID string) ([]domain.LinkedAccount, error)
	PutLinkedAccount(ctx context.Context, account *domain.LinkedAccount) error
	GetAccessToken(ctx context.Context, userID string) (string, error)
	PutAccessToken(ctx context.Context, userID, accessToken string) error
}

// SessionStore persists hashed refresh tokens and the optional device
// passcode hash.
type SessionStore interface {
	StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
	GetPasscodeHash(ctx context.Context, userID string) (string, error)
	PutPasscodeHash(ctx context.Context, userID, hash string) error
}

// TransactionSource is the external account-linking provider boundary.
// The core consumes its output shape and never implements it.
type TransactionSource interface {
	ExchangeToken(ctx context.Context, publicToken string) (accessToken string, accounts []domain.LinkedAccount, err error)
	FetchTransactionDelta(ctx context.Context, accessToken string) (*domain.TransactionDelta, error)
	FetchTransactionHistory(ctx context.Context, accessToken, accountID string) ([]domain.ProviderTransaction, error)
}

// CodeVerifier is the opaque SMS verification provider boundary.
type CodeVerifier interface {
	SendCode(ctx context.Context, phone string) error
	CheckCode(ctx context.Context, phone, code string) (approved bool, err error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
