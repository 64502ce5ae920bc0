// Package memstore implements every store port on plain keyed tables
// guarded by a RWMutex. It backs local development and tests when
// PostgREST is not configured; per-user data never crosses sessions, so
// a process-local table satisfies the store contract.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marloweapps/flexspend-api/internal/domain"
)

// Store is an in-memory implementation of the transaction, preference,
// sync-state, settings, account, and session store ports.
type Store struct {
	mu sync.RWMutex

	transactions map[string]map[string]domain.Transaction // userID -> txID -> tx
	preferences  map[string][]domain.BudgetPreference
	syncStates   map[string]domain.SyncState
	settings     map[string]domain.BudgetSettings
	accounts     map[string][]domain.LinkedAccount
	accessTokens map[string]string
	refreshToks  map[string]domain.RefreshTokenRecord // tokenHash -> record
	passcodes    map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		transactions: make(map[string]map[string]domain.Transaction),
		preferences:  make(map[string][]domain.BudgetPreference),
		syncStates:   make(map[string]domain.SyncState),
		settings:     make(map[string]domain.BudgetSettings),
		accounts:     make(map[string][]domain.LinkedAccount),
		accessTokens: make(map[string]string),
		refreshToks:  make(map[string]domain.RefreshTokenRecord),
		passcodes:    make(map[string]string),
	}
}

// --- TransactionStore ---

func (s *Store) UpsertTransaction(_ context.Context, tx *domain.Transaction) error {
	if tx.UserID == "" {
		return &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.transactions[tx.UserID]
	if !ok {
		byID = make(map[string]domain.Transaction)
		s.transactions[tx.UserID] = byID
	}
	byID[tx.ID] = *tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Deleting an absent id is a no-op: delete is idempotent.
	delete(s.transactions[userID], txID)
	return nil
}

func (s *Store) SoftRemoveTransaction(_ context.Context, userID, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.transactions[userID]
	tx, ok := byID[txID]
	if !ok {
		return nil
	}
	tx.IsRemoved = true
	byID[txID] = tx
	return nil
}

func (s *Store) GetTransaction(_ context.Context, userID, txID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[userID][txID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: txID}
	}
	return &tx, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(userID, func(domain.Transaction) bool { return true }), nil
}

func (s *Store) ListTransactionsByDateRange(_ context.Context, userID string, from, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(userID, func(tx domain.Transaction) bool {
		return !tx.Date.Before(from) && !tx.Date.After(to)
	}), nil
}

func (s *Store) ListTransactionsByAccount(_ context.Context, userID, accountID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(userID, func(tx domain.Transaction) bool {
		return tx.AccountID == accountID
	}), nil
}

// collect returns matching transactions sorted by date then id for
// stable output. Caller must hold at least a read lock.
func (s *Store) collect(userID string, match func(domain.Transaction) bool) []domain.Transaction {
	out := make([]domain.Transaction, 0)
	for _, tx := range s.transactions[userID] {
		if match(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// --- PreferenceStore ---

func (s *Store) ListPreferences(_ context.Context, userID string) ([]domain.BudgetPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs := s.preferences[userID]
	out := make([]domain.BudgetPreference, len(prefs))
	copy(out, prefs)
	return out, nil
}

func (s *Store) ReplacePreferences(_ context.Context, userID string, prefs []domain.BudgetPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]domain.BudgetPreference, len(prefs))
	copy(stored, prefs)
	s.preferences[userID] = stored
	return nil
}

// --- SyncStateStore ---

func (s *Store) GetSyncState(_ context.Context, userID string) (*domain.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.syncStates[userID]
	if !ok {
		return &domain.SyncState{UserID: userID}, nil
	}
	return &state, nil
}

func (s *Store) PutSyncState(_ context.Context, state *domain.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncStates[state.UserID] = *state
	return nil
}

// --- SettingsStore ---

func (s *Store) GetSettings(_ context.Context, userID string) (*domain.BudgetSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "settings", ID: userID}
	}
	return &settings, nil
}

func (s *Store) PutSettings(_ context.Context, settings *domain.BudgetSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[settings.UserID] = *settings
	return nil
}

// --- AccountStore ---

func (s *Store) ListLinkedAccounts(_ context.Context, userID string) ([]domain.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := s.accounts[userID]
	out := make([]domain.LinkedAccount, len(accounts))
	copy(out, accounts)
	return out, nil
}

func (s *Store) PutLinkedAccount(_ context.Context, account *domain.LinkedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.accounts[account.UserID] {
		if existing.ID == account.ID {
			s.accounts[account.UserID][i] = *account
			return nil
		}
	}
	s.accounts[account.UserID] = append(s.accounts[account.UserID], *account)
	return nil
}

func (s *Store) GetAccessToken(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.accessTokens[userID]
	if !ok {
		return "", &domain.ErrNotFound{Resource: "access_token", ID: userID}
	}
	return token, nil
}

func (s *Store) PutAccessToken(_ context.Context, userID, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessTokens[userID] = accessToken
	return nil
}

// --- SessionStore ---

func (s *Store) StoreRefreshToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshToks[tokenHash] = domain.RefreshTokenRecord{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.refreshToks[tokenHash]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refreshToks, tokenHash)
	return nil
}

func (s *Store) RevokeAllRefreshTokens(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, rec := range s.refreshToks {
		if rec.UserID == userID {
			delete(s.refreshToks, hash)
		}
	}
	return nil
}

func (s *Store) GetPasscodeHash(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.passcodes[userID], nil
}

func (s *Store) PutPasscodeHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.passcodes[userID] = hash
	return nil
}
