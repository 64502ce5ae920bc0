package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marloweapps/flexspend-api/internal/budget"
	"github.com/marloweapps/flexspend-api/internal/domain"
	"github.com/marloweapps/flexspend-api/internal/infra/observability"
	"github.com/marloweapps/flexspend-api/internal/port"
)

// syncPhase labels the coordinator's position in a run for logging.
type syncPhase string

const (
	phaseFetchingDelta syncPhase = "fetching_delta"
	phaseReconciling   syncPhase = "reconciling"
	phaseBackfilling   syncPhase = "backfilling_history"
)

// metricsFlusher is the slice of the cache the coordinator needs: drop
// every snapshot under a user's prefix once reconciliation lands.
type metricsFlusher interface {
	FlushPrefix(prefix string)
}

// SyncService reconciles the provider's transaction feed into the
// store. Each run fetches the incremental delta, applies added then
// modified then removed, and on a user's first run also backfills the
// full per-account history. Runs for the same user never overlap.
type SyncService struct {
	transactions port.TransactionStore
	preferences  port.PreferenceStore
	syncStates   port.SyncStateStore
	accounts     port.AccountStore
	source       port.TransactionSource
	cache        metricsFlusher
	metrics      *observability.Metrics
	logger       *zap.Logger
	concurrency  int

	mu       sync.Mutex
	inFlight map[string]bool

	onComplete func(ctx context.Context, userID string)
}

// NewSyncService creates the sync coordinator. concurrency bounds the
// parallel per-account history fetches during backfill.
func NewSyncService(
	transactions port.TransactionStore,
	preferences port.PreferenceStore,
	syncStates port.SyncStateStore,
	accounts port.AccountStore,
	source port.TransactionSource,
	cache metricsFlusher,
	metrics *observability.Metrics,
	logger *zap.Logger,
	concurrency int,
) *SyncService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SyncService{
		transactions: transactions,
		preferences:  preferences,
		syncStates:   syncStates,
		accounts:     accounts,
		source:       source,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		concurrency:  concurrency,
		inFlight:     make(map[string]bool),
	}
}

// SyncResult summarizes one coordinator run.
type SyncResult struct {
	Added       int  `json:"added"`
	Modified    int  `json:"modified"`
	Removed     int  `json:"removed"`
	Skipped     int  `json:"skipped"`
	Backfilled  int  `json:"backfilled"`
	RanBackfill bool `json:"ran_backfill"`
}

// LinkAccount exchanges the public token from the client's link flow,
// stores the provider access token, and registers the accounts. The
// first SyncUser call afterwards performs the history backfill.
func (s *SyncService) LinkAccount(ctx context.Context, userID, publicToken string) ([]domain.LinkedAccount, error) {
	ctx, span := tracer.Start(ctx, "SyncService.LinkAccount")
	defer span.End()

	if publicToken == "" {
		return nil, &domain.ErrValidation{Field: "public_token", Message: "required"}
	}

	accessToken, accounts, err := s.source.ExchangeToken(ctx, publicToken)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.PutAccessToken(ctx, userID, accessToken); err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i].UserID = userID
		if err := s.accounts.PutLinkedAccount(ctx, &accounts[i]); err != nil {
			return nil, err
		}
	}

	s.logger.Info("linked accounts",
		zap.String("user_id", userID),
		zap.Int("accounts", len(accounts)),
	)
	return accounts, nil
}

// SyncUser runs one reconciliation for the user. A second call while a
// run is active returns ErrSyncInProgress instead of queueing.
func (s *SyncService) SyncUser(ctx context.Context, userID string) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "SyncService.SyncUser")
	defer span.End()

	if !s.acquire(userID) {
		return nil, &domain.ErrSyncInProgress{UserID: userID}
	}
	defer s.release(userID)

	start := time.Now()
	result, err := s.runSync(ctx, userID)
	s.metrics.RecordRequestDuration("sync", time.Since(start))
	if err != nil {
		s.metrics.IncrSyncRun("delta", "error")
		s.logger.Error("sync failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrSyncRun("delta", "success")
	s.logger.Info("sync completed",
		zap.String("user_id", userID),
		zap.Int("added", result.Added),
		zap.Int("modified", result.Modified),
		zap.Int("removed", result.Removed),
		zap.Int("skipped", result.Skipped),
		zap.Int("backfilled", result.Backfilled),
		zap.Duration("took", time.Since(start)),
	)

	// Stored aggregates changed; drop stale snapshots, then let the
	// completion hook recompute before the caller observes the result.
	s.cache.FlushPrefix(MetricsCachePrefix(userID))
	if s.onComplete != nil {
		s.onComplete(ctx, userID)
	}
	return result, nil
}

// OnComplete registers a hook that runs synchronously after each
// successful sync, after cache invalidation. Used to rebuild the
// user's metrics and recent-stats snapshots eagerly.
func (s *SyncService) OnComplete(fn func(ctx context.Context, userID string)) {
	s.onComplete = fn
}

func (s *SyncService) acquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[userID] {
		return false
	}
	s.inFlight[userID] = true
	return true
}

func (s *SyncService) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, userID)
}

func (s *SyncService) runSync(ctx context.Context, userID string) (*SyncResult, error) {
	accessToken, err := s.accounts.GetAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	state, err := s.syncStates.GetSyncState(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("sync phase", zap.String("user_id", userID), zap.String("phase", string(phaseFetchingDelta)))
	delta, err := s.source.FetchTransactionDelta(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("sync phase", zap.String("user_id", userID), zap.String("phase", string(phaseReconciling)))
	result, earliest, err := s.reconcile(ctx, userID, delta)
	if err != nil {
		return nil, err
	}

	if !state.BackfillComplete {
		s.logger.Debug("sync phase", zap.String("user_id", userID), zap.String("phase", string(phaseBackfilling)))
		backfilled, backfillEarliest, err := s.backfill(ctx, userID, accessToken)
		if err != nil {
			s.metrics.IncrSyncRun("backfill", "error")
			return nil, err
		}
		s.metrics.IncrSyncRun("backfill", "success")
		result.Backfilled = backfilled
		result.RanBackfill = true
		state.BackfillComplete = true
		earliest = earlierOf(earliest, backfillEarliest)
	}

	if earliest != nil {
		if state.FirstTransactionDate == nil || earliest.Before(*state.FirstTransactionDate) {
			state.FirstTransactionDate = earliest
		}
	}
	if err := s.syncStates.PutSyncState(ctx, state); err != nil {
		return nil, err
	}
	return result, nil
}

// reconcile applies the delta in order: added, then modified, then
// removed. A bad record is skipped and counted, never failing the batch.
func (s *SyncService) reconcile(ctx context.Context, userID string, delta *domain.TransactionDelta) (*SyncResult, *time.Time, error) {
	result := &SyncResult{}
	var earliest *time.Time

	prefs, err := s.preferences.ListPreferences(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	table := budget.NewPreferenceTable(prefs)

	for _, raw := range delta.Added {
		tx, err := budget.FromProvider(userID, raw, table)
		if err != nil {
			s.skipRecord(userID, raw.ID, "malformed_date", err)
			result.Skipped++
			continue
		}
		if err := s.transactions.UpsertTransaction(ctx, tx); err != nil {
			s.skipRecord(userID, raw.ID, "store_error", err)
			result.Skipped++
			continue
		}
		s.metrics.IncrTransactionClassified(string(tx.BudgetClass))
		result.Added++
		earliest = earlierOf(earliest, &tx.Date)
	}
	s.metrics.AddTransactionsSynced("added", result.Added)

	// Preferences may have changed while adds were writing; reclassify
	// modified rows against a fresh read.
	prefs, err = s.preferences.ListPreferences(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	table = budget.NewPreferenceTable(prefs)

	for _, raw := range delta.Modified {
		tx, err := budget.FromProvider(userID, raw, table)
		if err != nil {
			s.skipRecord(userID, raw.ID, "malformed_date", err)
			result.Skipped++
			continue
		}
		if err := s.transactions.UpsertTransaction(ctx, tx); err != nil {
			s.skipRecord(userID, raw.ID, "store_error", err)
			result.Skipped++
			continue
		}
		s.metrics.IncrTransactionClassified(string(tx.BudgetClass))
		result.Modified++
		earliest = earlierOf(earliest, &tx.Date)
	}
	s.metrics.AddTransactionsSynced("modified", result.Modified)

	// Removal is a soft-delete flag first, then a purge of the row.
	// Both are idempotent for absent ids.
	for _, txID := range delta.Removed {
		if err := s.transactions.SoftRemoveTransaction(ctx, userID, txID); err != nil {
			s.skipRecord(userID, txID, "store_error", err)
			result.Skipped++
			continue
		}
		if err := s.transactions.DeleteTransaction(ctx, userID, txID); err != nil {
			s.skipRecord(userID, txID, "store_error", err)
			result.Skipped++
			continue
		}
		result.Removed++
	}
	s.metrics.AddTransactionsSynced("removed", result.Removed)

	return result, earliest, nil
}

// backfill fetches the full history for every linked account in
// parallel and stores the classified transactions. Any account fetch
// failing fails the backfill; it retries on the next sync.
func (s *SyncService) backfill(ctx context.Context, userID, accessToken string) (int, *time.Time, error) {
	accounts, err := s.accounts.ListLinkedAccounts(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	if len(accounts) == 0 {
		return 0, nil, nil
	}

	prefs, err := s.preferences.ListPreferences(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	table := budget.NewPreferenceTable(prefs)

	var mu sync.Mutex
	total := 0
	var earliest *time.Time

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			history, err := s.source.FetchTransactionHistory(gctx, accessToken, account.ID)
			if err != nil {
				return err
			}

			stored := 0
			var accountEarliest *time.Time
			for _, raw := range history {
				tx, err := budget.FromProvider(userID, raw, table)
				if err != nil {
					s.skipRecord(userID, raw.ID, "malformed_date", err)
					continue
				}
				if err := s.transactions.UpsertTransaction(gctx, tx); err != nil {
					return err
				}
				s.metrics.IncrTransactionClassified(string(tx.BudgetClass))
				stored++
				accountEarliest = earlierOf(accountEarliest, &tx.Date)
			}

			mu.Lock()
			total += stored
			earliest = earlierOf(earliest, accountEarliest)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}
	return total, earliest, nil
}

func (s *SyncService) skipRecord(userID, recordID, reason string, err error) {
	s.metrics.IncrRecordSkipped(reason)
	s.logger.Warn("skipped record during sync",
		zap.String("user_id", userID),
		zap.String("record_id", recordID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func earlierOf(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}
