package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marloweapps/flexspend-api/internal/domain"
	"github.com/marloweapps/flexspend-api/internal/infra/observability"
	"github.com/marloweapps/flexspend-api/internal/service"
)

// Handler wires the services into the HTTP API.
type Handler struct {
	budget  *service.BudgetService
	sync    *service.SyncService
	auth    *service.AuthService
	metrics *observability.Metrics
	logger  *zap.Logger
}

// New creates the HTTP handler.
func New(budget *service.BudgetService, sync *service.SyncService, auth *service.AuthService, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		budget:  budget,
		sync:    sync,
		auth:    auth,
		metrics: metrics,
		logger:  logger,
	}
}

// Router builds the chi router with the full route table.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/healthz", h.handleHealth())
	r.Get("/readyz", h.handleHealth())
	r.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/send-code", h.handleSendCode())
		r.Post("/verify-code", h.handleVerifyCode())
		r.Post("/refresh", h.handleRefresh())
		r.Post("/logout", h.handleLogout())
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(h.auth))

		r.Get("/v1/metrics/sync", h.handleSyncMetrics())

		r.Route("/v1/users/{userId}", func(r chi.Router) {
			r.Post("/link", h.handleLink())
			r.Post("/sync", h.handleSync())
			r.Get("/budget/metrics", h.handleGetMetrics())
			r.Get("/budget/recent-stats", h.handleRecentStats())
			r.Get("/preferences", h.handleGetPreferences())
			r.Put("/preferences", h.handlePutPreferences())
			r.Get("/settings", h.handleGetSettings())
			r.Put("/settings", h.handlePutSettings())
			r.Get("/onboarding-defaults", h.handleOnboardingDefaults())
			r.Get("/transactions", h.handleNewTransactions())
			r.Delete("/transactions/{txId}", h.handleDeleteTransaction())
			r.Get("/accounts/{accountId}/transactions", h.handleAccountHistory())
			r.Post("/passcode", h.handleSetPasscode())
			r.Post("/passcode/verify", h.handleVerifyPasscode())
		})

		// Legacy contract kept for older mobile builds. The user comes
		// from the token, not the path.
		r.Route("/budget", func(r chi.Router) {
			r.Get("/get_new_transactions_for_user/{userId}", h.handleLegacyNewTransactions())
			r.Get("/get_transaction_history_for_account/{accountId}", h.handleLegacyAccountHistory())
			r.Get("/get_budget_preferences_for_user/{userId}", h.handleLegacyGetPreferences())
			r.Post("/update_budget_preferences_for_user", h.handleLegacyUpdatePreferences())
		})
	})

	return r
}

func (h *Handler) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// --- auth ---

func (h *Handler) handleSendCode() http.HandlerFunc {
	type request struct {
		Phone string `json:"phone"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.auth.SendCode(r.Context(), req.Phone); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}

func (h *Handler) handleVerifyCode() http.HandlerFunc {
	type request struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeBody(w, r, &req) {
			return
		}
		session, err := h.auth.VerifyCode(r.Context(), req.Phone, req.Code)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (h *Handler) handleRefresh() http.HandlerFunc {
	type request struct {
		RefreshToken string `json:"refresh_token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeBody(w, r, &req) {
			return
		}
		session, err := h.auth.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (h *Handler) handleLogout() http.HandlerFunc {
	type request struct {
		RefreshToken string `json:"refresh_token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleSetPasscode() http.HandlerFunc {
	type request struct {
		Passcode string `json:"passcode"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		var req request
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.auth.SetPasscode(r.Context(), userID, req.Passcode); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleVerifyPasscode() http.HandlerFunc {
	type request struct {
		Passcode string `json:"passcode"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		var req request
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.auth.VerifyPasscode(r.Context(), userID, req.Passcode); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// --- linking & sync ---

func (h *Handler) handleLink() http.HandlerFunc {
	type request struct {
		PublicToken string `json:"public_token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		var req request
		if !decodeBody(w, r, &req) {
			return
		}
		accounts, err := h.sync.LinkAccount(r.Context(), userID, req.PublicToken)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"accounts": accounts})
	}
}

func (h *Handler) handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		result, err := h.sync.SyncUser(r.Context(), userID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) handleSyncMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.metrics.SyncSnapshot())
	}
}

// --- metrics & stats ---

func (h *Handler) handleGetMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}

		month := time.Now().UTC()
		if raw := r.URL.Query().Get("month"); raw != "" {
			parsed, err := time.ParseInLocation("2006-01", raw, time.UTC)
			if err != nil {
				writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
				return
			}
			month = parsed
		}

		snap, err := h.budget.GetMetrics(r.Context(), userID, month)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, metricsResponse(snap))
	}
}

func (h *Handler) handleRecentStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}

		window := 0 // 0 means the configured default
		if raw := r.URL.Query().Get("window"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "window must be a positive integer")
				return
			}
			window = parsed
		}

		stats, err := h.budget.GetRecentStats(r.Context(), userID, window)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// --- preferences & settings ---

func (h *Handler) handleGetPreferences() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		prefs, err := h.budget.GetPreferences(r.Context(), userID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
	}
}

func (h *Handler) handlePutPreferences() http.HandlerFunc {
	type request struct {
		Preferences []domain.BudgetPreference `json:"preferences"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		var req request
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.budget.UpdatePreferences(r.Context(), userID, req.Preferences); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"preferences": req.Preferences})
	}
}

func (h *Handler) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		settings, err := h.budget.GetSettings(r.Context(), userID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

func (h *Handler) handlePutSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		var settings domain.BudgetSettings
		if !decodeBody(w, r, &settings) {
			return
		}
		if err := h.budget.UpdateSettings(r.Context(), userID, &settings); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

func (h *Handler) handleOnboardingDefaults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		defaults, stats, err := h.budget.OnboardingDefaults(r.Context(), userID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"settings":     defaults,
			"recent_stats": stats,
		})
	}
}

// --- transactions ---

func (h *Handler) handleNewTransactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		txns, err := h.budget.ListNewTransactions(r.Context(), userID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
	}
}

func (h *Handler) handleAccountHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		accountID := chi.URLParam(r, "accountId")
		txns, err := h.budget.ListAccountHistory(r.Context(), userID, accountID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
	}
}

func (h *Handler) handleDeleteTransaction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUserID(w, r)
		if !ok {
			return
		}
		txID := chi.URLParam(r, "txId")
		if err := h.budget.DeleteTransaction(r.Context(), userID, txID); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- legacy contract ---

func (h *Handler) handleLegacyNewTransactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authedUserID(r)
		txns, err := h.budget.ListNewTransactions(r.Context(), userID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, txns)
	}
}

func (h *Handler) handleLegacyAccountHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authedUserID(r)
		accountID := chi.URLParam(r, "accountId")
		txns, err := h.budget.ListAccountHistory(r.Context(), userID, accountID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, txns)
	}
}

func (h *Handler) handleLegacyGetPreferences() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authedUserID(r)
		prefs, err := h.budget.GetPreferences(r.Context(), userID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}

func (h *Handler) handleLegacyUpdatePreferences() http.HandlerFunc {
	type request struct {
		ID          string                    `json:"id"`
		Preferences []domain.BudgetPreference `json:"budget_preferences"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		// The body carries an id for the old client's benefit; the
		// effective user still comes from the bearer token.
		userID := authedUserID(r)
		var req request
		if !decodeBody(w, r, &req) {
			return
		}
		if err := h.budget.UpdatePreferences(r.Context(), userID, req.Preferences); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, req.Preferences)
	}
}
