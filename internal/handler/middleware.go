package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const userIDKey contextKey = "auth_user_id"

// tokenValidator is the slice of the auth service the middleware needs.
type tokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

// authMiddleware validates the bearer token and stores the subject in
// the request context.
func authMiddleware(auth tokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := auth.ValidateAccessToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid access token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authedUserID returns the user id placed in the context by
// authMiddleware.
func authedUserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

// pathUserID resolves the {userId} path parameter and rejects requests
// where the token subject does not match: users only see their own data.
func pathUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return "", false
	}
	if userID != authedUserID(r) {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return userID, true
}
