package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorber/veckopeng/internal/auth"
	"github.com/gorber/veckopeng/internal/store"
)

const (
	familyKeyHeader = "X-Family-Key"
	memberIDHeader  = "X-Member-ID"
)

// RequireFamilyKey gates every API request behind the shared household key
// and resolves the acting member into the request context.
//
// With no key configured the API runs open (dev mode); the caller is
// expected to have logged a warning at startup. The member header is
// optional: read-only endpoints work without an actor, and handlers that
// need one reject its absence themselves.
func RequireFamilyKey(key string, members *store.MemberStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" {
				got := r.Header.Get(familyKeyHeader)
				if got == "" {
					writeAuthError(w, http.StatusUnauthorized, "missing family key")
					return
				}
				if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
					writeAuthError(w, http.StatusForbidden, "invalid family key")
					return
				}
			}

			if memberID := r.Header.Get(memberIDHeader); memberID != "" {
				member, err := members.GetByID(memberID)
				if err != nil {
					logger.Error("resolve acting member", "error", err)
					writeAuthError(w, http.StatusInternalServerError, "failed to resolve member")
					return
				}
				if member == nil {
					writeAuthError(w, http.StatusUnauthorized, "unknown member")
					return
				}
				ctx := auth.WithActor(r.Context(), auth.Actor{MemberID: member.ID, Role: member.Role})
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
