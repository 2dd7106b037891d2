package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/famboard/internal/auth"
	"github.com/dukerupert/famboard/internal/store"
)

// SessionCookieName carries the session token for browser clients. Other
// clients send it as a bearer token.
const SessionCookieName = "famboard_session"

// SessionToken extracts the session token from the cookie or the
// Authorization header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequireAuth resolves the session to a family member and populates
// AuthContext. Anything else gets a 401.
func RequireAuth(sessions *store.SessionStore, members *store.MemberStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetByToken(r.Context(), token)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			member, err := members.GetByID(r.Context(), sess.MemberID)
			if err != nil || member == nil {
				unauthorized(w)
				return
			}

			tagMember(r.Context(), member.ID)
			ctx := auth.WithAuth(r.Context(), auth.AuthContext{Member: member, SessionID: sess.ID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireParent rejects members without the parent role.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			writeError(w, http.StatusForbidden, "parents only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "sign in required")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
