package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionResolver resumes the session named by a request. A missing or
// expired session is (nil, nil); an error means the store could not answer.
type SessionResolver interface {
	Resume(ctx context.Context, sessionID string) (*models.Session, error)
}

// Middleware resolves the caller's session and gates the admin area.
type Middleware struct {
	logger   *log.Logger
	sessions SessionResolver
}

func NewMiddleware(logger *log.Logger, sessions SessionResolver) *Middleware {
	return &Middleware{logger: logger, sessions: sessions}
}

// WithSession resolves the session named by the X-Session-ID header and, when
// present, attaches it to the request context along with the backend auth the
// API clients read. A missing or unknown session is not an error here;
// individual handlers and RequireRole decide what an absent session means.
// If the session store itself cannot answer, the request fails with 503
// rather than being treated as logged out — the gate never bounces a user
// because the lookup was still unresolved.
func (m *Middleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get("X-Session-ID")
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.sessions.Resume(r.Context(), sessionID)
		if err != nil {
			m.logger.Printf("Session lookup failed for %s: %v", sessionID, err)
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return
		}
		if session == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		ctx = api.WithAuth(ctx, session.ID, session.AuthToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits only sessions whose role is in the allowed set. Anyone
// else, including anonymous callers, gets a login redirect payload.
func (m *Middleware) RequireRole(next http.Handler, roles ...models.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if session == nil {
			writeLoginRedirect(w)
			return
		}
		for _, role := range roles {
			if session.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeLoginRedirect(w)
	})
}

// RequireAdminArea is the admin/seller gate used for every /admin route.
func (m *Middleware) RequireAdminArea(next http.Handler) http.Handler {
	return m.RequireRole(next, models.RoleAdmin, models.RoleSeller)
}

func SessionFromContext(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionContextKey).(*models.Session)
	return session
}

// ClientID identifies the cart owner: the session when logged in, otherwise
// the anonymous client header.
func ClientID(r *http.Request) string {
	if session := SessionFromContext(r.Context()); session != nil {
		return session.ID
	}
	return r.Header.Get("X-Client-ID")
}

func writeLoginRedirect(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"message":  "login required",
		"redirect": "/login",
	})
}

func writeJSON(w http.ResponseWriter, logger *log.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Printf("Error encoding response: %v", err)
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
