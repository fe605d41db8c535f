package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"
	"thriftmarket/internal/store"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("email or password is incorrect")
	ErrAccountBlocked     = errors.New("account is blocked, contact support")
	ErrSessionExpired     = errors.New("session is invalid or expired")
	ErrVerificationFailed = errors.New("email verification token is invalid or expired")
)

type SessionEventType string

const (
	SessionLoggedIn    SessionEventType = "logged_in"
	SessionLoggedOut   SessionEventType = "logged_out"
	SessionInvalidated SessionEventType = "invalidated"
)

type SessionEvent struct {
	Type    SessionEventType
	Session *models.Session
}

// SessionService owns the session lifecycle: resume-from-storage, login,
// signup, logout, and forced invalidation on 401. Subscribers are notified
// of every lifecycle event.
type SessionService struct {
	logger     *log.Logger
	redisStore *store.RedisStore
	authAPI    *api.AuthAPI
	sessionTTL time.Duration

	mu          sync.RWMutex
	subscribers []func(SessionEvent)
}

func NewSessionService(logger *log.Logger, redisStore *store.RedisStore, authAPI *api.AuthAPI, sessionTTL time.Duration) *SessionService {
	return &SessionService{
		logger:     logger,
		redisStore: redisStore,
		authAPI:    authAPI,
		sessionTTL: sessionTTL,
	}
}

// Subscribe registers a listener for session lifecycle events. Registration
// happens during wiring; there is no unsubscribe.
func (s *SessionService) Subscribe(fn func(SessionEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *SessionService) notify(event SessionEvent) {
	s.mu.RLock()
	subs := make([]func(SessionEvent), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
}

// Resume loads a persisted session. A missing or expired session yields
// (nil, nil); callers decide whether that means a login redirect.
func (s *SessionService) Resume(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := s.redisStore.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	if time.Now().After(session.ExpiresAt) {
		if err := s.redisStore.DeleteSession(ctx, sessionID); err != nil {
			s.logger.Printf("Warning: failed to delete expired session %s: %v", sessionID, err)
		}
		return nil, nil
	}
	return session, nil
}

func (s *SessionService) Login(ctx context.Context, creds api.Credentials) (*models.Session, error) {
	resp, err := s.authAPI.Login(ctx, creds)
	if err != nil {
		return nil, s.mapAuthError(err)
	}
	return s.establish(ctx, resp)
}

func (s *SessionService) Signup(ctx context.Context, req api.RegisterRequest) (*models.Session, error) {
	resp, err := s.authAPI.Register(ctx, req)
	if err != nil {
		return nil, s.mapAuthError(err)
	}
	return s.establish(ctx, resp)
}

func (s *SessionService) establish(ctx context.Context, resp *api.AuthResponse) (*models.Session, error) {
	now := time.Now()
	session := &models.Session{
		ID:          uuid.NewString(),
		UserID:      resp.User.ID,
		DisplayName: resp.User.Name,
		Role:        resp.User.Role,
		AuthToken:   resp.Token,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}

	if err := s.redisStore.SaveSession(ctx, session, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	s.logger.Printf("Session %s established for user %s (role %s)", session.ID, session.UserID, session.Role)
	s.notify(SessionEvent{Type: SessionLoggedIn, Session: session})
	return session, nil
}

// Logout removes the persisted session before returning, so no request
// issued after logout can pick up the stale token.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	session, err := s.redisStore.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session for logout: %w", err)
	}
	if err := s.redisStore.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if session != nil {
		s.logger.Printf("Session %s logged out", sessionID)
		s.notify(SessionEvent{Type: SessionLoggedOut, Session: session})
	}
	return nil
}

// Invalidate tears down a session after the backend rejected its token.
// Wired as the API client's unauthorized callback. Subscribers are notified
// even when the stored record cannot be loaded; they get at least the ID.
func (s *SessionService) Invalidate(ctx context.Context, sessionID string) {
	session, err := s.redisStore.GetSession(ctx, sessionID)
	if err != nil {
		s.logger.Printf("Warning: failed to load session %s during invalidation: %v", sessionID, err)
	}
	if err := s.redisStore.DeleteSession(ctx, sessionID); err != nil {
		s.logger.Printf("Warning: failed to delete invalidated session %s: %v", sessionID, err)
	}
	if session == nil {
		session = &models.Session{ID: sessionID}
	}
	s.logger.Printf("Session %s invalidated by backend 401", sessionID)
	s.notify(SessionEvent{Type: SessionInvalidated, Session: session})
}

func (s *SessionService) ForgotPassword(ctx context.Context, email string) error {
	return s.authAPI.ForgotPassword(ctx, email)
}

func (s *SessionService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.authAPI.ResetPassword(ctx, token, newPassword); err != nil {
		if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrNotFound) {
			return ErrVerificationFailed
		}
		return err
	}
	return nil
}

func (s *SessionService) VerifyEmail(ctx context.Context, token string) (*api.VerifyEmailResponse, error) {
	resp, err := s.authAPI.VerifyEmail(ctx, token)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrNotFound) {
			return nil, ErrVerificationFailed
		}
		return nil, err
	}
	return resp, nil
}

func (s *SessionService) mapAuthError(err error) error {
	switch {
	case errors.Is(err, api.ErrAccountBlocked):
		return ErrAccountBlocked
	case errors.Is(err, api.ErrUnauthorized):
		return ErrInvalidCredentials
	default:
		return err
	}
}
