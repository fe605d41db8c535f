package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"thriftmarket/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authBackend(t *testing.T, handlerFn http.HandlerFunc) *api.AuthAPI {
	t.Helper()
	server := httptest.NewServer(handlerFn)
	t.Cleanup(server.Close)
	return api.NewAuthAPI(api.NewClient(server.URL, 5*time.Second, testLogger()))
}

func newSessionService(authAPI *api.AuthAPI) *SessionService {
	return NewSessionService(testLogger(), deadRedis(), authAPI, time.Hour)
}

func TestResumeWithoutSessionID(t *testing.T) {
	svc := newSessionService(nil)

	session, err := svc.Resume(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestLoginWrongCredentials(t *testing.T) {
	authAPI := authBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid credentials"}`, http.StatusUnauthorized)
	})
	svc := newSessionService(authAPI)

	session, err := svc.Login(context.Background(), api.Credentials{Email: "a@b.test", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, session)
}

func TestLoginBlockedAccount(t *testing.T) {
	authAPI := authBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"account blocked","blocked":true}`))
	})
	svc := newSessionService(authAPI)

	_, err := svc.Login(context.Background(), api.Credentials{Email: "a@b.test", Password: "pw"})
	assert.ErrorIs(t, err, ErrAccountBlocked)
}

func TestSignupDuplicateEmailPassesThrough(t *testing.T) {
	authAPI := authBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"email already registered"}`, http.StatusConflict)
	})
	svc := newSessionService(authAPI)

	_, err := svc.Signup(context.Background(), api.RegisterRequest{Name: "Ama", Email: "a@b.test", Password: "pw"})
	assert.ErrorIs(t, err, api.ErrBackend)
	assert.Contains(t, err.Error(), "email already registered")
}

func TestInvalidateNotifiesSubscribers(t *testing.T) {
	svc := newSessionService(nil)

	var events []SessionEvent
	svc.Subscribe(func(ev SessionEvent) { events = append(events, ev) })

	svc.Invalidate(context.Background(), "sess-9")

	require.Len(t, events, 1)
	assert.Equal(t, SessionInvalidated, events[0].Type)
	require.NotNil(t, events[0].Session)
	assert.Equal(t, "sess-9", events[0].Session.ID)
}

func TestResetPasswordBadToken(t *testing.T) {
	authAPI := authBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"token not found"}`, http.StatusNotFound)
	})
	svc := newSessionService(authAPI)

	err := svc.ResetPassword(context.Background(), "stale-token", "newpw")
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyEmailBadToken(t *testing.T) {
	authAPI := authBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"expired"}`, http.StatusUnauthorized)
	})
	svc := newSessionService(authAPI)

	resp, err := svc.VerifyEmail(context.Background(), "stale-token")
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Nil(t, resp)
}
