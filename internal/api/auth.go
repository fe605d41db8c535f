package api

import (
	"context"
	"net/http"

	"thriftmarket/internal/models"
)

type AuthAPI struct {
	client *Client
}

func NewAuthAPI(client *Client) *AuthAPI {
	return &AuthAPI{client: client}
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type VerifyEmailResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user,omitempty"`
}

func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.client.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AuthAPI) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.client.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AuthAPI) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return a.client.do(ctx, http.MethodPost, "/auth/forgot-password", body, nil)
}

func (a *AuthAPI) ResetPassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "new_password": newPassword}
	return a.client.do(ctx, http.MethodPost, "/auth/reset-password", body, nil)
}

func (a *AuthAPI) VerifyEmail(ctx context.Context, token string) (*VerifyEmailResponse, error) {
	var resp VerifyEmailResponse
	body := map[string]string{"token": token}
	if err := a.client.do(ctx, http.MethodPost, "/auth/verify-email", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
