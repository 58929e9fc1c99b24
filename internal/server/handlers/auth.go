package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/impa/website/internal/auth"
	"github.com/impa/website/internal/server/dto"
	"github.com/impa/website/internal/server/reqctx"
)

// AuthHandler serves /api/auth.
type AuthHandler struct {
	Svc *Services
}

func userResponse(u *auth.User) dto.UserResponse {
	return dto.UserResponse{ID: u.ID, Username: u.Username, Role: u.Role}
}

// Login exchanges the admin credentials for a token.
func (h *AuthHandler) Login(ctx context.Context, req *dto.LoginRequest) (*dto.Envelope[dto.LoginResponse], error) {
	token, user, exp, err := h.Svc.Auth.Login(ctx, req.Username, req.Password, reqctx.Meta(ctx))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, dto.Unauthorized("Invalid credentials")
		}
		return nil, dto.InternalWithError("Failed to generate token", err)
	}
	return dto.OK(dto.LoginResponse{
		Token:     token,
		User:      userResponse(&user),
		ExpiresAt: exp.UTC().Format(time.RFC3339),
	}, "Login successful"), nil
}

// Verify reports the user the bearer token was issued to.
func (h *AuthHandler) Verify(ctx context.Context, user *auth.User, _ *dto.EmptyRequest) (*dto.Envelope[dto.VerifyResponse], error) {
	resp := dto.VerifyResponse{User: userResponse(user)}
	if _, claims, err := h.Svc.Auth.Verify(reqctx.TokenString(ctx)); err == nil && claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return dto.OK(resp, "Token is valid"), nil
}

// Logout revokes the bearer token.
func (h *AuthHandler) Logout(ctx context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.Envelope[any], error) {
	if err := h.Svc.Auth.Logout(ctx, reqctx.TokenString(ctx)); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, dto.Unauthorized("Invalid token")
		}
		return nil, dto.InternalWithError("Failed to log out", err)
	}
	return dto.Done("Logged out"), nil
}
