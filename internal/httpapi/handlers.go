// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/anerua/Credity/internal/account"
	"github.com/anerua/Credity/internal/app"
	"github.com/anerua/Credity/internal/session"
)

// Accounts is the use-case surface the handlers call.
type Accounts interface {
	Authenticator
	Register(ctx context.Context, req app.RegisterRequest) (account.Profile, error)
	Login(ctx context.Context, email, password string) (session.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (session.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, id ulid.ULID) (account.Profile, error)
	UpdateProfile(ctx context.Context, id ulid.ULID, firstName, lastName string) (account.Profile, error)
	ChangePassword(ctx context.Context, id ulid.ULID, oldPassword, newPassword string) error
	Delete(ctx context.Context, id ulid.ULID) error
}

// ProfileResponse is the public projection of an account.
type ProfileResponse struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func profileResponse(p account.Profile) ProfileResponse {
	return ProfileResponse{Email: p.Email, FirstName: p.FirstName, LastName: p.LastName}
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// TokenRequest is the body of POST /token.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /token/refresh and /token/revoke.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// TokenResponse carries issued tokens. Refresh is omitted when a refresh
// did not rotate the token.
type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// UpdateRequest is the body of PUT /update.
type UpdateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ChangeAuthRequest is the body of PUT /change-auth.
type ChangeAuthRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type handlers struct {
	accounts Accounts
}

// bind decodes the JSON body into dst. An empty body leaves dst zero so
// missing fields surface as validation errors.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		abortParseError(c, err)
		return false
	}
	return true
}

func (h *handlers) register(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}
	profile, err := h.accounts.Register(c.Request.Context(), app.RegisterRequest{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profileResponse(profile))
}

func (h *handlers) token(c *gin.Context) {
	var req TokenRequest
	if !bind(c, &req) {
		return
	}
	pair, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Access: pair.Access, Refresh: pair.Refresh})
}

func (h *handlers) refresh(c *gin.Context) {
	var req RefreshRequest
	if !bind(c, &req) {
		return
	}
	pair, err := h.accounts.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Access: pair.Access, Refresh: pair.Refresh})
}

func (h *handlers) revoke(c *gin.Context) {
	var req RefreshRequest
	if !bind(c, &req) {
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), req.Refresh); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *handlers) detail(c *gin.Context) {
	profile, err := h.accounts.Profile(c.Request.Context(), accountID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(profile))
}

func (h *handlers) update(c *gin.Context) {
	var req UpdateRequest
	if !bind(c, &req) {
		return
	}
	profile, err := h.accounts.UpdateProfile(c.Request.Context(), accountID(c), req.FirstName, req.LastName)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(profile))
}

func (h *handlers) changeAuth(c *gin.Context) {
	var req ChangeAuthRequest
	if !bind(c, &req) {
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), accountID(c), req.OldPassword, req.NewPassword); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Success"})
}

func (h *handlers) delete(c *gin.Context) {
	if err := h.accounts.Delete(c.Request.Context(), accountID(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
