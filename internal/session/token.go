// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// MinSecretLength is the minimum HS256 key size in bytes.
const MinSecretLength = 32

// Claims are the JWT claims of both token types.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Signer signs and verifies HS256 tokens.
type Signer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewSigner creates a Signer. The secret must be at least MinSecretLength bytes.
func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("SESSION_SIGNER_INVALID").
			With("min_length", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{key: key, issuer: issuer, now: time.Now}, nil
}

// Sign produces a compact JWT for claims. The issuer is filled in.
func (s *Signer) Sign(claims Claims) (string, error) {
	claims.Issuer = s.issuer
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	return token, nil
}

// Parse verifies signature, issuer, expiry and token type.
func (s *Signer) Parse(token, tokenType string) (*Claims, error) {
	if token == "" {
		return nil, errInvalidToken("token is empty", nil)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}); err != nil {
		return nil, errInvalidToken("token rejected", err)
	}

	if claims.TokenType != tokenType {
		return nil, oops.Code(CodeInvalidToken).
			With("expected", tokenType).
			With("actual", claims.TokenType).
			Errorf("token has wrong type")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errInvalidToken("token lacks subject or id", nil)
	}
	return claims, nil
}
