// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package session issues and verifies signed access and refresh tokens.
//
// Access tokens are short-lived and stateless. Every refresh token carries a
// unique jti recorded in a RefreshTokenStore, so refresh tokens can be
// revoked one at a time or all at once for an account.
package session
