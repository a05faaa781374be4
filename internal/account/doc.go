// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package account holds the user account entity and the credential rules
// applied to it.
//
// # Domain Types
//
// Accounts should be created with NewAccount, which validates the identity
// fields and requires a non-empty password hash. Repository implementations
// receive accounts built this way.
//
// # Password Policy
//
// PasswordPolicy evaluates an ordered list of Rule values supplied at
// construction. Every rule runs on every call; the result lists each failed
// rule once.
//
// # Services
//
// CredentialService coordinates registration, authentication, profile
// changes, password changes and deletion. It never returns password hashes
// to callers; Profile is the outward projection of an account.
package account
