// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package store owns the PostgreSQL connection pool and the embedded schema
// migrations shared by the account and session repositories.
package store
