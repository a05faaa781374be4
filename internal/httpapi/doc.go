// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package httpapi exposes the account use cases as a JSON API on gin.
package httpapi
