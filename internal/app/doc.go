// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package app composes credential and session handling into the account use
// cases and translates their failures into the categories the HTTP layer
// reports.
package app
