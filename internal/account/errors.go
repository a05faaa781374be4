// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package account

import (
	"errors"
	"sort"
	"strings"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by repositories when an email is already taken.
var ErrDuplicateEmail = errors.New("duplicate email")

// Error codes for account failures.
const (
	CodeValidation         = "ACCOUNT_VALIDATION_FAILED"
	CodeDuplicateEmail     = "ACCOUNT_DUPLICATE_EMAIL"
	CodePasswordPolicy     = "ACCOUNT_PASSWORD_POLICY"
	CodeNotFound           = "ACCOUNT_NOT_FOUND"
	CodeInactive           = "ACCOUNT_INACTIVE"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
)

// Field error messages.
const (
	MsgBlank             = "This field may not be blank."
	MsgInvalidEmail      = "Enter a valid email address."
	MsgDuplicateEmail    = "user with this email address already exists."
	MsgIncorrectPassword = "The password provided is incorrect"
)

// FieldErrors collects messages keyed by request field name.
type FieldErrors map[string][]string

// Add appends a message for field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Err returns a validation error carrying the collected fields, or nil if
// nothing was added.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return oops.Code(CodeValidation).
		With("fields", map[string][]string(f)).
		Errorf("invalid fields: %s", strings.Join(names, ", "))
}

// FieldsOf returns the per-field messages attached to err, if any.
func FieldsOf(err error) map[string][]string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	fields, _ := oopsErr.Context()["fields"].(map[string][]string)
	return fields
}

// ViolationsOf returns the password policy violations attached to err, if any.
func ViolationsOf(err error) []Violation {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	violations, _ := oopsErr.Context()["violations"].([]Violation)
	return violations
}

func errDuplicateEmail(email string, cause error) error {
	builder := oops.Code(CodeDuplicateEmail).
		With("email", email).
		With("fields", map[string][]string{"email": {MsgDuplicateEmail}})
	if cause != nil {
		return builder.Wrap(cause)
	}
	return builder.Wrap(ErrDuplicateEmail)
}

func errNotFound(id string, cause error) error {
	return oops.Code(CodeNotFound).With("account_id", id).Wrap(cause)
}

func errInvalidCredentials(fields map[string][]string) error {
	builder := oops.Code(CodeInvalidCredentials)
	if fields != nil {
		builder = builder.With("fields", fields)
	}
	return builder.Errorf("invalid email or password")
}
