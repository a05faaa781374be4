// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package app

import (
	"github.com/anerua/Credity/internal/account"
	"github.com/anerua/Credity/internal/session"
	"github.com/anerua/Credity/pkg/errutil"
)

// Category is the externally visible kind of a failed use case.
type Category string

// Error categories.
const (
	CategoryValidation     Category = "validation"
	CategoryAuthentication Category = "authentication"
	CategoryNotFound       Category = "not_found"
	CategoryInternal       Category = "internal"
)

// Machine-readable codes and details of authentication failures.
const (
	CodeNoActiveAccount  = "no_active_account"
	CodeTokenNotValid    = "token_not_valid"
	CodeUserNotFound     = "user_not_found"
	CodeAccountLocked    = "account_locked"
	CodeNotAuthenticated = "not_authenticated"
	CodeServerError      = "server_error"

	DetailNoActiveAccount   = "No active account found with the given credentials"
	DetailNoAccountForToken = "No active account found for the given token"
	DetailTokenNotValid     = "Token is invalid or expired"
	DetailUserNotFound      = "User not found"
	DetailAccountLocked     = "Account is temporarily locked. Try again later."
	DetailNotAuthenticated  = "Authentication credentials were not provided."
	DetailServerError       = "A server error occurred."
)

// Error is the only error type AccountService returns. Validation errors
// carry Fields; every other category carries Code and Detail.
type Error struct {
	Category Category
	Code     string
	Detail   string
	Fields   map[string][]string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Category) + ": " + e.cause.Error()
	}
	return string(e.Category) + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.cause
}

// scope selects how not-found and inactive outcomes are reported.
type scope int

const (
	// scopeLogin hides whether the email exists.
	scopeLogin scope = iota
	// scopeToken covers refresh and logout requests.
	scopeToken
	// scopeAccount covers requests made with a verified access token.
	scopeAccount
)

// NotAuthenticated is returned for requests without usable credentials.
func NotAuthenticated() *Error {
	return authError(CodeNotAuthenticated, DetailNotAuthenticated, nil)
}

func authError(code, detail string, cause error) *Error {
	return &Error{Category: CategoryAuthentication, Code: code, Detail: detail, cause: cause}
}

func validationError(fields map[string][]string, cause error) *Error {
	return &Error{Category: CategoryValidation, Fields: fields, cause: cause}
}

func translate(sc scope, err error) *Error {
	switch errutil.Code(err) {
	case account.CodeValidation, account.CodePasswordPolicy, account.CodeDuplicateEmail:
		return validationError(account.FieldsOf(err), err)

	case account.CodeInvalidCredentials:
		if fields := account.FieldsOf(err); len(fields) > 0 {
			return validationError(fields, err)
		}
		return authError(CodeNoActiveAccount, DetailNoActiveAccount, err)

	case account.CodeAccountLocked:
		return authError(CodeAccountLocked, DetailAccountLocked, err)

	case account.CodeNotFound, account.CodeInactive:
		switch sc {
		case scopeLogin:
			return authError(CodeNoActiveAccount, DetailNoActiveAccount, err)
		case scopeToken:
			return authError(CodeNoActiveAccount, DetailNoAccountForToken, err)
		default:
			return &Error{Category: CategoryNotFound, Code: CodeUserNotFound, Detail: DetailUserNotFound, cause: err}
		}

	case session.CodeInvalidToken:
		return authError(CodeTokenNotValid, DetailTokenNotValid, err)
	}

	return &Error{Category: CategoryInternal, Code: CodeServerError, Detail: DetailServerError, cause: err}
}
