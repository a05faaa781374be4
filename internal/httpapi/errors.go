// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anerua/Credity/internal/app"
)

// ErrorBody is the response of non-validation failures.
type ErrorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

const wwwAuthenticate = `Bearer realm="api"`

// statusFor maps an error category to its HTTP status.
func statusFor(category app.Category) int {
	switch category {
	case app.CategoryValidation:
		return http.StatusBadRequest
	case app.CategoryAuthentication, app.CategoryNotFound:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes err as the response and stops the handler chain.
// Validation failures render as {"field": ["message"]}.
func abortWithError(c *gin.Context, err error) {
	var appErr *app.Error
	if !errors.As(err, &appErr) {
		appErr = &app.Error{Category: app.CategoryInternal, Code: app.CodeServerError, Detail: app.DetailServerError}
	}
	_ = c.Error(err) //nolint:errcheck // recorded for the request logger

	status := statusFor(appErr.Category)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", wwwAuthenticate)
	}
	if appErr.Category == app.CategoryValidation {
		c.AbortWithStatusJSON(status, appErr.Fields)
		return
	}
	c.AbortWithStatusJSON(status, ErrorBody{Detail: appErr.Detail, Code: appErr.Code})
}

func abortParseError(c *gin.Context, err error) {
	_ = c.Error(err) //nolint:errcheck // recorded for the request logger
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{
		Detail: "JSON parse error - " + err.Error(),
		Code:   "parse_error",
	})
}
