// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	// DefaultPrefix is where the account routes mount unless configured.
	DefaultPrefix = "/api/account"
	// DefaultServiceName names the server spans.
	DefaultServiceName = "credity"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// Prefix is prepended to every route.
	Prefix string
	// Limiter throttles the unauthenticated routes; nil disables it.
	Limiter *RateLimiter
	// Observer receives one observation per request; nil disables it.
	Observer RequestObserver
	// ServiceName is the otel server name; empty uses DefaultServiceName.
	ServiceName string
	// Propagator extracts the caller's trace context from request headers.
	// Nil uses the global otel propagator.
	Propagator propagation.TextMapPropagator
	// TrustedProxies lists the IPs or CIDRs whose forwarding headers are
	// believed when resolving the client IP. Empty trusts no proxy.
	TrustedProxies []string
	Logger         *slog.Logger
}

// NewRouter builds the gin engine serving the account API.
func NewRouter(accounts Accounts, cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		cfg.Logger.Error("invalid trusted proxies, trusting none",
			"trusted_proxies", cfg.TrustedProxies, "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
	r.Use(gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName, otelgin.WithPropagators(cfg.Propagator)),
		requestLogger(cfg.Logger))
	if cfg.Observer != nil {
		r.Use(observe(cfg.Observer))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorBody{Detail: "Not found.", Code: "not_found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorBody{Detail: "Method not allowed.", Code: "method_not_allowed"})
	})

	h := &handlers{accounts: accounts}
	api := r.Group(cfg.Prefix)

	public := api.Group("", cfg.Limiter.Handler())
	public.POST("/register", h.register)
	public.POST("/token", h.token)
	public.POST("/token/refresh", h.refresh)
	public.POST("/token/revoke", h.revoke)

	private := api.Group("", requireAccount(accounts))
	private.GET("/detail", h.detail)
	private.PUT("/update", h.update)
	private.PUT("/change-auth", h.changeAuth)
	private.DELETE("/delete", h.delete)

	return r
}
