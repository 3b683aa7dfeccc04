package router

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cobranzas/backend/internal/infrastructure/logger"
	"github.com/cobranzas/backend/internal/interfaces/http/handler"
	"github.com/cobranzas/backend/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers served by the console
type Handlers struct {
	Orders    *handler.OrderHandler
	Customers *handler.CustomerHandler
	System    *handler.SystemHandler
}

// Options configures the console middleware stack
type Options struct {
	Logger         *zap.Logger
	TrustedProxies []string
	CORS           middleware.CORSConfig
	Security       middleware.SecurityConfig
	// MaxBodySize of 0 leaves request bodies unbounded
	MaxBodySize int64
	Tracing     middleware.TracingConfig
	Metrics     middleware.HTTPMetricsConfig
	// Authenticate identifies the operator: JWT or the X-Operator header
	Authenticate gin.HandlerFunc
	// ActionLimiter throttles order actions per operator; nil disables it
	ActionLimiter *middleware.RateLimiter
}

// NewEngine builds the console gin engine with its middleware stack and routes.
//
// Middleware order: RequestID, Recovery, request logging, security headers,
// CORS, body limit, server spans, span status, HTTP metrics. API routes then
// authenticate the operator before the operator is added to the span.
func NewEngine(h Handlers, opts Options) (*gin.Engine, error) {
	if h.Orders == nil || h.Customers == nil || h.System == nil {
		return nil, errors.New("router: all handlers are required")
	}
	if opts.Authenticate == nil {
		return nil, errors.New("router: an operator authentication middleware is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(opts.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
			return nil, err
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.SecureWithConfig(opts.Security))
	engine.Use(middleware.CORSWithConfig(opts.CORS))
	if opts.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(opts.MaxBodySize))
	}
	engine.Use(middleware.TracingWithConfig(opts.Tracing))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(opts.Metrics))

	// Probes stay outside authentication
	engine.GET("/health", h.System.Health)
	engine.GET("/health/ready", h.System.Ready)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(opts.Authenticate, middleware.TracingAttributeInjector())

	orders := NewDomainGroup("orders", "/orders")
	orders.GET("", h.Orders.List).
		GET("/export", h.Orders.Export).
		POST("/:id/analysis", h.Orders.Analyze).
		GET("/:id/audit", h.Orders.Audit)

	actions := orders.Group("order-actions", "/:id")
	actions.Use(middleware.RateLimit(opts.ActionLimiter))
	actions.POST("/charge", h.Orders.Charge).
		POST("/difference-request", h.Orders.RequestDifference).
		POST("/rejection", h.Orders.Reject).
		POST("/markers", h.Orders.Tag)

	customers := NewDomainGroup("customers", "/customers")
	customers.GET("", h.Customers.Search).
		GET("/:id", h.Customers.Get)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.Info)

	r.Register(orders).Register(customers).Register(system)
	r.Setup()

	return engine, nil
}
