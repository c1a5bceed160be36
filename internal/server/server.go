package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/services/health"
	"lambda-janitor/internal/shared/metrics"
	sharedserver "lambda-janitor/internal/shared/server"
	"lambda-janitor/internal/shared/server/middleware"
)

// Options configures the ops server.
type Options struct {
	OpsToken      string
	DefaultDryRun bool
	// RunRate limits triggered runs per client; zero disables the limit.
	RunRate middleware.RateLimitRule
	Now     func() time.Time
}

// DefaultRunRate allows a burst of two triggered runs, then one per minute.
var DefaultRunRate = middleware.RateLimitRule{Rate: 1.0 / 60, Burst: 2}

// NewEngine builds the ops engine with routes registered. runner should be a
// *janitor.Exclusive shared with the scheduler so runs never overlap.
func NewEngine(opts Options, runner janitor.Runner, healthSvc *health.Service) *gin.Engine {
	engine := sharedserver.NewEngine("/metrics", "/api/v1/health")
	h := newHandler(opts, runner, healthSvc)

	engine.GET("/metrics", metrics.Handler())

	api := engine.Group("/api/v1")
	api.GET("/health", h.health)

	// Plan lists every function and version in the account, so it shares the run token.
	ops := api.Group("", middleware.OpsToken(opts.OpsToken))
	ops.GET("/plan", h.plan)
	ops.POST("/runs",
		middleware.RateLimit("runs", opts.RunRate, nil),
		h.run,
	)
	return engine
}
