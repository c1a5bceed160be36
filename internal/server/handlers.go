package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/services/health"
	"lambda-janitor/internal/shared/server/middleware"
	"lambda-janitor/internal/shared/server/respond"
)

type handler struct {
	runner        janitor.Runner
	healthSvc     *health.Service
	defaultDryRun bool
	now           func() time.Time
}

func newHandler(opts Options, runner janitor.Runner, healthSvc *health.Service) *handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &handler{runner: runner, healthSvc: healthSvc, defaultDryRun: opts.DefaultDryRun, now: now}
}

func (h *handler) health(c *gin.Context) {
	st := h.healthSvc.Status()
	status := http.StatusOK
	if !st.OK {
		status = http.StatusServiceUnavailable
	}
	respond.JSON(c, status, st)
}

func (h *handler) plan(c *gin.Context) {
	now, ok := h.queryNow(c)
	if !ok {
		return
	}
	plans, err := h.runner.Plan(c.Request.Context(), now)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "listing_failed", err.Error(), nil)
		return
	}
	respond.OK(c, gin.H{
		"asOf":      now.UTC(),
		"functions": plans,
	})
}

func (h *handler) run(c *gin.Context) {
	now, ok := h.queryNow(c)
	if !ok {
		return
	}
	dryRun := h.defaultDryRun
	if raw := strings.TrimSpace(c.Query("dryRun")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respond.BadRequest(c, "dryRun must be a boolean")
			return
		}
		dryRun = v
	}

	sum, err := h.runner.Run(c.Request.Context(), janitor.RunOptions{Now: now, DryRun: dryRun})
	if sum.RunID != "" {
		c.Set(middleware.RunIDKey, sum.RunID)
	}
	switch {
	case errors.Is(err, janitor.ErrRunInProgress):
		respond.Error(c, http.StatusConflict, "run_in_progress", "a run is already in progress", nil)
	case janitor.IsConfigurationError(err):
		respond.Error(c, http.StatusInternalServerError, "configuration_error", err.Error(), sum)
	case err != nil:
		respond.Error(c, http.StatusBadGateway, "listing_failed", err.Error(), sum)
	default:
		respond.OK(c, sum)
	}
}

// queryNow reads an optional RFC3339 "now" override.
func (h *handler) queryNow(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("now"))
	if raw == "" {
		return h.now().UTC(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respond.BadRequest(c, "now must be an RFC3339 timestamp")
		return time.Time{}, false
	}
	return t.UTC(), true
}
