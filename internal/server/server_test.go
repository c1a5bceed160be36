package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/services/health"
	"lambda-janitor/internal/shared/telemetry"
)

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

type stubRunner struct {
	runOpts []janitor.RunOptions
	planNow []time.Time
	summary janitor.Summary
	runErr  error
	plans   []janitor.FunctionPlan
	planErr error
}

func (s *stubRunner) Run(ctx context.Context, opts janitor.RunOptions) (janitor.Summary, error) {
	s.runOpts = append(s.runOpts, opts)
	return s.summary, s.runErr
}

func (s *stubRunner) Plan(ctx context.Context, now time.Time) ([]janitor.FunctionPlan, error) {
	s.planNow = append(s.planNow, now)
	return s.plans, s.planErr
}

func newTestEngine(t *testing.T, runner janitor.Runner, opts Options) (*gin.Engine, *health.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	prev := telemetry.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { telemetry.SetOutput(prev) })

	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	healthSvc := health.NewService()
	return NewEngine(opts, runner, healthSvc), healthSvc
}

func do(engine *gin.Engine, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	engine, healthSvc := newTestEngine(t, &stubRunner{}, Options{})

	resp := do(engine, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"ok":true`)

	_ = healthSvc.Publish(context.Background(), janitor.Summary{RunID: "run-9", Error: "boom"})
	resp = do(engine, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), `"runId":"run-9"`)
}

func TestMetricsEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t, &stubRunner{}, Options{})

	resp := do(engine, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "lambda_janitor_runs_started_total")
}

func TestPlanUsesNowOverride(t *testing.T) {
	runner := &stubRunner{plans: []janitor.FunctionPlan{{FunctionName: "orders"}}}
	engine, _ := newTestEngine(t, runner, Options{OpsToken: "tok"})

	resp := do(engine, http.MethodGet, "/api/v1/plan?now=2024-07-01T00:00:00Z", "tok")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, runner.planNow, 1)
	assert.True(t, runner.planNow[0].Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.Contains(t, resp.Body.String(), `"functionName":"orders"`)

	resp = do(engine, http.MethodGet, "/api/v1/plan", "tok")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, runner.planNow[1].Equal(fixedNow))
}

func TestPlanErrors(t *testing.T) {
	runner := &stubRunner{planErr: errors.New("access denied")}
	engine, _ := newTestEngine(t, runner, Options{OpsToken: "tok"})

	resp := do(engine, http.MethodGet, "/api/v1/plan?now=yesterday", "tok")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(engine, http.MethodGet, "/api/v1/plan", "tok")
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, "listing_failed", errorCode(t, resp))
}

func TestPlanRequiresToken(t *testing.T) {
	runner := &stubRunner{plans: []janitor.FunctionPlan{{FunctionName: "orders"}}}
	engine, _ := newTestEngine(t, runner, Options{OpsToken: "tok"})

	resp := do(engine, http.MethodGet, "/api/v1/plan", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = do(engine, http.MethodGet, "/api/v1/plan", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	engine, _ = newTestEngine(t, runner, Options{})
	resp = do(engine, http.MethodGet, "/api/v1/plan", "anything")
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Empty(t, runner.planNow)
	assert.NotContains(t, resp.Body.String(), "orders")
}

func TestRunRequiresToken(t *testing.T) {
	runner := &stubRunner{}
	engine, _ := newTestEngine(t, runner, Options{OpsToken: "tok"})

	resp := do(engine, http.MethodPost, "/api/v1/runs", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	engine, _ = newTestEngine(t, runner, Options{})
	resp = do(engine, http.MethodPost, "/api/v1/runs", "anything")
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Empty(t, runner.runOpts)
}

func TestRunTriggersJanitor(t *testing.T) {
	runner := &stubRunner{summary: janitor.Summary{RunID: "run-1", Deleted: 3}}
	engine, _ := newTestEngine(t, runner, Options{OpsToken: "tok", DefaultDryRun: true})

	resp := do(engine, http.MethodPost, "/api/v1/runs", "tok")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, runner.runOpts[0].DryRun, "default dry run should apply")
	assert.True(t, runner.runOpts[0].Now.Equal(fixedNow))

	var sum janitor.Summary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sum))
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, 3, sum.Deleted)

	resp = do(engine, http.MethodPost, "/api/v1/runs?dryRun=false", "tok")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, runner.runOpts[1].DryRun)

	resp = do(engine, http.MethodPost, "/api/v1/runs?dryRun=perhaps", "tok")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRunErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "in progress", err: janitor.ErrRunInProgress, wantCode: http.StatusConflict, wantBody: "run_in_progress"},
		{name: "configuration", err: janitor.ConfigurationError{Key: "EMAIL_SENDER", Reason: "required"}, wantCode: http.StatusInternalServerError, wantBody: "configuration_error"},
		{name: "listing", err: janitor.ListingError{Err: errors.New("denied")}, wantCode: http.StatusBadGateway, wantBody: "listing_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{summary: janitor.Summary{RunID: "run-x"}, runErr: tt.err}
			engine, _ := newTestEngine(t, runner, Options{OpsToken: "tok"})

			resp := do(engine, http.MethodPost, "/api/v1/runs", "tok")
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantBody, errorCode(t, resp))
		})
	}
}

func TestRunConflictWithExclusiveRunner(t *testing.T) {
	blocking := &gatedRunner{started: make(chan struct{}), release: make(chan struct{})}
	exclusive := janitor.NewExclusive(blocking)
	engine, _ := newTestEngine(t, exclusive, Options{OpsToken: "tok"})

	done := make(chan int)
	go func() {
		done <- do(engine, http.MethodPost, "/api/v1/runs", "tok").Code
	}()
	<-blocking.started

	resp := do(engine, http.MethodPost, "/api/v1/runs", "tok")
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), "run_in_progress"))

	close(blocking.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestRunRateLimited(t *testing.T) {
	runner := &stubRunner{summary: janitor.Summary{RunID: "run-1"}}
	engine, _ := newTestEngine(t, runner, Options{OpsToken: "tok", RunRate: DefaultRunRate})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(engine, http.MethodPost, "/api/v1/runs", "tok").Code)
	}
	resp := do(engine, http.MethodPost, "/api/v1/runs", "tok")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

type gatedRunner struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedRunner) Run(ctx context.Context, opts janitor.RunOptions) (janitor.Summary, error) {
	close(g.started)
	<-g.release
	return janitor.Summary{RunID: "gated"}, nil
}

func (g *gatedRunner) Plan(ctx context.Context, now time.Time) ([]janitor.FunctionPlan, error) {
	return nil, nil
}
