package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-janitor

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"lambda-janitor/internal/bootstrap"
	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/shared/config"
	"lambda-janitor/internal/shared/telemetry"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App

	loadConfig = config.Load
	buildApp   = bootstrap.Build
	clock      = time.Now
)

func initApp(ctx context.Context) {
	cfg, err := loadConfig()
	if err != nil {
		initErr = err
		return
	}
	built, err := buildApp(ctx, cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

// handler runs one cleanup pass per scheduled event. Item-level failures are reported in
// the summary and logs; only configuration and total listing failures fail the invocation.
func handler(ctx context.Context, event events.CloudWatchEvent) (janitor.Summary, error) {
	initOnce.Do(func() { initApp(ctx) })
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr.Error()})
		return janitor.Summary{}, initErr
	}

	now := event.Time
	if now.IsZero() {
		now = clock()
	}
	sum, err := app.Runner.Run(ctx, janitor.RunOptions{Now: now.UTC(), DryRun: app.Config.DryRun})
	if err != nil {
		telemetry.Error("lambda.run_failed", map[string]any{
			"run_id":   sum.RunID,
			"event_id": event.ID,
			"error":    err.Error(),
		})
		return sum, err
	}
	return sum, nil
}

func main() {
	lambda.Start(handler)
}
