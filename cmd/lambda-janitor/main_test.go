package main

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"lambda-janitor/internal/bootstrap"
	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/shared/config"
	"lambda-janitor/internal/shared/telemetry"
)

type fakeLambda struct {
	listErr error
	deleted []string
}

func (f *fakeLambda) ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &lambda.ListFunctionsOutput{Functions: []lambdatypes.FunctionConfiguration{{FunctionName: aws.String("orders")}}}, nil
}

func (f *fakeLambda) ListVersionsByFunction(ctx context.Context, params *lambda.ListVersionsByFunctionInput, optFns ...func(*lambda.Options)) (*lambda.ListVersionsByFunctionOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &lambda.ListVersionsByFunctionOutput{Versions: []lambdatypes.FunctionConfiguration{
		{Version: aws.String("$LATEST"), LastModified: aws.String("2024-06-29T00:00:00.000+0000")},
		{Version: aws.String("1"), LastModified: aws.String("2024-05-01T00:00:00.000+0000")},
		{Version: aws.String("2"), LastModified: aws.String("2024-06-25T00:00:00.000+0000")},
	}}, nil
}

func (f *fakeLambda) ListAliases(ctx context.Context, params *lambda.ListAliasesInput, optFns ...func(*lambda.Options)) (*lambda.ListAliasesOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &lambda.ListAliasesOutput{}, nil
}

func (f *fakeLambda) DeleteFunction(ctx context.Context, params *lambda.DeleteFunctionInput, optFns ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.FunctionName)+":"+aws.ToString(params.Qualifier))
	return &lambda.DeleteFunctionOutput{}, nil
}

func resetApp(t *testing.T, cfg config.Config, cfgErr error, client *fakeLambda) {
	t.Helper()
	prevOut := telemetry.SetOutput(&bytes.Buffer{})
	prevLoad, prevBuild, prevClock := loadConfig, buildApp, clock

	initOnce = sync.Once{}
	initErr = nil
	app = nil
	loadConfig = func() (config.Config, error) { return cfg, cfgErr }
	buildApp = func(ctx context.Context, cfg config.Config) (*bootstrap.App, error) {
		_ = ctx
		return bootstrap.BuildWithClients(cfg, bootstrap.Clients{Lambda: client})
	}

	t.Cleanup(func() {
		telemetry.SetOutput(prevOut)
		loadConfig, buildApp, clock = prevLoad, prevBuild, prevClock
		initOnce = sync.Once{}
		initErr = nil
		app = nil
	})
}

func baseConfig() config.Config {
	return config.Config{
		Env:             "prod",
		RetentionDays:   30,
		AlertDays:       7,
		NeverUsedPolicy: janitor.NeverUsedDelete,
	}
}

func TestHandlerUsesEventTime(t *testing.T) {
	client := &fakeLambda{}
	resetApp(t, baseConfig(), nil, client)

	event := events.CloudWatchEvent{ID: "evt-1", Time: time.Date(2024, 6, 30, 3, 0, 0, 0, time.UTC)}
	sum, err := handler(context.Background(), event)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !sum.AsOf.Equal(event.Time) {
		t.Fatalf("asOf = %v", sum.AsOf)
	}
	if len(client.deleted) != 1 || client.deleted[0] != "orders:1" {
		t.Fatalf("deleted = %v", client.deleted)
	}
	if sum.Kept != 1 || sum.Deleted != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestHandlerFallsBackToClock(t *testing.T) {
	client := &fakeLambda{}
	resetApp(t, baseConfig(), nil, client)
	fixed := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	clock = func() time.Time { return fixed }

	sum, err := handler(context.Background(), events.CloudWatchEvent{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !sum.AsOf.Equal(fixed) {
		t.Fatalf("asOf = %v", sum.AsOf)
	}
}

func TestHandlerRespectsDryRun(t *testing.T) {
	cfg := baseConfig()
	cfg.DryRun = true
	client := &fakeLambda{}
	resetApp(t, cfg, nil, client)

	sum, err := handler(context.Background(), events.CloudWatchEvent{Time: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(client.deleted) != 0 || sum.WouldDelete != 1 || !sum.DryRun {
		t.Fatalf("dry run deleted=%v summary=%+v", client.deleted, sum)
	}
}

func TestHandlerReturnsConfigurationError(t *testing.T) {
	resetApp(t, config.Config{}, janitor.ConfigurationError{Key: "ALERT_DAYS", Reason: "must not exceed RETENTION_DAYS"}, &fakeLambda{})

	if _, err := handler(context.Background(), events.CloudWatchEvent{}); !janitor.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	// Initialization is attempted once per container.
	if _, err := handler(context.Background(), events.CloudWatchEvent{}); !janitor.IsConfigurationError(err) {
		t.Fatalf("expected cached configuration error, got %v", err)
	}
}

func TestHandlerReturnsListingError(t *testing.T) {
	resetApp(t, baseConfig(), nil, &fakeLambda{listErr: errors.New("access denied")})

	_, err := handler(context.Background(), events.CloudWatchEvent{Time: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)})
	var listErr janitor.ListingError
	if !errors.As(err, &listErr) {
		t.Fatalf("expected listing error, got %v", err)
	}
}
