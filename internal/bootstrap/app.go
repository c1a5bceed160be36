package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"

	"lambda-janitor/internal/awslambda"
	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/notify"
	"lambda-janitor/internal/queue"
	"lambda-janitor/internal/report"
	"lambda-janitor/internal/schedule"
	"lambda-janitor/internal/server"
	"lambda-janitor/internal/services/health"
	"lambda-janitor/internal/shared/config"
	localstore "lambda-janitor/internal/shared/storage/object/local"
	s3store "lambda-janitor/internal/shared/storage/object/s3"
	"lambda-janitor/internal/shared/telemetry"
)

// App holds the wired janitor and its collaborators.
type App struct {
	Config    config.Config
	Provider  *awslambda.Provider
	Notifier  janitor.Notifier
	Reporters []janitor.Reporter
	Health    *health.Service
	Janitor   *janitor.Janitor
	// Runner serializes runs triggered by the scheduler and the ops API.
	Runner *janitor.Exclusive
}

// Clients carries the AWS API clients. Nil optional clients disable the feature
// they back.
type Clients struct {
	Lambda     awslambda.LambdaAPI
	CloudWatch awslambda.CloudWatchAPI
	SES        notify.SESAPI
	S3         s3store.API
	SQS        queue.SQSAPI
}

// Build loads AWS credentials and wires the application.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	configureTelemetry(cfg)

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return BuildWithClients(cfg, ClientsFromConfig(awsCfg))
}

// ClientsFromConfig builds real AWS clients from an AWS config.
func ClientsFromConfig(awsCfg aws.Config) Clients {
	return Clients{
		Lambda:     lambda.NewFromConfig(awsCfg),
		CloudWatch: cloudwatch.NewFromConfig(awsCfg),
		SES:        sesv2.NewFromConfig(awsCfg),
		S3:         s3.NewFromConfig(awsCfg),
		SQS:        sqs.NewFromConfig(awsCfg),
	}
}

// BuildWithClients wires the application around the given clients.
func BuildWithClients(cfg config.Config, clients Clients) (*App, error) {
	if clients.Lambda == nil {
		return nil, fmt.Errorf("bootstrap: lambda client is required")
	}

	providerOpts := awslambda.Options{ProtectLatestPublished: cfg.ProtectLatestPublished}
	if cfg.CheckInvocations && clients.CloudWatch != nil {
		providerOpts.Invocations = awslambda.NewInvocationTracker(clients.CloudWatch, invocationLookback(cfg))
	}
	provider := awslambda.NewProvider(clients.Lambda, providerOpts)

	var notifier janitor.Notifier
	if clients.SES != nil {
		notifier = notify.NewEmailer(notify.NewSESMailer(clients.SES))
	}

	healthSvc := health.NewService()
	reporters, err := buildReporters(cfg, clients)
	if err != nil {
		return nil, err
	}
	reporters = append([]janitor.Reporter{healthSvc}, reporters...)

	j, err := janitor.New(provider, notifier, cfg.JanitorOptions(), reporters...)
	if err != nil {
		return nil, err
	}

	telemetry.Info("bootstrap.ready", map[string]any{
		"retention_days":      cfg.RetentionDays,
		"alert_days":          cfg.AlertDays,
		"dry_run":             cfg.DryRun,
		"check_invocations":   providerOpts.Invocations != nil,
		"functions_in_scope":  len(cfg.FunctionNames),
		"excluded_functions":  len(cfg.ExcludedFunctions),
		"reporters":           len(reporters),
		"notification_active": notifier != nil && cfg.EmailSender != "",
	})

	return &App{
		Config:    cfg,
		Provider:  provider,
		Notifier:  notifier,
		Reporters: reporters,
		Health:    healthSvc,
		Janitor:   j,
		Runner:    janitor.NewExclusive(j),
	}, nil
}

// Router builds the ops HTTP engine for serve mode.
func (a *App) Router() *gin.Engine {
	return server.NewEngine(server.Options{
		OpsToken:      a.Config.OpsAPIToken,
		DefaultDryRun: a.Config.DryRun,
		RunRate:       server.DefaultRunRate,
	}, a.Runner, a.Health)
}

// Scheduler builds the cron scheduler for serve mode and exposes its next run
// through the health endpoint.
func (a *App) Scheduler() *schedule.Scheduler {
	s := schedule.New(a.Runner, a.Config.Schedule, a.Config.DryRun)
	a.Health.SetNextRun(s.NextRun)
	return s
}

func buildReporters(cfg config.Config, clients Clients) ([]janitor.Reporter, error) {
	var reporters []janitor.Reporter

	if strings.TrimSpace(cfg.ReportS3Bucket) != "" {
		if clients.S3 == nil {
			return nil, fmt.Errorf("bootstrap: REPORT_S3_BUCKET set but no s3 client")
		}
		store, err := s3store.New(clients.S3, cfg.ReportS3Bucket, cfg.ReportS3Prefix, "")
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, report.NewObjectSink(store))
	}
	if strings.TrimSpace(cfg.ReportDir) != "" {
		reporters = append(reporters, report.NewObjectSink(localstore.New(cfg.ReportDir)))
	}
	if strings.TrimSpace(cfg.ReportQueueURL) != "" {
		if clients.SQS == nil {
			return nil, fmt.Errorf("bootstrap: REPORT_QUEUE_URL set but no sqs client")
		}
		q, err := queue.NewSQSClient(clients.SQS, cfg.ReportQueueURL)
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, report.NewQueueSink(q))
	}
	return reporters, nil
}

// invocationLookback covers the whole retention window plus the current day.
func invocationLookback(cfg config.Config) time.Duration {
	return time.Duration(cfg.RetentionDays+1) * 24 * time.Hour
}

func loadAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region := strings.TrimSpace(cfg.AWSRegion); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func configureTelemetry(cfg config.Config) {
	telemetry.SetLevel(telemetry.ParseLevel(cfg.LogLevel))
	telemetry.SetBaseFields(map[string]any{
		"service": "lambda-janitor",
		"env":     cfg.Env,
	})
}
