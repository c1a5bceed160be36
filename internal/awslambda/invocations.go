package awslambda

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	metricNamespace = "AWS/Lambda"
	metricName      = "Invocations"
	metricPeriod    = int32(86400)
)

// CloudWatchAPI is the subset of the CloudWatch client used for invocation lookups.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// InvocationTracker finds the most recent day a version was invoked.
type InvocationTracker struct {
	client   CloudWatchAPI
	lookback time.Duration
}

// NewInvocationTracker looks back over the given window ending at the run's as-of time.
func NewInvocationTracker(client CloudWatchAPI, lookback time.Duration) *InvocationTracker {
	return &InvocationTracker{client: client, lookback: lookback}
}

// LastInvocation returns the start of the latest daily period with at least one
// invocation in [end-lookback, end], or nil when there is none.
func (t *InvocationTracker) LastInvocation(ctx context.Context, functionName, version string, end time.Time) (*time.Time, error) {
	if t.lookback <= 0 {
		return nil, nil
	}
	end = end.UTC()
	start := end.Add(-t.lookback)

	out, err := t.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(metricNamespace),
		MetricName: aws.String(metricName),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("FunctionName"), Value: aws.String(functionName)},
			{Name: aws.String("Resource"), Value: aws.String(functionName + ":" + version)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(metricPeriod),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticSum},
	})
	if err != nil {
		return nil, fmt.Errorf("cloudwatch invocations %s:%s: %w", functionName, version, err)
	}

	var latest *time.Time
	for _, dp := range out.Datapoints {
		if dp.Timestamp == nil || aws.ToFloat64(dp.Sum) <= 0 {
			continue
		}
		ts := dp.Timestamp.UTC()
		if ts.After(end) {
			continue
		}
		if latest == nil || ts.After(*latest) {
			latest = &ts
		}
	}
	return latest, nil
}
