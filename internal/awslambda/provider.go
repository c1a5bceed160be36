package awslambda

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/shared/telemetry"
)

const (
	latestQualifier    = "$LATEST"
	lastModifiedLayout = "2006-01-02T15:04:05.000-0700"
)

// LambdaAPI is the subset of the Lambda client the provider needs.
type LambdaAPI interface {
	lambda.ListFunctionsAPIClient
	lambda.ListVersionsByFunctionAPIClient
	lambda.ListAliasesAPIClient
	DeleteFunction(ctx context.Context, params *lambda.DeleteFunctionInput, optFns ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error)
}

// Options tunes how versions are listed.
type Options struct {
	// ProtectLatestPublished protects the highest numbered version of every function.
	ProtectLatestPublished bool
	// Invocations, when set, folds the last invocation day into LastUsedAt.
	Invocations *InvocationTracker
}

// Provider implements janitor.Provider on top of AWS Lambda.
type Provider struct {
	client LambdaAPI
	opts   Options
}

// NewProvider wraps a Lambda client.
func NewProvider(client LambdaAPI, opts Options) *Provider {
	return &Provider{client: client, opts: opts}
}

// ListFunctions returns the name of every function in the account and region.
func (p *Provider) ListFunctions(ctx context.Context) ([]string, error) {
	var names []string
	pager := lambda.NewListFunctionsPaginator(p.client, &lambda.ListFunctionsInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("lambda list functions: %w", err)
		}
		for _, fn := range page.Functions {
			if name := aws.ToString(fn.FunctionName); name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// ListVersions returns every published version of the function as seen at asOf.
// $LATEST is skipped.
func (p *Provider) ListVersions(ctx context.Context, functionName string, asOf time.Time) ([]janitor.VersionRecord, error) {
	var records []janitor.VersionRecord
	pager := lambda.NewListVersionsByFunctionPaginator(p.client, &lambda.ListVersionsByFunctionInput{
		FunctionName: aws.String(functionName),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("lambda list versions function=%s: %w", functionName, err)
		}
		for _, v := range page.Versions {
			version := aws.ToString(v.Version)
			if version == "" || version == latestQualifier {
				continue
			}
			records = append(records, p.toRecord(ctx, functionName, version, v, asOf))
		}
	}
	return records, nil
}

func (p *Provider) toRecord(ctx context.Context, functionName, version string, v lambdatypes.FunctionConfiguration, asOf time.Time) janitor.VersionRecord {
	rec := janitor.VersionRecord{
		FunctionName: functionName,
		Version:      version,
		Description:  aws.ToString(v.Description),
	}

	raw := aws.ToString(v.LastModified)
	if modified, err := ParseLastModified(raw); err == nil {
		rec.LastModified = modified
		used := modified
		rec.LastUsedAt = &used
	} else if raw != "" {
		telemetry.Warn("lambda.version.last_modified_unparsable", map[string]any{
			"function_name": functionName,
			"version":       version,
			"last_modified": raw,
		})
	}

	if p.opts.Invocations == nil {
		return rec
	}
	invoked, err := p.opts.Invocations.LastInvocation(ctx, functionName, version, asOf)
	if err != nil {
		telemetry.Error("lambda.version.invocations_failed", map[string]any{
			"function_name": functionName,
			"version":       version,
			"error":         err.Error(),
		})
		return rec
	}
	if invoked != nil && (rec.LastUsedAt == nil || invoked.After(*rec.LastUsedAt)) {
		rec.LastUsedAt = invoked
	}
	return rec
}

// ProtectedVersions returns the versions referenced by aliases (including weighted
// routing targets) and, if enabled, the newest published version.
func (p *Provider) ProtectedVersions(ctx context.Context, functionName string) (map[string]struct{}, error) {
	protected := make(map[string]struct{})
	pager := lambda.NewListAliasesPaginator(p.client, &lambda.ListAliasesInput{
		FunctionName: aws.String(functionName),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("lambda list aliases function=%s: %w", functionName, err)
		}
		for _, alias := range page.Aliases {
			if v := aws.ToString(alias.FunctionVersion); v != "" && v != latestQualifier {
				protected[v] = struct{}{}
			}
			if alias.RoutingConfig != nil {
				for v := range alias.RoutingConfig.AdditionalVersionWeights {
					protected[v] = struct{}{}
				}
			}
		}
	}

	if p.opts.ProtectLatestPublished {
		newest, err := p.newestPublished(ctx, functionName)
		if err != nil {
			return nil, err
		}
		if newest != "" {
			protected[newest] = struct{}{}
		}
	}
	return protected, nil
}

func (p *Provider) newestPublished(ctx context.Context, functionName string) (string, error) {
	var (
		newest    string
		newestNum int64 = -1
	)
	pager := lambda.NewListVersionsByFunctionPaginator(p.client, &lambda.ListVersionsByFunctionInput{
		FunctionName: aws.String(functionName),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("lambda list versions function=%s: %w", functionName, err)
		}
		for _, v := range page.Versions {
			num, err := strconv.ParseInt(aws.ToString(v.Version), 10, 64)
			if err != nil {
				continue
			}
			if num > newestNum {
				newestNum = num
				newest = aws.ToString(v.Version)
			}
		}
	}
	return newest, nil
}

// DeleteVersion deletes one published version. A missing version maps to
// janitor.ErrVersionNotFound.
func (p *Provider) DeleteVersion(ctx context.Context, functionName, version string) error {
	if version == "" || version == latestQualifier {
		return fmt.Errorf("refusing to delete qualifier %q of %s", version, functionName)
	}
	_, err := p.client.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(functionName),
		Qualifier:    aws.String(version),
	})
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return fmt.Errorf("lambda delete function=%s version=%s: %w", functionName, version, janitor.ErrVersionNotFound)
	}
	return fmt.Errorf("lambda delete function=%s version=%s: %w", functionName, version, err)
}

// ParseLastModified parses the timestamp format Lambda reports for LastModified.
func ParseLastModified(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty last modified")
	}
	if t, err := time.Parse(lastModifiedLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last modified %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func isNotFound(err error) bool {
	var nf *lambdatypes.ResourceNotFoundException
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}

var _ janitor.Provider = (*Provider)(nil)
