package config

import (
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/schedule"
)

const (
	defaultRetentionDays = 30
	defaultAlertDays     = 7
	defaultSubject       = "Lambda Cleanup Notification"
	defaultReportPrefix  = "lambda-janitor/"
	defaultSchedule      = "0 3 * * *"
)

// Config holds application configuration. It is loaded once and never mutated.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	AWSRegion string

	RetentionDays          int
	AlertDays              int
	NeverUsedPolicy        janitor.NeverUsedPolicy
	FunctionNames          []string
	ExcludedFunctions      []string
	DryRun                 bool
	CheckInvocations       bool
	ProtectLatestPublished bool

	EmailSender     string
	EmailRecipients []string
	EmailSubject    string

	ReportS3Bucket string
	ReportS3Prefix string
	ReportDir      string
	ReportQueueURL string

	Schedule    string
	OpsAPIToken string
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed values are reported as janitor.ConfigurationError.
func Load() (Config, error) {
	env := normalizeEnv(getEnv("ENV", "dev"))
	if env == "dev" && !IsLambdaRuntime() {
		// Best-effort load of local env files for dev convenience.
		loadEnvFiles(".env", "cmd/.env")
	}

	cfg := Config{
		Env:               env,
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AWSRegion:         getEnv("AWS_REGION", ""),
		FunctionNames:     splitAndTrim(os.Getenv("FUNCTION_NAMES")),
		ExcludedFunctions: splitAndTrim(os.Getenv("EXCLUDED_FUNCTIONS")),
		EmailSender:       strings.TrimSpace(os.Getenv("EMAIL_SENDER")),
		EmailRecipients:   splitAndTrim(os.Getenv("EMAIL_RECIPIENTS")),
		EmailSubject:      getEnv("EMAIL_SUBJECT", defaultSubject),
		ReportS3Bucket:    getEnv("REPORT_S3_BUCKET", ""),
		ReportS3Prefix:    getEnv("REPORT_S3_PREFIX", defaultReportPrefix),
		ReportDir:         getEnv("REPORT_DIR", ""),
		ReportQueueURL:    getEnv("REPORT_QUEUE_URL", ""),
		Schedule:          lookupEnv("SCHEDULE", defaultSchedule),
		OpsAPIToken:       os.Getenv("OPS_API_TOKEN"),
	}

	var err error
	if cfg.RetentionDays, err = envInt("RETENTION_DAYS", defaultRetentionDays); err != nil {
		return Config{}, err
	}
	if cfg.AlertDays, err = envInt("ALERT_DAYS", defaultAlertDays); err != nil {
		return Config{}, err
	}
	if cfg.DryRun, err = envBool("DRY_RUN", false); err != nil {
		return Config{}, err
	}
	if cfg.CheckInvocations, err = envBool("CHECK_INVOCATIONS", true); err != nil {
		return Config{}, err
	}
	if cfg.ProtectLatestPublished, err = envBool("PROTECT_LATEST_PUBLISHED", true); err != nil {
		return Config{}, err
	}

	policy, ok := janitor.ParseNeverUsedPolicy(os.Getenv("NEVER_USED_POLICY"))
	if !ok {
		return Config{}, janitor.ConfigurationError{
			Key:    "NEVER_USED_POLICY",
			Reason: fmt.Sprintf("must be delete or keep, got %q", os.Getenv("NEVER_USED_POLICY")),
		}
	}
	cfg.NeverUsedPolicy = policy

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	if c.EmailSender != "" {
		if _, err := mail.ParseAddress(c.EmailSender); err != nil {
			return janitor.ConfigurationError{Key: "EMAIL_SENDER", Reason: fmt.Sprintf("invalid address %q", c.EmailSender)}
		}
	}
	for _, addr := range c.EmailRecipients {
		if _, err := mail.ParseAddress(addr); err != nil {
			return janitor.ConfigurationError{Key: "EMAIL_RECIPIENTS", Reason: fmt.Sprintf("invalid address %q", addr)}
		}
	}
	if (c.EmailSender == "") != (len(c.EmailRecipients) == 0) {
		return janitor.ConfigurationError{
			Key:    "EMAIL_SENDER/EMAIL_RECIPIENTS",
			Reason: "must be set together",
		}
	}
	if err := schedule.Validate(c.Schedule); err != nil {
		return janitor.ConfigurationError{Key: "SCHEDULE", Reason: err.Error()}
	}
	return nil
}

// Policy returns the retention policy for the run.
func (c Config) Policy() janitor.Policy {
	return janitor.Policy{
		RetentionDays: c.RetentionDays,
		AlertDays:     c.AlertDays,
		NeverUsed:     c.NeverUsedPolicy,
	}
}

// JanitorOptions maps configuration onto janitor options.
func (c Config) JanitorOptions() janitor.Options {
	return janitor.Options{
		Policy:     c.Policy(),
		Functions:  append([]string(nil), c.FunctionNames...),
		Excluded:   append([]string(nil), c.ExcludedFunctions...),
		Sender:     c.EmailSender,
		Recipients: append([]string(nil), c.EmailRecipients...),
		Subject:    c.EmailSubject,
	}
}

// IsLambdaRuntime reports whether the process runs inside AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

// lookupEnv distinguishes an explicitly empty value from an unset one.
func lookupEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, janitor.ConfigurationError{Key: key, Reason: fmt.Sprintf("not an integer: %q", raw)}
	}
	return val, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, janitor.ConfigurationError{Key: key, Reason: fmt.Sprintf("not a boolean: %q", raw)}
	}
	return val, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	default:
		return "dev"
	}
}
