package janitor

import (
	"errors"
	"fmt"
)

// ErrVersionNotFound indicates the version no longer exists on the provider side.
var ErrVersionNotFound = errors.New("version not found")

// ConfigurationError reports malformed or missing configuration. It is fatal for a run.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration: %s", e.Reason)
	}
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Reason)
}

// ListingError reports a failure to enumerate a function's versions.
type ListingError struct {
	FunctionName string
	Err          error
}

func (e ListingError) Error() string {
	if e.FunctionName == "" {
		return fmt.Sprintf("list functions: %v", e.Err)
	}
	return fmt.Sprintf("list versions function=%s: %v", e.FunctionName, e.Err)
}

func (e ListingError) Unwrap() error { return e.Err }

// DeleteError reports a failure to delete one version.
type DeleteError struct {
	FunctionName string
	Version      string
	Err          error
}

func (e DeleteError) Error() string {
	return fmt.Sprintf("delete function=%s version=%s: %v", e.FunctionName, e.Version, e.Err)
}

func (e DeleteError) Unwrap() error { return e.Err }

// NotificationError reports a failure to send the warning email.
type NotificationError struct {
	Err error
}

func (e NotificationError) Error() string {
	return fmt.Sprintf("send notification: %v", e.Err)
}

func (e NotificationError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr ConfigurationError
	return errors.As(err, &cfgErr)
}
