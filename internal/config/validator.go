package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "bench.publishers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// metricNameRegex matches a valid Prometheus namespace
var metricNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateBench()...)

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if c.Metrics.Namespace != "" && !metricNameRegex.MatchString(c.Metrics.Namespace) {
		errors = append(errors, ValidationError{
			Field:   "metrics.namespace",
			Value:   c.Metrics.Namespace,
			Message: "must start with a letter or underscore and contain only letters, digits, and underscores",
		})
	}

	return errors
}

// validateBench validates the BenchConfig
func (c *Config) validateBench() []ValidationError {
	var errors []ValidationError

	if c.Bench.Messages <= 0 {
		errors = append(errors, ValidationError{
			Field:   "bench.messages",
			Value:   c.Bench.Messages,
			Message: "must be positive",
		})
	}

	const maxPublishers = 256
	if c.Bench.Publishers <= 0 || c.Bench.Publishers > maxPublishers {
		errors = append(errors, ValidationError{
			Field:   "bench.publishers",
			Value:   c.Bench.Publishers,
			Message: fmt.Sprintf("must be between 1 and %d", maxPublishers),
		})
	}

	if c.Bench.MailboxesPerType < 0 {
		errors = append(errors, ValidationError{
			Field:   "bench.mailboxes_per_type",
			Value:   c.Bench.MailboxesPerType,
			Message: "must be non-negative",
		})
	}

	if c.Bench.FailureEvery < 0 {
		errors = append(errors, ValidationError{
			Field:   "bench.failure_every",
			Value:   c.Bench.FailureEvery,
			Message: "must be non-negative (0 disables failures)",
		})
	}

	return errors
}
