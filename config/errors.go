package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured marks an optional section that was left empty on purpose.
var ErrNotConfigured = errors.New("not configured")

// Category classifies a ConfigError.
type Category string

const (
	CategoryMissing       Category = "missing"
	CategoryInvalid       Category = "invalid"
	CategoryNotConfigured Category = "not_configured"
)

// ConfigError describes one bad configuration key and how to fix it.
// Messages are lowercase so they can be wrapped.
//
//nolint:revive // config.ConfigError reads better than config.Error at call sites
type ConfigError struct {
	Category Category
	Key      string // dotted config key, e.g. "retry.max_delay"
	Message  string
	Hint     string // what the operator should do, if anything
}

// Error renders "config_<category>: <key> <message> <hint>".
func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config_")
	b.WriteString(string(e.Category))
	b.WriteString(":")
	for _, part := range []string{e.Key, e.Message, e.Hint} {
		if part != "" {
			b.WriteString(" ")
			b.WriteString(part)
		}
	}
	return b.String()
}

// Is lets errors.Is(err, ErrNotConfigured) match not-configured keys.
func (e *ConfigError) Is(target error) bool {
	return target == ErrNotConfigured && e.Category == CategoryNotConfigured
}

// NewMissingFieldError reports a required key that has no value.
func NewMissingFieldError(key string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Key:      key,
		Message:  "required",
		Hint:     sourceHint(key),
	}
}

// NewInvalidFieldError reports a key whose value breaks a rule. options, when
// given, lists the accepted values.
func NewInvalidFieldError(key, message string, options ...string) *ConfigError {
	err := &ConfigError{Category: CategoryInvalid, Key: key, Message: message}
	if len(options) > 0 {
		err.Hint = "must be one of: " + strings.Join(options, ", ")
	}
	return err
}

// NewNotConfiguredError reports an optional section whose anchor key is empty.
func NewNotConfiguredError(key string) *ConfigError {
	return &ConfigError{
		Category: CategoryNotConfigured,
		Key:      key,
		Message:  "(optional)",
		Hint:     "to enable: " + sourceHint(key),
	}
}

// IsNotConfigured reports whether err means an optional section is absent.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

func sourceHint(key string) string {
	return fmt.Sprintf("set %s env var or add %s to the config file", envVar(key), key)
}
