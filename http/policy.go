package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3
	// DefaultInitialDelay is the base delay before the first retry
	DefaultInitialDelay = 1 * time.Second
	// DefaultMaxDelay caps the base delay
	DefaultMaxDelay = 30 * time.Second
	// DefaultBackoffFactor multiplies the delay after each retry
	DefaultBackoffFactor = 2.0
	// DefaultJitterFraction randomizes delays by ±30%
	DefaultJitterFraction = 0.3
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RetryPolicy controls how many times and how patiently a request is retried.
// It is an immutable value and safe to share between goroutines.
type RetryPolicy struct {
	MaxRetries     int           `koanf:"max_retries" json:"max_retries" yaml:"max_retries" validate:"gte=0"`
	InitialDelay   time.Duration `koanf:"initial_delay" json:"initial_delay" yaml:"initial_delay" validate:"gt=0"`
	MaxDelay       time.Duration `koanf:"max_delay" json:"max_delay" yaml:"max_delay" validate:"gtefield=InitialDelay"`
	BackoffFactor  float64       `koanf:"backoff_factor" json:"backoff_factor" yaml:"backoff_factor" validate:"gte=1"`
	JitterFraction float64       `koanf:"jitter_fraction" json:"jitter_fraction" yaml:"jitter_fraction" validate:"gte=0,lte=1"`
}

// DefaultRetryPolicy returns the policy used for agent to control-plane calls
// when the caller supplies none.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     DefaultMaxRetries,
		InitialDelay:   DefaultInitialDelay,
		MaxDelay:       DefaultMaxDelay,
		BackoffFactor:  DefaultBackoffFactor,
		JitterFraction: DefaultJitterFraction,
	}
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	return validateStruct(&p, "policy")
}

// Attempts returns the total number of sends the policy allows.
func (p RetryPolicy) Attempts() int {
	return p.MaxRetries + 1
}

// nextDelay grows delay by BackoffFactor, capped at MaxDelay.
func (p RetryPolicy) nextDelay(delay time.Duration) time.Duration {
	next := float64(delay) * p.BackoffFactor
	if next >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(next)
}

// BaseDelays returns the unjittered delays waited before each retry.
func (p RetryPolicy) BaseDelays() []time.Duration {
	if p.MaxRetries <= 0 {
		return nil
	}
	delays := make([]time.Duration, 0, p.MaxRetries)
	delay := p.InitialDelay
	for range p.MaxRetries {
		delays = append(delays, delay)
		delay = p.nextDelay(delay)
	}
	return delays
}

func validateStruct(v any, scope string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return newConstructionError(scope, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return &validationError{
		message: strings.Join(msgs, "; "),
		field:   scope + "." + fieldErrs[0].Field(),
		wrapped: err,
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gtefield":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
