package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Observability endpoint and protocol values
const (
	EndpointStdout = "stdout"
	ProtocolHTTP   = "http"
	ProtocolGRPC   = "grpc"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the loaded configuration. The agent section is checked
// separately by AgentConfig.Validate because not every command talks to the
// control plane.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return toConfigError(err)
	}
	return validateObservability(&cfg.Observability)
}

// Validate reports whether the agent section is complete enough to reach the
// control plane. A missing server URL yields a not-configured error.
func (a *AgentConfig) Validate() error {
	if a.ServerURL == "" {
		return NewNotConfiguredError("agent.server_url")
	}
	if err := validate.Var(a.ServerURL, "http_url"); err != nil {
		return NewInvalidFieldError("agent.server_url", "must be an absolute http(s) URL")
	}
	if a.ID == "" {
		return NewMissingFieldError("agent.agent_id")
	}
	if a.AuthToken == "" {
		return NewMissingFieldError("agent.auth_token")
	}
	return nil
}

func validateObservability(cfg *ObservabilityConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.ServiceName == "" {
		return NewMissingFieldError("observability.service_name")
	}
	if cfg.Endpoint == "" {
		return NewMissingFieldError("observability.endpoint")
	}
	if cfg.Endpoint != EndpointStdout && cfg.Protocol == "" {
		return NewInvalidFieldError("observability.protocol", "required for collector endpoints",
			ProtocolHTTP, ProtocolGRPC)
	}
	return nil
}

func toConfigError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewInvalidFieldError("config", err.Error())
	}

	// First failure wins, matching the order of the struct.
	fe := fieldErrs[0]
	field := fieldPath(fe)

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param())...)
	case "gt":
		return NewInvalidFieldError(field, "must be greater than "+fe.Param())
	case "gte":
		return NewInvalidFieldError(field, "must be at least "+fe.Param())
	case "lte":
		return NewInvalidFieldError(field, "must be at most "+fe.Param())
	case "gtefield":
		return NewInvalidFieldError(field, "must not be less than "+siblingPath(field, fe.Param()))
	case "http_url":
		return NewInvalidFieldError(field, "must be an absolute http(s) URL")
	default:
		return NewInvalidFieldError(field, "failed "+fe.Tag()+" validation")
	}
}

// fieldPath turns "Config.retry.max_delay" into "retry.max_delay".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// siblingPath names the struct field param next to field using its config key.
func siblingPath(field, param string) string {
	section, _, _ := strings.Cut(field, ".")
	t := reflect.TypeOf(Config{})
	for i := range t.NumField() {
		sf := t.Field(i)
		if sf.Tag.Get("koanf") != section {
			continue
		}
		if sibling, ok := sf.Type.FieldByName(param); ok && sibling.Tag.Get("koanf") != "" {
			return section + "." + sibling.Tag.Get("koanf")
		}
	}
	return param
}

// envVar returns the environment variable that sets a config key.
func envVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}
