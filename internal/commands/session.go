// Package commands implements the agentlink command line.
package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gaborage/agentlink/config"
	agenthttp "github.com/gaborage/agentlink/http"
	"github.com/gaborage/agentlink/logger"
	"github.com/gaborage/agentlink/observability"
)

// GlobalOptions holds flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Version    string

	// environ replaces os.Environ when set.
	environ func() []string
}

// session is the wiring one command invocation runs with.
type session struct {
	cfg      *config.Config
	log      logger.Logger
	provider observability.Provider
	executor *agenthttp.Executor
}

func (o *GlobalOptions) loadConfig() (*config.Config, error) {
	var opts []config.Option
	if o.environ != nil {
		opts = append(opts, config.WithEnviron(o.environ))
	}
	return config.Load(o.ConfigPath, opts...)
}

// open loads configuration and builds logger, telemetry and executor.
// Logs and stdout telemetry go to the command's stderr so stdout only
// carries command output.
func (o *GlobalOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg.Log, cmd.ErrOrStderr())

	provider, err := observability.NewProvider(observabilityConfig(cfg, o.Version, cmd.ErrOrStderr()), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	executor := agenthttp.NewBuilder(log).
		WithTracerProvider(provider.TracerProvider()).
		WithMeterProvider(provider.MeterProvider()).
		Build()

	return &session{cfg: cfg, log: log, provider: provider, executor: executor}, nil
}

func (s *session) close() {
	if err := observability.Shutdown(s.provider, 0); err != nil {
		s.log.Warn().Err(err).Msg("failed to flush telemetry")
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) logger.Logger {
	if cfg.Pretty {
		return logger.NewWithWriter(cfg.Level, zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}
	return logger.NewWithWriter(cfg.Level, w)
}

func observabilityConfig(cfg *config.Config, version string, w io.Writer) *observability.Config {
	obs := cfg.Observability
	return &observability.Config{
		Enabled:        obs.Enabled,
		ServiceName:    obs.ServiceName,
		ServiceVersion: version,
		Endpoint:       obs.Endpoint,
		Protocol:       obs.Protocol,
		Insecure:       obs.Insecure,
		Headers:        obs.Headers,
		Interval:       obs.Interval,
		Writer:         w,
	}
}
