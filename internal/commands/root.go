package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the agentlink command tree.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(&GlobalOptions{Version: version})
}

func newRootCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentlink",
		Short: "Talk to the agent control plane",
		Long: `agentlink sends requests from an endpoint agent to its control plane.

Every request goes through the retrying executor: transport failures and
429/500/502/503/504 responses are retried with capped exponential backoff
and jitter, as configured in the retry section.

Configuration is read from the file given with --config and from
AGENTLINK_* environment variables (AGENTLINK_RETRY__MAX_RETRIES=5).`,
		Version:       global.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&global.ConfigPath, "config", "c", "", "Path to a YAML config file")

	cmd.AddCommand(
		NewDoCommand(global),
		NewHeartbeatCommand(global),
		NewConfigCommand(global),
		NewVersionCommand(global.Version),
	)

	return cmd
}
