package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaborage/agentlink/agentapi"
)

// HeartbeatOptions holds options for the heartbeat command
type HeartbeatOptions struct {
	AgentVersion string
	CPU          float64
	RAM          float64
	Disk         float64
}

// NewHeartbeatCommand creates the heartbeat command
func NewHeartbeatCommand(global *GlobalOptions) *cobra.Command {
	opts := &HeartbeatOptions{}

	cmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Send one heartbeat to the control plane",
		Long: `Reports the agent as alive and prints the commands the control plane
has queued for it as JSON.

The agent section of the configuration (server_url, agent_id, auth_token)
must be complete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHeartbeat(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.AgentVersion, "agent-version", global.Version, "Agent version to report")
	cmd.Flags().Float64Var(&opts.CPU, "cpu", 0, "CPU usage percent to report")
	cmd.Flags().Float64Var(&opts.RAM, "ram", 0, "Memory usage percent to report")
	cmd.Flags().Float64Var(&opts.Disk, "disk", 0, "Disk usage percent to report")

	return cmd
}

func runHeartbeat(cmd *cobra.Command, global *GlobalOptions, opts *HeartbeatOptions) error {
	s, err := global.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	client, err := agentapi.New(s.cfg, s.log, agentapi.WithExecutor(s.executor))
	if err != nil {
		return err
	}

	hb := agentapi.NewHeartbeat(opts.AgentVersion, &agentapi.Metrics{
		CPUPercent:  opts.CPU,
		RAMPercent:  opts.RAM,
		DiskPercent: opts.Disk,
	})
	resp, err := client.SendHeartbeat(cmd.Context(), hb)
	if err != nil {
		return err
	}
	s.log.Info().
		Int("commands", len(resp.Commands)).
		Str("status", hb.Status).
		Msgf("heartbeat sent as %s", hb.AgentVersion)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to print heartbeat response: %w", err)
	}
	return nil
}
