package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaborage/agentlink/config"
)

const redacted = "***"

// Value types accepted by config get --type.
const (
	typeString   = "string"
	typeInt      = "int"
	typeBool     = "bool"
	typeDuration = "duration"
)

var valueTypes = []string{typeString, typeInt, typeBool, typeDuration}

// NewConfigCommand creates the config command and its subcommands
func NewConfigCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(
		newConfigGetCommand(global),
		&cobra.Command{
			Use:   "show",
			Short: "Print every configuration value, secrets redacted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := global.loadConfig()
				if err != nil {
					return err
				}
				all := cfg.All()
				keys := make([]string, 0, len(all))
				for k := range all {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					value := fmt.Sprint(all[k])
					if isSecretKey(k) {
						value = redacted
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, value)
				}
				return nil
			},
		},
	)

	return cmd
}

func newConfigGetCommand(global *GlobalOptions) *cobra.Command {
	var valueType string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Example: `  agentlink config get retry.max_retries
  agentlink config get --type duration retry.max_delay
  AGENTLINK_RETRY__MAX_RETRIES=5 agentlink config get retry.max_retries`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			value, err := configValue(cfg, args[0], valueType)
			if err != nil {
				return err
			}
			if isSecretKey(args[0]) {
				value = redacted
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.Flags().StringVarP(&valueType, "type", "t", typeString,
		"Value type: "+strings.Join(valueTypes, ", "))

	return cmd
}

// configValue renders one leaf key as valueType. Section keys are refused.
func configValue(cfg *config.Config, key, valueType string) (string, error) {
	if !slices.Contains(valueTypes, valueType) {
		return "", fmt.Errorf("invalid type %q (must be one of: %s)", valueType, strings.Join(valueTypes, ", "))
	}
	leaf, ok := cfg.All()[key]
	if _, nested := leaf.(map[string]any); nested || (!ok && cfg.Exists(key)) {
		return "", fmt.Errorf("configuration key '%s' is a section; use 'config show' or a full key", key)
	}

	if valueType == typeString {
		return cfg.GetRequiredString(key)
	}
	if !ok {
		return "", fmt.Errorf("required configuration key '%s' is missing", key)
	}
	switch valueType {
	case typeInt:
		return fmt.Sprint(cfg.GetInt(key)), nil
	case typeBool:
		return fmt.Sprint(cfg.GetBool(key)), nil
	default:
		return cfg.GetDuration(key).String(), nil
	}
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "token") || strings.HasPrefix(key, "observability.headers.")
}
