package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/redtime/internal/credential"
	"github.com/nhle/redtime/internal/model"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after defaults and REDTIME_* environment
overrides are applied. The API key is redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(opts)
			if err != nil {
				return err
			}
			out, err := renderConfig(cfg)
			if err != nil {
				return err
			}
			_, source, _ := credential.ResolveAPIKey(cfg.Redmine.APIKey)
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n# api key source: %s\n%s", opts.configPath, source, out)
			return nil
		},
	})

	return configCmd
}

// renderConfig marshals cfg to YAML with the API key redacted.
func renderConfig(cfg *model.AppConfig) (string, error) {
	shown := *cfg
	if shown.Redmine.APIKey != "" {
		shown.Redmine.APIKey = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	return string(data), nil
}
