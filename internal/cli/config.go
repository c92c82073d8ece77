package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/assetpipe/internal/config"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging flags, ASSETPIPE_* environment
variables and the build descriptor, as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding configuration: %w", err)
			}

			w := cmd.OutOrStdout()

			if cfg.ConfigFile != "" {
				fmt.Fprintf(w, "# descriptor: %s\n", cfg.ConfigFile)
			}

			_, err = w.Write(data)

			return err
		},
	}
}
