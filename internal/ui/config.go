package ui

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/javiermolinar/airtime/internal/config"
)

func (a *App) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and
AIRTIME_* environment overrides are merged.

Example:
  airtime config
  airtime config init`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := toml.Marshal(a.config)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			_, _ = fmt.Fprintf(a.out, "%s\n", colorMuted.Sprintf("# %s", a.path()))
			_, err = a.out.Write(data)
			return err
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := a.path()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := a.config.SaveTo(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Created %s\n", path)
			return nil
		},
	})

	return cmd
}

func (a *App) path() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.DefaultConfigPath()
}
