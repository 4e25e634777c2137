package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/seracc/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or write the settings file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrinter(cmd)
		if p.json {
			return p.encode(cfg)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		p.printf("%s", data)
		return nil
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective settings to the settings file",
	Long: `Write the effective settings, including flags given on this command line,
to the settings file so later invocations pick them up.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.Path()
			if err != nil {
				return err
			}
			path = p
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		newPrinter(cmd).printf("settings written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSaveCmd)
}
