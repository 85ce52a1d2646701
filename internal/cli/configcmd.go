package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lu-zhengda/venvkiller/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management",
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(resolvedConfigPath())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration, flags included",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonFlag {
			return printJSON(appConfig)
		}
		data, err := yaml.Marshal(appConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath := resolvedConfigPath()
		data, err := os.ReadFile(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}

		_, warnings, err := config.LoadAndValidate(data)
		if err != nil {
			return err
		}

		if len(warnings) == 0 {
			fmt.Printf("Config OK (%s)\n", cfgPath)
			return nil
		}

		fmt.Printf("Found %d warning(s) in %s:\n", len(warnings), cfgPath)
		for _, w := range warnings {
			fmt.Printf("  [%s] %s\n", w.Field, w.Message)
			if w.Suggestion != "" {
				fmt.Printf("    suggestion: %s\n", w.Suggestion)
			}
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
