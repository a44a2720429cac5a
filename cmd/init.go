package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gnolang/cxxlink/bridge"
)

var initScheme string

// initCmd: cxxlink init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return initConfigurationFile(cmd.OutOrStdout(), cfgFile, initScheme)
	},
}

func init() {
	initCmd.Flags().StringVar(&initScheme, "scheme", "", "Mangling scheme to record (itanium or msvc, default host)")
}

func initConfigurationFile(out io.Writer, configurationPath, scheme string) error {
	if configurationPath == "" {
		configurationPath = bridge.DefaultConfigFile
	}

	config := bridge.DefaultConfig()
	if scheme != "" {
		config.Scheme = scheme
	}
	if _, err := config.EngineOptions(nil); err != nil {
		return err
	}
	if err := bridge.WriteConfig(configurationPath, config); err != nil {
		return err
	}
	fmt.Fprintf(out, "Configuration file created/updated: %s\n", configurationPath)
	return nil
}
