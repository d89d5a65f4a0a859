// Package cmd builds the countnet command tree.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/countnet/countnet-go/cmd/config"
	"github.com/countnet/countnet-go/cmd/serve"
	"github.com/countnet/countnet-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "countnet",
		Short: "CountNet-Go object counting service",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		config.Command(settings),
	)

	return rootCmd
}

// setupFlags binds the persistent flags into viper so command-line arguments
// take precedence over the config file.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Main.DataDir, "datadir", settings.Main.DataDir, "Root directory for uploads and derived data")
	cmd.PersistentFlags().StringVarP(&settings.WebServer.Port, "port", "p", settings.WebServer.Port, "HTTP server port")
	cmd.PersistentFlags().StringVar(&settings.Detector.ModelPath, "model", settings.Detector.ModelPath, "Path to the detection model")

	_ = viper.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("main.datadir", cmd.PersistentFlags().Lookup("datadir"))
	_ = viper.BindPFlag("webserver.port", cmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("detector.modelpath", cmd.PersistentFlags().Lookup("model"))
}
