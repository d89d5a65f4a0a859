// Package config implements the config command printing and writing the
// effective configuration.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/countnet/countnet-go/internal/conf"
)

// Command returns the config command.
func Command(settings *conf.Settings) *cobra.Command {
	var write string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if write != "" {
				if err := conf.WriteDefaultConfig(write, settings); err != nil {
					return err
				}
				fmt.Printf("configuration written to %s\n", write)
				return nil
			}

			if used := viper.ConfigFileUsed(); used != "" {
				fmt.Printf("# loaded from %s\n", used)
			} else {
				fmt.Println("# no config file found, showing defaults")
			}

			data, err := yaml.Marshal(settings)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&write, "write", "", "Write the effective configuration to the given path")
	return cmd
}
