package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tturner/cipadapter/internal/config"
	cipadaptererrors "github.com/tturner/cipadapter/internal/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration file commands",
	}
	cmd.AddCommand(newConfigPrintDefaultCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigPrintDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-default",
		Short: "Print a default adapter config",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(config.CreateDefaultConfig())
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an adapter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = "cipadapter.yaml"
			}
			if _, err := config.LoadConfig(path, false); err != nil {
				return cipadaptererrors.WrapConfigError(err, path)
			}
			fmt.Fprintf(os.Stdout, "config OK: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "Adapter config file path")
	return cmd
}
