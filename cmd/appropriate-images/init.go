package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/appropriate-images/internal/config"
	"github.com/menta2k/appropriate-images/internal/utils"
	"github.com/menta2k/appropriate-images/pkg/types"
)

const FlagForce = "force"

func newInitCommand(o *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with default values and create the input directory.",
		Args:  usageArgs(cobra.NoArgs),
		Example: `  appropriate-images init
  appropriate-images init --config ./appropriate-images.yaml`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := o.configFile
			if path == "" {
				path = config.GetConfigPath()
			}
			if utils.FileExists(path) && !force {
				return &types.UsageError{Option: "config", Message: fmt.Sprintf("%s already exists, use --force to overwrite", path)}
			}

			s := config.Default()
			if err := s.SaveToFile(path); err != nil {
				return err
			}
			if err := utils.EnsureDir(s.InputDirectory); err != nil {
				return fmt.Errorf("failed to create input directory: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, FlagForce, "f", false, "overwrite an existing settings file")
	return cmd
}
