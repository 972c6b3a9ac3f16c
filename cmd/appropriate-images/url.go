package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/appropriate-images/pkg/types"
	"github.com/menta2k/appropriate-images/pkg/urlpicker"
)

const (
	FlagWidth = "width"
	FlagDPR   = "dpr"
	FlagWebP  = "webp"
	FlagDir   = "dir"
)

func newURLCommand(o *options) *cobra.Command {
	var (
		width int
		env   urlpicker.Static
		dir   string
	)
	cmd := &cobra.Command{
		Use:   "url <id>",
		Short: "Print the variant URL a browser would pick for an image.",
		Args:  usageArgs(cobra.ExactArgs(1)),
		Example: `  appropriate-images url horse --width 320
  appropriate-images url horse --width 320 --dpr 2 --webp --dir /images`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.settings(cmd)
			if err != nil {
				return err
			}
			imageConfig, err := loadImageConfig(s)
			if err != nil {
				return err
			}
			url, err := urlpicker.New(env).URL(urlpicker.Request{
				ImageID:        args[0],
				Config:         imageConfig,
				Width:          width,
				ImageDirectory: dir,
			})
			if err != nil {
				return &types.UsageError{ID: args[0], Message: err.Error()}
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&width, FlagWidth, "w", 0, "available display width in CSS pixels (0 = unlimited)")
	flags.Float64Var(&env.DPR, FlagDPR, 1, "device pixel ratio of the display")
	flags.BoolVar(&env.WebP, FlagWebP, false, "the browser accepts WebP")
	flags.StringVar(&dir, FlagDir, "", "directory prefixed to the file name")
	return cmd
}
