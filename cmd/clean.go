package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanq16/pdl/internal/output"
	"github.com/tanq16/pdl/internal/utils"
)

func newCleanCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "clean [DIR] [--output OUTPUT_PATH]",
		Short: "Remove temporary files left by interrupted downloads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if outputPath != "" {
				err = utils.CleanFunction(outputPath, engineConfig.TempDirName)
			} else {
				dir := "."
				if len(args) == 1 {
					dir = args[0]
				}
				err = utils.CleanLocal(dir, engineConfig.TempDirName)
			}
			if err != nil {
				return fmt.Errorf("error cleaning up temporary files: %w", err)
			}
			output.PrintSuccess("Temporary files cleaned up")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Only clean leftovers of this output path")
	return cmd
}
