package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/tanq16/pdl/internal/utils"
)

func newBatchCmd() *cobra.Command {
	var keepExisting bool

	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Download every entry of a YAML list, one after another",
		Long:  "The YAML file is a list of entries with a required `link` and an optional `op` output path.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := utils.ReadDownloadList(args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("no valid entries found in the batch file")
			}
			return runDownloads(entries, keepExisting)
		},
	}

	cmd.Flags().BoolVar(&keepExisting, "keep", false, "Save under a new name instead of replacing existing files")
	return cmd
}
