package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tanq16/pdl/internal/output"
	"github.com/tanq16/pdl/internal/scheduler"
	"github.com/tanq16/pdl/internal/utils"
)

func newGetCmd() *cobra.Command {
	var outputPath string
	var keepExisting bool

	cmd := &cobra.Command{
		Use:   "get [URL] [--output OUTPUT_PATH]",
		Short: "Download a file over HTTP/HTTPS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := []utils.DownloadEntry{{URL: args[0], OutputPath: outputPath}}
			return runDownloads(entries, keepExisting)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the server if not provided)")
	cmd.Flags().BoolVar(&keepExisting, "keep", false, "Save under a new name instead of replacing an existing file")
	return cmd
}

// runDownloads runs entries on one engine until done or interrupted.
func runDownloads(entries []utils.DownloadEntry, keepExisting bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine := newEngine()
	defer engine.Close()
	mgr := output.NewManager()
	mgr.StartDisplay()
	err := scheduler.Run(ctx, engine, entries, mgr, scheduler.Options{KeepExisting: keepExisting})
	mgr.StopDisplay()
	if err != nil {
		log := utils.GetLogger("cli")
		log.Debug().Err(err).Msg("Run finished with failures")
	}
	return err
}
