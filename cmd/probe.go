package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	pdlhttp "github.com/tanq16/pdl/internal/downloaders/http"
	"github.com/tanq16/pdl/internal/output"
	"github.com/tanq16/pdl/internal/utils"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe [URL]",
		Short: "Show size, type, file name and range support of a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := newEngine()
			defer engine.Close()
			info, err := engine.Probe(context.Background(), args[0])
			if err != nil && !pdlhttp.IsFallback(err) {
				return err
			}
			if err != nil {
				output.PrintWarning("Server does not report a size")
			}
			size := "unknown"
			if info.SizeKnown() {
				size = fmt.Sprintf("%s (%d bytes)", utils.FormatBytes(uint64(info.TotalSize)), info.TotalSize)
			}
			output.PrintHeader(args[0])
			printField("Size", size)
			printField("Content type", info.ContentType)
			printField("File name", info.SuggestedFileName)
			printField("Ranges", strconv.FormatBool(info.SupportsRange))
			printField("Strategy", pdlhttp.SelectStrategy(info).String())
			return nil
		},
	}
}

func printField(name, value string) {
	fmt.Printf("  %s %s %s\n", output.FInfo(output.StyleSymbols["bullet"]), output.FDebug(name+":"), output.FDetail(value))
}
