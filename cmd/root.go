package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	pdlhttp "github.com/tanq16/pdl/internal/downloaders/http"
	"github.com/tanq16/pdl/internal/output"
	"github.com/tanq16/pdl/internal/utils"
)

var (
	configPath  string
	connections int
	retries     int
	userAgent   string
	debug       bool

	engineConfig utils.EngineConfig
	logCloser    io.Closer
)

var PDLVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "pdl",
	Short:   "pdl is a parallel HTTP file downloader",
	Version: PDLVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closer, err := utils.InitLogger(debug)
		if err != nil {
			return err
		}
		logCloser = closer
		cfg, err := utils.LoadConfig(configPath)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("connections") {
			cfg.Workers = connections
		}
		if flags.Changed("retries") {
			cfg.MaxRetries = retries
		}
		if flags.Changed("user-agent") {
			cfg.UserAgent = userAgent
		}
		engineConfig = cfg.Normalize()
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := run(os.Args[1:]); err != nil {
		output.PrintError(err.Error())
		os.Exit(1)
	}
}

// run executes the command line and closes the debug log on every outcome.
func run(args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
	return err
}

func newEngine() *pdlhttp.Engine {
	return pdlhttp.NewEngine(engineConfig)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().IntVarP(&connections, "connections", "c", utils.DefaultWorkers, "Number of parallel connections for ranged downloads (above 5 enables high-thread-mode)")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", utils.DefaultMaxRetries, "Retries per chunk before the download is aborted")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging to "+utils.LogFile)

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
}
