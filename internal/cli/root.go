package cli

import (
	"github.com/soyeahso/concierge/internal/config"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths    config.Paths
	log      *logging.Logger
	closeLog = func() error { return nil }
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concierge",
		Short: "Concierge: a conversational hotel booking assistant",
		Long: "Concierge books and reschedules hotel stays through a multi-turn chat, " +
			"answers questions about the hotel, and serves the same dialogue over HTTP, WebSocket and IRC.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			// Logging settings come from the config file when it parses;
			// a broken file is reported by the command that loads it.
			lc := config.Defaults().Logging
			if cfg, err := config.Load(paths.Config); err == nil {
				lc = cfg.Logging
			}
			if logLevel != "" {
				lc.Level = logLevel
			}

			log, closeLog, err = logging.Open(logging.Options{
				Level: lc.Level,
				Style: lc.ConsoleStyle,
				File:  lc.File,
			})
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeLog()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.concierge/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newDemoCmd())
	cmd.AddCommand(newReservationsCmd())
	cmd.AddCommand(newSessionCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
