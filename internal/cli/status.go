package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/concierge/internal/config"
	"github.com/soyeahso/concierge/internal/llm"
	"github.com/soyeahso/concierge/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show concierge status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Concierge %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:     %s\n", paths.Logs)
			fmt.Fprintln(out)

			// Load config
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:   error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:   not found (using defaults)")
			}

			fmt.Fprintf(out, "Hotel:    %s, %s (%s)\n",
				cfg.Hotel.Name, cfg.Hotel.Location, strings.Join(cfg.Hotel.RoomNames(), ", "))

			storage := cfg.Storage.Driver
			switch storage {
			case "sqlite":
				if cfg.Storage.DSN != "" {
					storage += " " + cfg.Storage.DSN
				} else {
					storage += " " + paths.DatabasePath()
				}
			case "file":
				if cfg.Storage.Dir != "" {
					storage += " " + cfg.Storage.Dir
				} else {
					storage += " " + paths.Data
				}
			}
			fmt.Fprintf(out, "Storage:  %s\n", storage)
			fmt.Fprintf(out, "Session:  store=%s idle=%dm\n", cfg.Session.Store, cfg.Session.IdleMinutes)

			_, refs := llm.NewRegistryFromConfig(cfg.LLM, log)
			if len(refs) > 0 {
				fmt.Fprintf(out, "LLM:      %s\n", strings.Join(refs, ", "))
			} else {
				fmt.Fprintln(out, "LLM:      (none, FAQ answers only)")
			}

			fmt.Fprintf(out, "Notifier: %s\n", cfg.Notifier.Mode)
			fmt.Fprintf(out, "Gateway:  port=%d bind=%s auth=%s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode)

			if cfg.Metrics.Disabled {
				fmt.Fprintln(out, "Metrics:  disabled")
			} else {
				fmt.Fprintf(out, "Metrics:  %s\n", cfg.Metrics.Path)
			}

			// Channels
			if cfg.Channels.IRC != nil {
				irc := cfg.Channels.IRC
				fmt.Fprintf(out, "IRC:      server=%s nick=%s tls=%v\n", irc.Server, irc.Nick, irc.UseTLS)
			} else {
				fmt.Fprintln(out, "IRC:      (not configured)")
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
