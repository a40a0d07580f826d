package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/soyeahso/concierge/internal/agent"
	"github.com/spf13/cobra"
)

const (
	demoUser  = "test_user123"
	demoToken = "mock_access_token"
)

// demoScript books a deluxe room over five messages, then asks a question.
var demoScript = []string{
	"I want to book a room",
	"2025-07-01",
	"2025-07-03",
	"deluxe",
	"2",
	"What are the hotel amenities?",
}

func newDemoCmd() *cobra.Command {
	var persist bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Replay a scripted booking conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !persist {
				cfg.Storage.Driver = "memory"
				cfg.Session.Store = "memory"
			}
			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			runDemo(cmd.Context(), a.runner, cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "write to the configured stores instead of in-memory ones")

	return cmd
}

func runDemo(ctx context.Context, runner *agent.Runner, out io.Writer) []agent.Result {
	results := make([]agent.Result, 0, len(demoScript))
	for _, msg := range demoScript {
		res := runner.Handle(ctx, agent.Turn{
			UserID:     demoUser,
			Text:       msg,
			Credential: demoToken,
			Source:     "demo",
		})
		fmt.Fprintf(out, "%s> %s\nconcierge> %s\n\n", demoUser, msg, res.Reply)
		results = append(results, res)
	}
	return results
}
