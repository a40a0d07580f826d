package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/soyeahso/concierge/internal/agent"
	"github.com/spf13/cobra"
)

const chatPrompt = "you> "

// isFarewell reports whether a chat line ends the session.
func isFarewell(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "quit", "exit", "bye":
		return true
	}
	return false
}

func newChatCmd() *cobra.Command {
	var (
		user  string
		token string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the concierge in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			histPath := filepath.Join(paths.Data, "chat_history")
			if f, err := os.Open(histPath); err == nil {
				_, _ = line.ReadHistory(f)
				f.Close()
			}
			defer func() {
				if f, err := os.Create(histPath); err == nil {
					_, _ = line.WriteHistory(f)
					f.Close()
				}
			}()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n(type quit, exit or bye to leave)\n\n", agent.GreetingReply)

			return chatLoop(cmd.Context(), a.runner, agent.Turn{UserID: user, Credential: token, Source: "chat"}, func() (string, error) {
				input, err := line.Prompt(chatPrompt)
				if err == nil && strings.TrimSpace(input) != "" {
					line.AppendHistory(input)
				}
				return input, err
			}, out)
		},
	}

	cmd.Flags().StringVar(&user, "user", "guest", "user id the conversation belongs to")
	cmd.Flags().StringVar(&token, "token", "", "access token passed to the notifier")

	return cmd
}

// chatLoop reads lines with next and prints one reply per line until a
// farewell, end of input or an aborted prompt.
func chatLoop(ctx context.Context, runner *agent.Runner, base agent.Turn, next func() (string, error), out io.Writer) error {
	for {
		input, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			return err
		}
		if isFarewell(input) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		t := base
		t.Text = input
		res := runner.Handle(ctx, t)
		fmt.Fprintf(out, "concierge> %s\n", res.Reply)
	}
}
