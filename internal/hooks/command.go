package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/concierge/internal/config"
)

// DefaultCommandTimeout bounds a command hook without an explicit timeout.
const DefaultCommandTimeout = 10 * time.Second

// CommandHandler returns a Handler that runs entry.Command through
// "sh -c" with the JSON payload on stdin. A non-zero exit is an error
// carrying the command's stderr.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := DefaultCommandTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}

	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(cmd.Environ(), "CONCIERGE_HOOK_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook command %q: %w: %s", entry.Command, err, msg)
			}
			return fmt.Errorf("hook command %q: %w", entry.Command, err)
		}
		return nil
	}
}

// RegisterConfig wires every configured command hook into m and returns
// how many were registered.
func RegisterConfig(m *Manager, cfg config.HooksConfig) int {
	byEvent := map[string][]config.HookEntry{
		EventTurnReceived:           cfg.TurnReceived,
		EventReplySending:           cfg.ReplySending,
		EventFlowStarted:            cfg.FlowStarted,
		EventBookingCompleted:       cfg.BookingCompleted,
		EventReservationRescheduled: cfg.ReservationRescheduled,
		EventReservationNotFound:    cfg.ReservationNotFound,
		EventFlowAbandoned:          cfg.FlowAbandoned,
		EventGatewayStart:           cfg.GatewayStart,
		EventGatewayStop:            cfg.GatewayStop,
	}

	n := 0
	for _, event := range AllEvents {
		for i, entry := range byEvent[event] {
			if strings.TrimSpace(entry.Command) == "" {
				continue
			}
			m.On(event, fmt.Sprintf("config:%s:%d", event, i), CommandHandler(entry))
			n++
		}
	}
	return n
}
