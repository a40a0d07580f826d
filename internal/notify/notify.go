// Package notify delivers best-effort guest notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/logging"
)

// Notifier modes accepted in configuration.
const (
	ModeLog     = "log"
	ModeChannel = "channel"
	ModeNone    = "none"
)

// LogNotifier writes a mock direct message to the log instead of calling a
// messaging API.
type LogNotifier struct {
	log *logging.Logger
}

// NewLog creates a LogNotifier.
func NewLog(log *logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.Sub("notify")}
}

func (n *LogNotifier) Name() string { return ModeLog }

func (n *LogNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.log.Info().
		Str("recipient", msg.Recipient).
		Bool("credential", msg.Credential != "").
		Msg(fmt.Sprintf("[MOCK DM to %s]: %s", msg.Recipient, msg.Text))
	return nil
}

// Sender delivers an outbound message through a named channel.
type Sender interface {
	Send(ctx context.Context, msg domain.OutboundMessage) error
}

// ChannelNotifier routes notifications for channel-qualified recipients
// ("irc:alice") through the matching chat channel. Other recipients go to
// the fallback notifier.
type ChannelNotifier struct {
	sender   Sender
	fallback domain.Notifier
}

// NewChannel creates a ChannelNotifier. fallback may be nil.
func NewChannel(sender Sender, fallback domain.Notifier) *ChannelNotifier {
	return &ChannelNotifier{sender: sender, fallback: fallback}
}

func (n *ChannelNotifier) Name() string { return ModeChannel }

func (n *ChannelNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	channelID, to, ok := domain.SplitUserID(msg.Recipient)
	if !ok {
		if n.fallback == nil {
			return fmt.Errorf("no channel for recipient %q", msg.Recipient)
		}
		return n.fallback.Notify(ctx, msg)
	}
	return n.sender.Send(ctx, domain.OutboundMessage{
		ChannelID: channelID,
		To:        to,
		Body:      msg.Text,
	})
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Name() string                                      { return ModeNone }
func (Nop) Notify(context.Context, domain.Notification) error { return nil }

// ErrUnknownMode is returned by New for an unrecognised mode.
var ErrUnknownMode = errors.New("unknown notifier mode")

// New builds the notifier for mode. sender is required for ModeChannel.
func New(mode string, sender Sender, log *logging.Logger) (domain.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeLog:
		return NewLog(log), nil
	case ModeChannel:
		if sender == nil {
			return nil, errors.New("channel notifier needs a channel registry")
		}
		return NewChannel(sender, NewLog(log)), nil
	case ModeNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
