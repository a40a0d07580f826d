// Package routing connects messaging channels to the turn runner.
package routing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/soyeahso/concierge/internal/agent"
	"github.com/soyeahso/concierge/internal/channel"
	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/logging"
)

// Router turns inbound channel messages into runner turns.
type Router struct {
	channels *channel.Registry
	runner   *agent.Runner
	// reply sends the turn's reply back through the originating channel.
	// It is off when the runner's notifier already delivers to channels.
	reply bool
	wg    sync.WaitGroup
	log   *logging.Logger
}

// NewRouter creates a message router.
func NewRouter(channels *channel.Registry, runner *agent.Runner, reply bool, log *logging.Logger) *Router {
	return &Router{
		channels: channels,
		runner:   runner,
		reply:    reply,
		log:      log.Sub("routing"),
	}
}

// HandleInbound runs one inbound message as a turn for "<channel>:<sender>".
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	log := r.log.With("messageId", msg.ID)
	log.Debug().
		Str("channel", msg.ChannelID).
		Str("from", msg.From).
		Msg("routing inbound message")

	if r.runner == nil {
		log.Warn().Msg("no runner configured, dropping message")
		return
	}
	if strings.TrimSpace(msg.From) == "" {
		log.Warn().Str("channel", msg.ChannelID).Msg("inbound message without sender, dropping")
		return
	}

	res := r.runner.Handle(ctx, agent.Turn{
		UserID: msg.UserID(),
		Text:   msg.Body,
		Source: msg.ChannelID,
	})

	if !r.reply {
		return
	}
	out := domain.OutboundMessage{ChannelID: msg.ChannelID, To: msg.From, Body: res.Reply}
	if err := r.channels.Send(ctx, out); err != nil {
		log.Error().Err(err).
			Str("channel", msg.ChannelID).
			Str("to", msg.From).
			Msg("failed to send reply")
		return
	}

	log.Info().
		Str("channel", msg.ChannelID).
		Str("to", msg.From).
		Str("turnId", res.TurnID).
		Str("status", string(res.Status)).
		Dur("duration", res.Duration).
		Msg("reply sent")
}

// Wire installs the router on every registered channel. Each inbound
// message is handled on its own goroutine; the runner serializes turns
// for the same guest.
func (r *Router) Wire(ctx context.Context) {
	r.channels.OnMessage(func(msg domain.InboundMessage) {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.HandleInbound(ctx, msg)
		}()
	})
	r.log.Debug().Strs("channels", r.channels.List()).Msg("wired message handlers")
}

// Wait blocks until every in-flight inbound message has been handled.
func (r *Router) Wait() {
	r.wg.Wait()
}

// SendTo sends a message to a specific channel.
func (r *Router) SendTo(ctx context.Context, channelID, target, body string) error {
	if _, ok := r.channels.Get(channelID); !ok {
		return fmt.Errorf("channel not found: %s", channelID)
	}
	return r.channels.Send(ctx, domain.OutboundMessage{
		ChannelID: channelID,
		To:        target,
		Body:      body,
	})
}
