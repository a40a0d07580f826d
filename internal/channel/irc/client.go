// Package irc implements the IRC guest channel using the girc library.
//
// Guests talk to the concierge by private message to the bot's nick.
// Every sender gets its own session, keyed "irc:<nick>". Channel
// messages are ignored.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"github.com/soyeahso/concierge/internal/config"
	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/soyeahso/concierge/internal/version"
)

// ChannelID is the channel identifier and the user-id prefix for IRC guests.
const ChannelID = "irc"

// maxLineLen keeps PRIVMSG lines well under the 512-byte protocol limit.
const maxLineLen = 400

// Channel implements domain.Channel for IRC.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg: cfg,
		log: log.Sub("irc"),
	}
}

func (c *Channel) ID() string { return ChannelID }

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: ChannelID,
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// port returns the configured port, or the IRC default for the transport.
func (c *Channel) port() int {
	if c.cfg.Port != 0 {
		return c.cfg.Port
	}
	if c.cfg.UseTLS {
		return 6697
	}
	return 6667
}

func (c *Channel) gircConfig() girc.Config {
	gc := girc.Config{
		Server:  c.cfg.Server,
		Port:    c.port(),
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "Concierge",
		SSL:     c.cfg.UseTLS,
		Version: "Concierge/" + version.Version,
	}

	if c.cfg.UseTLS {
		gc.TLSConfig = &tls.Config{ServerName: c.cfg.Server}
	}

	if c.cfg.SASL && c.cfg.Password != "" {
		gc.SASL = &girc.SASLPlain{User: c.cfg.Nick, Pass: c.cfg.Password}
	} else if c.cfg.Password != "" {
		gc.ServerPass = c.cfg.Password
	}
	return gc
}

// Start connects to the IRC server and processes messages until ctx is
// cancelled or the connection drops.
func (c *Channel) Start(ctx context.Context) error {
	client := girc.New(c.gircConfig())
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)

	c.mu.Lock()
	c.client = client
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", c.port()).
		Str("nick", c.cfg.Nick).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case err := <-errCh:
		c.mu.Lock()
		c.running = false
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Stop gracefully disconnects from the IRC server.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		c.client.Quit("Concierge shutting down")
	}
	c.running = false
	return nil
}

// Send delivers a private message to a guest nick.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return fmt.Errorf("irc: not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("irc: no target specified")
	}

	lines := splitMessage(msg.Body, maxLineLen)
	for _, line := range lines {
		client.Cmd.Message(msg.To, line)
	}

	c.log.Debug().
		Str("to", msg.To).
		Int("lines", len(lines)).
		Msg("sent IRC message")
	return nil
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Msg("connected to IRC")
}

func (c *Channel) onDisconnected(_ *girc.Client, _ girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	msg, ok := inbound(e, client.GetNick(), time.Now())
	if !ok {
		if e.Source != nil && e.IsFromChannel() {
			c.log.Debug().Str("nick", e.Source.Name).Str("channel", e.Params[0]).Msg("ignoring channel message")
		}
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if handler != nil {
		handler(msg)
	}
}

// inbound converts a PRIVMSG into a guest message. Only private messages
// from someone other than self with a non-empty body qualify.
func inbound(e girc.Event, self string, at time.Time) (domain.InboundMessage, bool) {
	if e.Source == nil || len(e.Params) == 0 {
		return domain.InboundMessage{}, false
	}
	if strings.EqualFold(e.Source.Name, self) || e.IsFromChannel() {
		return domain.InboundMessage{}, false
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.InboundMessage{}, false
	}

	return domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: ChannelID,
		From:      e.Source.Name,
		FromName:  e.Source.Name,
		Body:      body,
		Timestamp: at,
	}, true
}

// splitMessage breaks a long message into chunks suitable for IRC.
// Each newline in the input produces a separate chunk because IRC
// PRIVMSG does not support embedded newlines. Lines longer than
// maxLen are further split at the byte boundary. Blank lines are dropped.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		for len(line) > maxLen {
			chunks = append(chunks, line[:maxLen])
			line = line[maxLen:]
		}
		if strings.TrimSpace(line) != "" {
			chunks = append(chunks, line)
		}
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
