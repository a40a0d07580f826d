package domain

import (
	"strings"
	"time"
)

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	From      string    `json:"from"`
	FromName  string    `json:"fromName,omitempty"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// UserID is the session key for the sender: "<channel>:<sender>".
func (m InboundMessage) UserID() string {
	return m.ChannelID + ":" + m.From
}

// OutboundMessage is a message to be sent via a channel.
type OutboundMessage struct {
	ChannelID string `json:"channelId"`
	To        string `json:"to"`
	Body      string `json:"body"`
}

// SplitUserID splits a channel-qualified user id ("irc:alice") into channel
// and sender. ok is false for ids without a channel prefix.
func SplitUserID(userID string) (channelID, sender string, ok bool) {
	channelID, sender, ok = strings.Cut(userID, ":")
	if !ok || channelID == "" || sender == "" {
		return "", "", false
	}
	return channelID, sender, true
}
