// Package identity defines the cross-channel principal key used for
// authorization. Every platform user is addressed as "<channel>:<user-id>",
// and that composite string is the unit the permission store operates on.
package identity

import (
	"fmt"
	"strings"
)

// Channel is the closed set of chat platforms this bot supports.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelDiscord  Channel = "discord"
	ChannelSlack    Channel = "slack"
)

var knownChannels = map[Channel]bool{
	ChannelTelegram: true,
	ChannelDiscord:  true,
	ChannelSlack:    true,
}

// Identity is a principal: a platform user scoped to one channel.
// It is immutable once constructed and never reused across users.
type Identity struct {
	Channel Channel
	UserID  string
}

// New builds an Identity, validating the channel tag and user id.
func New(channel Channel, userID string) (Identity, error) {
	if !knownChannels[channel] {
		return Identity{}, fmt.Errorf("unknown channel %q", channel)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Identity{}, fmt.Errorf("empty user id for channel %q", channel)
	}
	return Identity{Channel: channel, UserID: userID}, nil
}

// Parse converts a canonical "<channel>:<user-id>" string back to an
// Identity. The user id may itself contain colons (Slack user ids do not,
// but nothing downstream should depend on that).
func Parse(s string) (Identity, error) {
	channel, userID, ok := strings.Cut(s, ":")
	if !ok {
		return Identity{}, fmt.Errorf("identity %q missing channel prefix", s)
	}
	return New(Channel(channel), userID)
}

// String returns the canonical composite key.
func (id Identity) String() string {
	return string(id.Channel) + ":" + id.UserID
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.Channel == "" && id.UserID == ""
}
