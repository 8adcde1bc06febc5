package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidChannels(t *testing.T) {
	for _, ch := range []Channel{ChannelTelegram, ChannelDiscord, ChannelSlack} {
		id, err := New(ch, "12345")
		require.NoError(t, err)
		assert.Equal(t, string(ch)+":12345", id.String())
	}
}

func TestNewRejectsUnknownChannel(t *testing.T) {
	_, err := New("irc", "12345")
	assert.Error(t, err)
}

func TestNewRejectsEmptyUserID(t *testing.T) {
	_, err := New(ChannelTelegram, "   ")
	assert.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	id, err := Parse("discord:987654321")
	require.NoError(t, err)
	assert.Equal(t, ChannelDiscord, id.Channel)
	assert.Equal(t, "987654321", id.UserID)
	assert.Equal(t, "discord:987654321", id.String())
}

func TestParseUserIDWithColon(t *testing.T) {
	id, err := Parse("slack:team:U123")
	require.NoError(t, err)
	assert.Equal(t, "team:U123", id.UserID)
}

func TestParseMissingPrefix(t *testing.T) {
	_, err := Parse("justauserid")
	assert.Error(t, err)
}

func TestIsZero(t *testing.T) {
	var id Identity
	assert.True(t, id.IsZero())

	id, _ = New(ChannelSlack, "U1")
	assert.False(t, id.IsZero())
}
