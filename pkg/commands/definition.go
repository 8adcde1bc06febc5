package commands

import (
	"context"

	"github.com/cmdop/cmdop-bot/pkg/permissions"
)

type Handler func(ctx context.Context, req Request) error

// Definition describes one slash command and the permission level a
// sender needs before its handler runs.
type Definition struct {
	Name          string
	Description   string
	Usage         string
	Aliases       []string
	Channels      []string
	RequiredLevel permissions.Level
	Handler       Handler
}

// Request is one inbound command invocation.
type Request struct {
	Channel  string
	ChatID   string
	SenderID string
	Text     string
	Reply    func(text string) error
}

// Args returns everything after the command token.
func (r Request) Args() string {
	return commandArgs(r.Text)
}
