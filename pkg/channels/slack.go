package channels

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/cmdop/cmdop-bot/pkg/bus"
	"github.com/cmdop/cmdop-bot/pkg/config"
	"github.com/cmdop/cmdop-bot/pkg/logger"
)

const slackMaxMessageLength = 4000

func init() {
	registerFactory("slack", func(cfg *config.Config, messageBus *bus.MessageBus) (Channel, error) {
		return NewSlackChannel(cfg.Channels.Slack, messageBus)
	})
}

// SlackChannel connects over Socket Mode, so no public HTTP endpoint is
// needed.
type SlackChannel struct {
	*BaseChannel
	api    *slack.Client
	socket *socketmode.Client
	config config.SlackConfig
	botID  string
}

func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) (*SlackChannel, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack requires both bot_token and app_token")
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	return &SlackChannel{
		BaseChannel: NewBaseChannel("slack", messageBus, cfg.AllowFrom),
		api:         api,
		socket:      socketmode.New(api),
		config:      cfg,
	}, nil
}

func (c *SlackChannel) MaxMessageLength() int { return slackMaxMessageLength }

func (c *SlackChannel) Start(ctx context.Context) error {
	logger.InfoC("slack", "Starting Slack bot (socket mode)")

	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test failed: %w", err)
	}
	c.botID = auth.UserID

	c.setRunning(true)
	logger.InfoCF("slack", "Slack bot connected", map[string]any{
		"user":    auth.User,
		"user_id": auth.UserID,
		"team":    auth.Team,
	})

	go c.runEventLoop(ctx)
	go func() {
		if err := c.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorCF("slack", "Socket mode stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
	logger.InfoC("slack", "Stopping Slack bot")
	c.setRunning(false)
	return nil
}

func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("slack bot not running")
	}
	if msg.Content == "" {
		return nil
	}

	_, _, err := c.api.PostMessageContext(ctx, msg.ChatID,
		slack.MsgOptionText(msg.Content, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	return err
}

func (c *SlackChannel) runEventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnectionError:
				logger.WarnC("slack", "Socket mode connection error")
			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				c.socket.Ack(*evt.Request)
				c.handleEventsAPI(apiEvent)
			}
		}
	}
}

func (c *SlackChannel) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Ignore our own messages, bot posts, and edits.
	if msg.User == "" || msg.User == c.botID || msg.BotID != "" || msg.SubType != "" {
		return
	}
	if msg.Text == "" {
		return
	}

	c.HandleMessage(msg.User, msg.Username, msg.Channel, msg.Text, map[string]string{
		"ts": msg.TimeStamp,
	})
}
