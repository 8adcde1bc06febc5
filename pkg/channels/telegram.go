package channels

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/cmdop/cmdop-bot/pkg/bus"
	"github.com/cmdop/cmdop-bot/pkg/config"
	"github.com/cmdop/cmdop-bot/pkg/logger"
)

const telegramMaxMessageLength = 4096

func init() {
	registerFactory("telegram", func(cfg *config.Config, messageBus *bus.MessageBus) (Channel, error) {
		return NewTelegramChannel(cfg.Channels.Telegram, messageBus)
	})
}

type TelegramChannel struct {
	*BaseChannel
	bot    *telego.Bot
	config config.TelegramConfig
}

func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus) (*TelegramChannel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", messageBus, cfg.AllowFrom),
		bot:         bot,
		config:      cfg,
	}, nil
}

func (c *TelegramChannel) MaxMessageLength() int { return telegramMaxMessageLength }

func (c *TelegramChannel) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)")

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	c.setRunning(true)
	logger.InfoCF("telegram", "Telegram bot connected", map[string]any{
		"username": c.bot.Username(),
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.InfoC("telegram", "Updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleUpdate(update)
				}
			}
		}
	}()

	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	logger.InfoC("telegram", "Stopping Telegram bot")
	c.setRunning(false)
	return nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", msg.ChatID, err)
	}

	htmlMsg := tu.Message(tu.ID(chatID), telegramHTML(msg.Content))
	htmlMsg.ParseMode = telego.ModeHTML
	if _, err := c.bot.SendMessage(ctx, htmlMsg); err != nil {
		logger.DebugCF("telegram", "HTML send failed, falling back to plain text", map[string]any{
			"error": err.Error(),
		})
		_, fallbackErr := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), msg.Content))
		return fallbackErr
	}
	return nil
}

func (c *TelegramChannel) handleUpdate(update telego.Update) {
	message := update.Message
	user := message.From
	if user == nil {
		return
	}

	senderID := strconv.FormatInt(user.ID, 10)
	if user.Username != "" {
		senderID = senderID + "|" + user.Username
	}

	content := message.Text
	if content == "" {
		content = message.Caption
	}
	if content == "" {
		return
	}

	c.HandleMessage(
		senderID,
		user.Username,
		strconv.FormatInt(message.Chat.ID, 10),
		content,
		map[string]string{"message_id": strconv.Itoa(message.MessageID)},
	)
}

// telegramHTML renders markdown-ish bot output as Telegram HTML. Code
// fences map to <pre>, inline backticks to <code>, everything else is
// escaped.
func telegramHTML(content string) string {
	var sb strings.Builder
	parts := strings.Split(content, "```")
	for i, part := range parts {
		if i%2 == 1 {
			// Inside a fence. Drop the language tag on the first line.
			if idx := strings.Index(part, "\n"); idx >= 0 && !strings.ContainsAny(part[:idx], " \t") {
				part = part[idx+1:]
			}
			sb.WriteString("<pre>")
			sb.WriteString(html.EscapeString(strings.Trim(part, "\n")))
			sb.WriteString("</pre>")
			continue
		}
		sb.WriteString(inlineTelegramHTML(part))
	}
	return sb.String()
}

func inlineTelegramHTML(text string) string {
	var sb strings.Builder
	segments := strings.Split(text, "`")
	for i, seg := range segments {
		escaped := html.EscapeString(seg)
		if i%2 == 1 && i < len(segments)-1 {
			sb.WriteString("<code>")
			sb.WriteString(escaped)
			sb.WriteString("</code>")
		} else {
			sb.WriteString(escaped)
		}
	}
	return sb.String()
}
