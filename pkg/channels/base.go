package channels

import (
	"strings"
	"sync/atomic"

	"github.com/cmdop/cmdop-bot/pkg/bus"
	"github.com/cmdop/cmdop-bot/pkg/logger"
)

// BaseChannel carries the state every adapter shares: the bus, the
// allowlist, and the running flag.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
	running   atomic.Bool
}

func NewBaseChannel(name string, messageBus *bus.MessageBus, allowFrom []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       messageBus,
		allowFrom: allowFrom,
	}
}

func (b *BaseChannel) Name() string { return b.name }

func (b *BaseChannel) IsRunning() bool { return b.running.Load() }

func (b *BaseChannel) setRunning(running bool) { b.running.Store(running) }

// IsAllowed reports whether senderID passes the allowlist. An empty
// allowlist admits everyone. Sender IDs and allowlist entries may be
// compound ("id|username"); either part matches, and usernames may be
// listed with a leading "@".
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}

	idPart, userPart, _ := strings.Cut(senderID, "|")

	for _, entry := range b.allowFrom {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if entry == senderID || entry == idPart {
			return true
		}
		if entryID, _, compound := strings.Cut(entry, "|"); compound && entryID == idPart {
			return true
		}
		if name := strings.TrimPrefix(entry, "@"); userPart != "" && name == userPart {
			return true
		}
	}
	return false
}

// HandleMessage filters an incoming platform message through the
// allowlist and publishes it to the bus.
func (b *BaseChannel) HandleMessage(senderID, senderName, chatID, content string, metadata map[string]string) {
	if !b.IsAllowed(senderID) {
		logger.DebugCF(b.name, "Message rejected by allowlist", map[string]any{
			"sender_id": senderID,
		})
		return
	}

	b.bus.PublishInbound(bus.InboundMessage{
		Channel:    b.name,
		SenderID:   senderID,
		SenderName: senderName,
		ChatID:     chatID,
		Content:    content,
		Metadata:   metadata,
	})
}
