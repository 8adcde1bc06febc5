// Package channels contains the chat platform adapters. Each adapter
// receives platform messages, filters them through its allowlist, and
// publishes them to the message bus for the gateway to process.
package channels

import (
	"context"
	"sync"

	"github.com/cmdop/cmdop-bot/pkg/bus"
	"github.com/cmdop/cmdop-bot/pkg/config"
)

// Channel is one connected chat platform.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

// MessageLengthProvider is implemented by channels with a hard platform
// limit on message length. The manager splits longer messages.
type MessageLengthProvider interface {
	MaxMessageLength() int
}

type factory func(cfg *config.Config, messageBus *bus.MessageBus) (Channel, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]factory)
)

func registerFactory(name string, f factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

func getFactory(name string) (factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}
