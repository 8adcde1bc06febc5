// Package gateway is the loop between the message bus and the command
// layer: it consumes inbound messages, dispatches commands, and routes
// free text to the agent.
package gateway

import (
	"context"
	"sync"

	"github.com/cmdop/cmdop-bot/pkg/bus"
	"github.com/cmdop/cmdop-bot/pkg/commands"
	"github.com/cmdop/cmdop-bot/pkg/logger"
)

const defaultWorkers = 4

type Gateway struct {
	bus        *bus.MessageBus
	dispatcher *commands.Dispatcher
	workers    int
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func New(messageBus *bus.MessageBus, env *commands.Env) *Gateway {
	registry := commands.NewRegistry(commands.BuiltinDefinitions(env))
	return &Gateway{
		bus:        messageBus,
		dispatcher: commands.NewDispatcher(registry, env),
		workers:    defaultWorkers,
	}
}

func (g *Gateway) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	for i := 0; i < g.workers; i++ {
		g.wg.Add(1)
		go g.run(runCtx)
	}
	logger.InfoCF("gateway", "Gateway started", map[string]any{
		"workers": g.workers,
	})
}

func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
	logger.InfoC("gateway", "Gateway stopped")
}

func (g *Gateway) run(ctx context.Context) {
	defer g.wg.Done()
	for {
		msg, ok := g.bus.ConsumeInbound(ctx)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		g.process(ctx, msg)
	}
}

func (g *Gateway) process(ctx context.Context, msg bus.InboundMessage) {
	req := commands.Request{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		SenderID: msg.SenderID,
		Text:     msg.Content,
		Reply: func(text string) error {
			g.bus.PublishOutbound(bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: text,
			})
			return nil
		},
	}

	result := g.dispatcher.Dispatch(ctx, req)
	if result.Outcome == commands.OutcomePassthrough {
		result = g.dispatcher.HandleFreeText(ctx, req)
	}

	logger.DebugCF("gateway", "Message processed", map[string]any{
		"channel": msg.Channel,
		"sender":  msg.SenderID,
		"command": result.Command,
		"outcome": int(result.Outcome),
	})
}
