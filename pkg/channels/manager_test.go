package channels

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdop/cmdop-bot/pkg/bus"
	"github.com/cmdop/cmdop-bot/pkg/config"
)

type fakeChannel struct {
	*BaseChannel
	mu     sync.Mutex
	sent   []bus.OutboundMessage
	maxLen int
}

func newFakeChannel(name string, messageBus *bus.MessageBus, maxLen int) *fakeChannel {
	return &fakeChannel{
		BaseChannel: NewBaseChannel(name, messageBus, nil),
		maxLen:      maxLen,
	}
}

func (f *fakeChannel) Start(context.Context) error {
	f.setRunning(true)
	return nil
}

func (f *fakeChannel) Stop(context.Context) error {
	f.setRunning(false)
	return nil
}

func (f *fakeChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) MaxMessageLength() int { return f.maxLen }

func (f *fakeChannel) sentMessages() []bus.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bus.OutboundMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func TestManagerRoutesOutbound(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m, err := NewManager(config.DefaultConfig(), msgBus)
	require.NoError(t, err)

	fake := newFakeChannel("test", msgBus, 0)
	m.RegisterChannel("test", fake)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.StartAll(ctx))

	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "test", ChatID: "c1", Content: "hello"})

	require.Eventually(t, func() bool {
		return len(fake.sentMessages()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "hello", fake.sentMessages()[0].Content)

	cancel()
	require.NoError(t, m.StopAll(context.Background()))
}

func TestManagerSplitsLongMessages(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m, err := NewManager(config.DefaultConfig(), msgBus)
	require.NoError(t, err)

	fake := newFakeChannel("test", msgBus, 20)
	m.RegisterChannel("test", fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.StartAll(ctx))

	long := strings.Repeat("word ", 20)
	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "test", ChatID: "c1", Content: long})

	require.Eventually(t, func() bool {
		return len(fake.sentMessages()) > 1
	}, time.Second, 10*time.Millisecond)
	for _, msg := range fake.sentMessages() {
		assert.LessOrEqual(t, len([]rune(msg.Content)), 20)
	}
}

type blockingChannel struct {
	*fakeChannel
	release chan struct{}
}

func (b *blockingChannel) Send(ctx context.Context, _ bus.OutboundMessage) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestManagerStopWhileWorkerQueueFull(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m, err := NewManager(config.DefaultConfig(), msgBus)
	require.NoError(t, err)

	blocked := &blockingChannel{
		fakeChannel: newFakeChannel("test", msgBus, 0),
		release:     make(chan struct{}),
	}
	m.RegisterChannel("test", blocked)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.StartAll(ctx))

	// One message in flight at the channel, a full worker queue, and one
	// more parking the dispatcher on the queue send.
	for i := 0; i < channelQueueSize+2; i++ {
		msgBus.PublishOutbound(bus.OutboundMessage{Channel: "test", ChatID: "c1", Content: "x"})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, m.StopAll(context.Background()))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StopAll did not return")
	}
}

func TestManagerUnknownChannelDropped(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m, err := NewManager(config.DefaultConfig(), msgBus)
	require.NoError(t, err)

	fake := newFakeChannel("test", msgBus, 0)
	m.RegisterChannel("test", fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.StartAll(ctx))

	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "nope", ChatID: "c1", Content: "lost"})
	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "test", ChatID: "c1", Content: "kept"})

	require.Eventually(t, func() bool {
		return len(fake.sentMessages()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "kept", fake.sentMessages()[0].Content)
}
