// Package inbox implements Hyperborea's per-client message inbox (spec
// component C6): a bounded, channel-partitioned FIFO keyed by receiver
// public key.
//
// Grounded on original_source/hyperborealib/src/drivers/server/messages_inbox/basic_inbox.rs's
// BasicInbox (a cache of PublicKey -> Vec<MessageInfo>, append on push,
// linear-scan-and-remove on poll filtered by channel) reworked onto an
// explicit per-channel queue with the two hard caps spec.md §4.6 adds
// (per-channel 1024, per-client aggregate 16384) and a per-client lock
// instead of the original's single cache-wide access path, per spec.md
// §5's "per-client lock for inbox push/poll" concurrency contract.
package inbox

import (
	"sync"

	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/protocol"
)

// Config carries the capacity limits from spec.md §4.6.
type Config struct {
	ChannelCap       int
	AggregateCap     int
	DefaultPollLimit int
}

// DefaultConfig returns the spec's normative defaults.
func DefaultConfig() Config {
	return Config{
		ChannelCap:       1024,
		AggregateCap:     16384,
		DefaultPollLimit: 64,
	}
}

type clientInbox struct {
	mu       sync.Mutex
	channels map[string][]protocol.InboxMessage
	total    int
}

// Inbox is the server-wide collection of per-client bounded FIFOs.
type Inbox struct {
	cfg Config

	mu      sync.RWMutex
	clients map[string]*clientInbox
}

// New constructs an empty Inbox.
func New(cfg Config) *Inbox {
	return &Inbox{cfg: cfg, clients: make(map[string]*clientInbox)}
}

func keyOf(pk *crypto.PublicKey) string {
	b := pk.Bytes()
	return string(b[:])
}

func (ib *Inbox) clientFor(pk *crypto.PublicKey) *clientInbox {
	key := keyOf(pk)

	ib.mu.RLock()
	c, ok := ib.clients[key]
	ib.mu.RUnlock()
	if ok {
		return c
	}

	ib.mu.Lock()
	defer ib.mu.Unlock()
	if c, ok = ib.clients[key]; ok {
		return c
	}
	c = &clientInbox{channels: make(map[string][]protocol.InboxMessage)}
	ib.clients[key] = c
	return c
}

// Push enqueues msg for receiver, failing with a KindInboxFull error if
// either the channel or the client's aggregate cap is already at
// capacity (spec.md §4.6).
func (ib *Inbox) Push(receiver *crypto.PublicKey, msg protocol.InboxMessage) error {
	c := ib.clientFor(receiver)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.total >= ib.cfg.AggregateCap {
		return protocol.NewError(protocol.KindInboxFull, "receiver inbox at aggregate capacity")
	}
	if len(c.channels[msg.Channel]) >= ib.cfg.ChannelCap {
		return protocol.NewError(protocol.KindInboxFull, "receiver channel at capacity")
	}

	c.channels[msg.Channel] = append(c.channels[msg.Channel], msg)
	c.total++
	return nil
}

// Depth returns the aggregate count of messages queued across every
// client and channel, for observability (server/metrics).
func (ib *Inbox) Depth() int {
	ib.mu.RLock()
	defer ib.mu.RUnlock()

	total := 0
	for _, c := range ib.clients {
		c.mu.Lock()
		total += c.total
		c.mu.Unlock()
	}
	return total
}

// Poll removes and returns up to limit oldest messages for receiver on
// channel, in FIFO order, and reports how many remain queued on that
// channel afterward. limit<=0 applies the server's default poll limit.
func (ib *Inbox) Poll(receiver *crypto.PublicKey, channel string, limit int) (messages []protocol.InboxMessage, remaining int) {
	if limit <= 0 {
		limit = ib.cfg.DefaultPollLimit
	}

	c := ib.clientFor(receiver)

	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.channels[channel]
	if len(queue) == 0 {
		return nil, 0
	}

	if limit > len(queue) {
		limit = len(queue)
	}

	messages = append(messages, queue[:limit]...)
	rest := queue[limit:]

	if len(rest) == 0 {
		delete(c.channels, channel)
	} else {
		// Copy to avoid retaining the original backing array indefinitely.
		c.channels[channel] = append([]protocol.InboxMessage(nil), rest...)
	}

	c.total -= len(messages)
	return messages, len(rest)
}
