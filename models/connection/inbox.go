package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/saeidalz13/battleship-server/models/packet"
)

type Key struct {
	Client uint16
	Type   packet.Type
}

func NewKey(client uint16, typ packet.Type) Key {
	return Key{Client: client, Type: typ}
}

// Inbox holds decoded packets that nobody consumed yet, filed per client and
// packet type. Readers only append; the turn loop and the prober take the
// entries they are waiting for and leave the rest alone.
type Inbox struct {
	mu     sync.Mutex
	queues map[Key][]packet.Packet
	gone   map[uint16]bool
	// closed and replaced on every change so waiters wake without polling
	changed chan struct{}
}

func NewInbox() *Inbox {
	return &Inbox{
		queues:  make(map[Key][]packet.Packet, 8),
		gone:    make(map[uint16]bool, 2),
		changed: make(chan struct{}),
	}
}

func (in *Inbox) broadcast() {
	close(in.changed)
	in.changed = make(chan struct{})
}

func (in *Inbox) Put(client uint16, p packet.Packet) {
	key := NewKey(client, p.Type())

	in.mu.Lock()
	in.queues[key] = append(in.queues[key], p)
	in.broadcast()
	in.mu.Unlock()
}

// PutDisconnect files the end of a client's stream. Packets it sent before
// are still handed out first.
func (in *Inbox) PutDisconnect(client uint16) {
	in.mu.Lock()
	in.gone[client] = true
	in.broadcast()
	in.mu.Unlock()
}

func (in *Inbox) Disconnected(client uint16) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.gone[client]
}

func (in *Inbox) take(key Key) (packet.Packet, bool) {
	q := in.queues[key]
	if len(q) == 0 {
		return packet.Packet{}, false
	}

	p := q[0]
	if len(q) == 1 {
		delete(in.queues, key)
	} else {
		in.queues[key] = q[1:]
	}
	return p, true
}

// Take removes the oldest packet filed under key without blocking.
func (in *Inbox) Take(key Key) (packet.Packet, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.take(key)
}

// Wait blocks until a packet arrives under one of the keys, one of their
// clients disconnects, or ctx ends. Keys are checked in order. A disconnect
// is reported as ErrDisconnected together with the key of that client and
// stays filed, so later waits see it too.
func (in *Inbox) Wait(ctx context.Context, keys ...Key) (Key, packet.Packet, error) {
	for {
		in.mu.Lock()
		for _, key := range keys {
			if p, ok := in.take(key); ok {
				in.mu.Unlock()
				return key, p, nil
			}
		}
		for _, key := range keys {
			if in.gone[key.Client] {
				in.mu.Unlock()
				return key, packet.Packet{}, fmt.Errorf("client %d: %w", key.Client, ErrDisconnected)
			}
		}
		changed := in.changed
		in.mu.Unlock()

		select {
		case <-ctx.Done():
			return Key{}, packet.Packet{}, ctx.Err()
		case <-changed:
		}
	}
}

// Discard drops everything filed under key and reports how many packets
// went.
func (in *Inbox) Discard(key Key) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	n := len(in.queues[key])
	delete(in.queues, key)
	return n
}

// Purge forgets a client entirely.
func (in *Inbox) Purge(client uint16) {
	in.mu.Lock()
	for key := range in.queues {
		if key.Client == client {
			delete(in.queues, key)
		}
	}
	delete(in.gone, client)
	in.broadcast()
	in.mu.Unlock()
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()

	var n int
	for _, q := range in.queues {
		n += len(q)
	}
	return n
}
