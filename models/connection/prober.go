package connection

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/saeidalz13/battleship-server/internal/observability"
	"github.com/saeidalz13/battleship-server/models/packet"
)

const (
	DefaultPingInterval time.Duration = time.Second * 10
	DefaultProbeTimeout time.Duration = time.Second * 20
)

// Prober checks liveness with a PING round trip. Answers are matched through
// the inbox, so whatever else a client sends meanwhile stays filed for the
// turn loop.
type Prober struct {
	inbox   *Inbox
	timeout time.Duration
	logger  zerolog.Logger
}

func NewProber(inbox *Inbox, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		inbox:   inbox,
		timeout: timeout,
		logger:  observability.Channel(observability.ChannelPing),
	}
}

// Probe reports whether c answered a PING within the probe timeout.
func (pr *Prober) Probe(ctx context.Context, c *Client) bool {
	key := NewKey(c.Id(), packet.TypePing)

	// A late answer to an earlier probe must not count for this one.
	pr.inbox.Discard(key)

	if err := c.Send(packet.NewPing()); err != nil {
		pr.logger.Debug().Uint16("user", c.Id()).Err(err).Msg("ping send failed")
		observability.RecordProbe(false)
		return false
	}

	waitCtx, cancel := context.WithTimeout(ctx, pr.timeout)
	defer cancel()

	_, _, err := pr.inbox.Wait(waitCtx, key)
	alive := err == nil
	observability.RecordProbe(alive)
	if !alive {
		pr.logger.Info().Uint16("user", c.Id()).Err(err).Msg("ping unanswered")
		return false
	}

	pr.logger.Debug().Uint16("user", c.Id()).Msg("pong")
	return true
}

// Watch probes every client each interval until ctx ends or a probe fails.
// A failed probe is returned as a *LivenessError naming the client.
func (pr *Prober) Watch(ctx context.Context, interval time.Duration, clients ...*Client) error {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for _, c := range clients {
			if pr.Probe(ctx, c) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &LivenessError{Client: c.Id()}
		}
	}
}
