package connection

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/saeidalz13/battleship-server/internal/observability"
	"github.com/saeidalz13/battleship-server/models/packet"
)

const (
	defaultReadTimeout  time.Duration = time.Second * 20
	defaultWriteTimeout time.Duration = time.Second * 5

	// A stream that keeps failing to frame has lost alignment for good.
	maxConsecutiveFramingErrors = 8
)

// Client is one connected socket. Writes are serialised; reads happen only
// in the goroutine started by Start.
type Client struct {
	id           uint16
	sessionId    string
	conn         Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	connectedAt  time.Time
	logger       zerolog.Logger

	wmu       sync.Mutex
	closeOnce sync.Once
	done      chan struct{}

	received    atomic.Uint64
	framingErrs atomic.Uint64
}

type ClientOption func(*Client)

func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.readTimeout = d
		}
	}
}

func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

func NewClient(id uint16, conn Conn, opts ...ClientOption) *Client {
	c := &Client{
		id:           id,
		sessionId:    base64.RawURLEncoding.EncodeToString([]byte(uuid.New().String())),
		conn:         conn,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		connectedAt:  time.Now(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = log.Logger.With().
		Uint16("user", id).
		Str("client_session", c.sessionId).
		Str("remote", c.RemoteAddr()).
		Logger()
	return c
}

func (c *Client) Id() uint16             { return c.id }
func (c *Client) SessionId() string      { return c.sessionId }
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }
func (c *Client) Done() <-chan struct{}  { return c.done }

func (c *Client) RemoteAddr() string {
	if c.conn == nil || c.conn.RemoteAddr() == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Send stamps the packet with this client's id and writes it.
func (c *Client) Send(p packet.Packet) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := SendPacket(c.conn, p.WithUserID(c.id), c.writeTimeout); err != nil {
		return NewConnErr(ConnLoopBreak).AddDesc("write failed: " + err.Error())
	}
	return nil
}

// Close closes the socket once. Later calls return nil.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// Start launches the reader goroutine that files every decoded packet into
// inbox until the stream ends.
func (c *Client) Start(ctx context.Context, inbox *Inbox) {
	go c.readLoop(ctx, inbox)
}

func (c *Client) readLoop(ctx context.Context, inbox *Inbox) {
	defer close(c.done)

	var consecutiveFraming int

readLoop:
	for {
		if ctx.Err() != nil {
			break readLoop
		}

		p, err := ReceivePacket(c.conn, c.readTimeout)
		if err == nil {
			consecutiveFraming = 0
			c.received.Add(1)
			observability.RecordPacket(p.Type().String())
			inbox.Put(c.id, p)
			continue readLoop
		}

		connErr := onConnErr(err)
		switch connErr.Code() {
		case ConnLoopContinue:
			continue readLoop

		case ConnLoopDiscard:
			c.framingErrs.Add(1)
			consecutiveFraming++

			var fe *packet.FramingError
			if errors.As(err, &fe) {
				observability.RecordFramingError(fe.Reason.String())
			}
			c.logger.Warn().Err(err).Int("consecutive", consecutiveFraming).Msg("discarded malformed packet")

			if consecutiveFraming >= maxConsecutiveFramingErrors {
				c.logger.Error().Msg("stream lost alignment, dropping client")
				break readLoop
			}

		default:
			c.logger.Debug().Str("cause", connErr.desc).Msg("reader stopped")
			break readLoop
		}
	}

	inbox.PutDisconnect(c.id)
}

// Wait blocks until the reader goroutine returned or ctx ended.
func (c *Client) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Received() uint64      { return c.received.Load() }
func (c *Client) FramingErrors() uint64 { return c.framingErrs.Load() }
