package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/saeidalz13/battleship-server/db/sqlc"
	cerr "github.com/saeidalz13/battleship-server/internal/error"
	"github.com/saeidalz13/battleship-server/internal/config"
	"github.com/saeidalz13/battleship-server/internal/observability"
	mb "github.com/saeidalz13/battleship-server/models/battleship"
	mc "github.com/saeidalz13/battleship-server/models/connection"
)

const (
	defaultGamePort int = 27000
	defaultHTTPPort int = 9191

	acceptBackoff     time.Duration = time.Millisecond * 50
	shutdownTimeout   time.Duration = time.Second * 10
	readHeaderTimeout time.Duration = time.Second * 5
)

var ErrServerClosed = errors.New("server closed")

type Server struct {
	gamePort      int
	httpPort      int
	stage         string
	pingInterval  time.Duration
	readTimeout   time.Duration
	probeTimeout  time.Duration
	maxSessionAge time.Duration
	fleet         mb.Fleet

	Db             *sql.DB
	DbManager      sqlc.DbManager
	GameManager    mb.GameManager
	SessionManager mc.SessionManager

	listener   net.Listener
	httpLn     net.Listener
	httpServer *http.Server

	// unbuffered so the acceptor blocks while the pairing loop probes
	incoming chan *mc.Client
	nextId   atomic.Uint32

	ctx          context.Context
	cancel       context.CancelFunc
	started      atomic.Bool
	closed       atomic.Bool
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	logger       zerolog.Logger
	errLogger    zerolog.Logger
}

type Option func(*Server) error

func NewServer(optFuncs ...Option) *Server {
	server := Server{
		gamePort:      defaultGamePort,
		httpPort:      defaultHTTPPort,
		stage:         config.StageDev,
		pingInterval:  mc.DefaultPingInterval,
		probeTimeout:  mc.DefaultProbeTimeout,
		maxSessionAge: time.Minute * 30,
		fleet:         mb.StandardFleet(),
	}
	for _, opt := range optFuncs {
		if err := opt(&server); err != nil {
			panic(err)
		}
	}

	server.SessionManager = mc.NewBattleshipSessionManager(0, server.maxSessionAge)
	server.GameManager = mb.NewBattleshipGameManager(server.fleet)
	server.DbManager = sqlc.NewDbManager(nil, net.IPNet{})
	server.incoming = make(chan *mc.Client)
	server.ctx, server.cancel = context.WithCancel(context.Background())
	server.logger = log.Logger.With().Str("component", "server").Logger()
	server.errLogger = observability.Channel(observability.ChannelError)

	observability.RegisterMetrics()
	return &server
}

func validPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port out of range: %d", port)
	}
	return nil
}

// WithGamePort sets the TCP port of the packet protocol. Zero picks a free
// port.
func WithGamePort(port int) Option {
	return func(s *Server) error {
		if err := validPort(port); err != nil {
			return err
		}
		s.gamePort = port
		return nil
	}
}

func WithHTTPPort(port int) Option {
	return func(s *Server) error {
		if err := validPort(port); err != nil {
			return err
		}
		s.httpPort = port
		return nil
	}
}

func WithStage(stage string) Option {
	return func(s *Server) error {
		if stage != config.StageProd && stage != config.StageDev {
			return cerr.ErrInvalidStage(stage)
		}
		s.stage = stage
		return nil
	}
}

func WithDb(db *sql.DB) Option {
	return func(s *Server) error {
		s.Db = db
		return nil
	}
}

func WithFleet(fleet mb.Fleet) Option {
	return func(s *Server) error {
		if fleet.Size() == 0 {
			return errors.New("fleet must hold at least one ship")
		}
		s.fleet = fleet
		return nil
	}
}

func positive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive: %s", name, d)
	}
	return nil
}

func WithPingInterval(d time.Duration) Option {
	return func(s *Server) error {
		s.pingInterval = d
		return positive("ping interval", d)
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.readTimeout = d
		return positive("read timeout", d)
	}
}

func WithProbeTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.probeTimeout = d
		return positive("probe timeout", d)
	}
}

func WithMaxSessionAge(d time.Duration) Option {
	return func(s *Server) error {
		s.maxSessionAge = d
		return positive("max session age", d)
	}
}

// WithConfig applies a loaded configuration.
func WithConfig(cfg config.Config) Option {
	return func(s *Server) error {
		for _, opt := range []Option{
			WithStage(cfg.Stage),
			WithGamePort(cfg.GamePort),
			WithHTTPPort(cfg.HTTPPort),
			WithPingInterval(cfg.PingInterval),
			WithReadTimeout(cfg.ReadTimeout),
			WithProbeTimeout(cfg.ProbeTimeout),
			WithMaxSessionAge(cfg.MaxSessionAge),
		} {
			if err := opt(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// Start binds the game and HTTP ports and returns once both accept
// connections. Serving happens in background goroutines until Shutdown.
func (s *Server) Start() error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.gamePort))
	if err != nil {
		return fmt.Errorf("listen game port: %w", err)
	}
	httpLn, err := net.Listen("tcp", fmt.Sprintf(":%d", s.httpPort))
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("listen http port: %w", err)
	}
	s.listener = ln
	s.httpLn = httpLn

	var queries sqlc.Querier
	if s.Db != nil {
		queries = sqlc.New(s.Db)
	}
	s.DbManager = sqlc.NewDbManager(queries, getServerIpNet(ln.Addr()))

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.wg.Add(4)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.pairLoop()
	}()
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()
	go func() {
		defer s.wg.Done()
		s.SessionManager.CleanupPeriodically(s.ctx)
	}()

	s.logger.Info().
		Str("game_addr", ln.Addr().String()).
		Str("http_addr", httpLn.Addr().String()).
		Str("stage", s.stage).
		Bool("analytics", s.DbManager.Analytics.Enabled()).
		Msg("server listening")
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) HTTPAddr() net.Addr {
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

func (s *Server) Stage() string { return s.stage }

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("accept failed")

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(acceptBackoff):
			}
			continue
		}
		s.admit(conn)
	}
}

func (s *Server) newClientId() uint16 {
	for {
		// 0 is never handed out so a zeroed header cannot name a client
		if id := uint16(s.nextId.Add(1)); id != 0 {
			return id
		}
	}
}

// admit wraps conn into a client and hands it to the pairing loop. It reports
// false when the server is shutting down, in which case conn is closed.
func (s *Server) admit(conn mc.Conn) (*mc.Client, bool) {
	if s.closed.Load() {
		_ = conn.Close()
		return nil, false
	}

	client := mc.NewClient(s.newClientId(), conn, mc.WithReadTimeout(s.readTimeout))
	select {
	case s.incoming <- client:
		s.logger.Info().
			Uint16("user", client.Id()).
			Str("client_session", client.SessionId()).
			Str("remote", client.RemoteAddr()).
			Msg("a new connection established")
		return client, true
	case <-s.ctx.Done():
		_ = client.Close()
		return nil, false
	}
}

func (s *Server) startSession(clients [2]*mc.Client, inbox *mc.Inbox, prober *mc.Prober) *GameSession {
	session := NewGameSession(s, clients, inbox, prober)
	s.SessionManager.Register(session)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		session.run(s.ctx)
	}()
	return session
}

// Shutdown stops accepting, ends every session and waits for all server
// goroutines. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				s.logger.Debug().Err(err).Msg("closing game listener")
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("http shutdown")
			}
		}
		if err := s.SessionManager.TerminateAll(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("sessions did not terminate in time")
		}

		s.wg.Wait()

		if s.Db != nil {
			if err := s.Db.Close(); err != nil {
				s.logger.Debug().Err(err).Msg("closing db")
			}
		}
		s.logger.Info().Msg("server shut down")
	})
}
