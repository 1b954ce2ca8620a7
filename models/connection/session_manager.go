package connection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	cerr "github.com/saeidalz13/battleship-server/internal/error"
)

// LiveSession is a running game session as the registry sees it.
type LiveSession interface {
	Id() string
	StartedAt() time.Time
	Players() [2]uint16
	Terminate()
	Done() <-chan struct{}
}

type SessionManager interface {
	Register(session LiveSession)
	FindSession(sessionId string) (LiveSession, error)
	TerminateSession(sessionId string)
	TerminateAll(ctx context.Context) error
	CleanupPeriodically(ctx context.Context)
	Sessions() []SessionInfo
	Count() int
}

type SessionInfo struct {
	Id        string    `json:"id"`
	Players   [2]uint16 `json:"players"`
	StartedAt time.Time `json:"started_at"`
}

type BattleshipSessionManager struct {
	cleanupInterval time.Duration
	maxSessionAge   time.Duration
	sessions        map[string]LiveSession
	mu              sync.RWMutex
}

var _ SessionManager = (*BattleshipSessionManager)(nil)

func NewBattleshipSessionManager(cleanupInterval, maxSessionAge time.Duration) *BattleshipSessionManager {
	initMapSize := 10

	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute * 5
	}
	if maxSessionAge <= 0 {
		maxSessionAge = time.Minute * 30
	}

	return &BattleshipSessionManager{
		sessions:        make(map[string]LiveSession, initMapSize),
		cleanupInterval: cleanupInterval,
		maxSessionAge:   maxSessionAge,
	}
}

func (bsm *BattleshipSessionManager) Register(session LiveSession) {
	bsm.mu.Lock()
	bsm.sessions[session.Id()] = session
	bsm.mu.Unlock()
}

func (bsm *BattleshipSessionManager) FindSession(sessionId string) (LiveSession, error) {
	bsm.mu.RLock()
	defer bsm.mu.RUnlock()

	session, prs := bsm.sessions[sessionId]
	if !prs || session == nil {
		return nil, cerr.ErrSessionNotFound(sessionId)
	}
	return session, nil
}

// TerminateSession only forgets the session. Sessions call it themselves on
// teardown.
func (bsm *BattleshipSessionManager) TerminateSession(sessionId string) {
	bsm.mu.Lock()
	delete(bsm.sessions, sessionId)
	bsm.mu.Unlock()
}

func (bsm *BattleshipSessionManager) snapshot() []LiveSession {
	bsm.mu.RLock()
	defer bsm.mu.RUnlock()

	out := make([]LiveSession, 0, len(bsm.sessions))
	for _, s := range bsm.sessions {
		out = append(out, s)
	}
	return out
}

// TerminateAll tells every live session to stop and waits until each one has
// torn down or ctx ends.
func (bsm *BattleshipSessionManager) TerminateAll(ctx context.Context) error {
	sessions := bsm.snapshot()
	for _, s := range sessions {
		s.Terminate()
	}

	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// To ensure that there are no dangling games, sessions older than the max
// session age get terminated on every cleanup tick.
func (bsm *BattleshipSessionManager) CleanupPeriodically(ctx context.Context) {
	ticker := time.NewTicker(bsm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, s := range bsm.snapshot() {
			if time.Since(s.StartedAt()) > bsm.maxSessionAge {
				log.Info().Str("session", s.Id()).Msg("terminating stale session")
				s.Terminate()
			}
		}
	}
}

func (bsm *BattleshipSessionManager) Sessions() []SessionInfo {
	sessions := bsm.snapshot()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{Id: s.Id(), Players: s.Players(), StartedAt: s.StartedAt()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (bsm *BattleshipSessionManager) Count() int {
	bsm.mu.RLock()
	defer bsm.mu.RUnlock()
	return len(bsm.sessions)
}
