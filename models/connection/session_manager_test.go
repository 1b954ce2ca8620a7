package connection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id        string
	startedAt time.Time
	once      sync.Once
	done      chan struct{}
}

func newFakeSession(id string, startedAt time.Time) *fakeSession {
	return &fakeSession{id: id, startedAt: startedAt, done: make(chan struct{})}
}

func (f *fakeSession) Id() string            { return f.id }
func (f *fakeSession) StartedAt() time.Time  { return f.startedAt }
func (f *fakeSession) Players() [2]uint16    { return [2]uint16{1, 2} }
func (f *fakeSession) Done() <-chan struct{} { return f.done }
func (f *fakeSession) Terminate()            { f.once.Do(func() { close(f.done) }) }

func TestSessionManagerRegistry(t *testing.T) {
	bsm := NewBattleshipSessionManager(0, 0)
	a := newFakeSession("a", time.Now().Add(-time.Minute))
	b := newFakeSession("b", time.Now())
	bsm.Register(b)
	bsm.Register(a)

	assert.Equal(t, 2, bsm.Count())
	found, err := bsm.FindSession("a")
	require.NoError(t, err)
	assert.Equal(t, "a", found.Id())

	infos := bsm.Sessions()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Id)

	bsm.TerminateSession("a")
	_, err = bsm.FindSession("a")
	assert.Error(t, err)
}

func TestSessionManagerTerminateAll(t *testing.T) {
	bsm := NewBattleshipSessionManager(0, 0)
	sessions := []*fakeSession{newFakeSession("a", time.Now()), newFakeSession("b", time.Now())}
	for _, s := range sessions {
		bsm.Register(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bsm.TerminateAll(ctx))

	for _, s := range sessions {
		select {
		case <-s.Done():
		default:
			t.Fatalf("session %s was not terminated", s.id)
		}
	}
}

func TestSessionManagerCleanup(t *testing.T) {
	bsm := NewBattleshipSessionManager(20*time.Millisecond, time.Minute)
	stale := newFakeSession("stale", time.Now().Add(-time.Hour))
	fresh := newFakeSession("fresh", time.Now())
	bsm.Register(stale)
	bsm.Register(fresh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bsm.CleanupPeriodically(ctx)

	select {
	case <-stale.Done():
	case <-time.After(time.Second):
		t.Fatal("stale session survived cleanup")
	}

	select {
	case <-fresh.Done():
		t.Fatal("fresh session was terminated")
	default:
	}
}
