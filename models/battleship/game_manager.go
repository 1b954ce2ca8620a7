package battleship

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type GameManager interface {
	CreateGame(rng *rand.Rand) *Game
	Publish(game *Game)
	TerminateGame(gameUuid string)
	Snapshot() []GameSummary
	Count() int
}

// GameSummary is a read only view of a live game for the admin surface.
type GameSummary struct {
	Uuid      string    `json:"uuid"`
	Phase     string    `json:"phase"`
	ShipsLeft [2]int    `json:"ships_left"`
	Shots     [2]int    `json:"shots"`
	CreatedAt time.Time `json:"created_at"`
}

type BattleshipGameManager struct {
	fleet Fleet
	games map[string]*Game
	// Summaries are refreshed by the owning session, never read from the
	// live game across goroutines.
	summaries map[string]GameSummary
	mu        sync.RWMutex
}

var _ GameManager = (*BattleshipGameManager)(nil)

func NewBattleshipGameManager(fleet Fleet) *BattleshipGameManager {
	return &BattleshipGameManager{
		fleet:     fleet,
		games:     make(map[string]*Game, 10),
		summaries: make(map[string]GameSummary, 10),
	}
}

func (bgm *BattleshipGameManager) CreateGame(rng *rand.Rand) *Game {
	game := NewGame(bgm.fleet, rng)

	bgm.mu.Lock()
	for {
		if _, prs := bgm.games[game.uuid]; !prs {
			break
		}
		game.uuid = uuid.NewString()[:6]
	}
	bgm.games[game.uuid] = game
	bgm.summaries[game.uuid] = summarize(game)
	bgm.mu.Unlock()

	return game
}

// Publish stores a fresh summary of the game. It must be called from the
// goroutine that owns the game.
func (bgm *BattleshipGameManager) Publish(game *Game) {
	summary := summarize(game)

	bgm.mu.Lock()
	if _, prs := bgm.games[game.uuid]; prs {
		bgm.summaries[game.uuid] = summary
	}
	bgm.mu.Unlock()
}

func (bgm *BattleshipGameManager) TerminateGame(gameUuid string) {
	bgm.mu.Lock()
	delete(bgm.games, gameUuid)
	delete(bgm.summaries, gameUuid)
	bgm.mu.Unlock()
}

func (bgm *BattleshipGameManager) Snapshot() []GameSummary {
	bgm.mu.RLock()
	out := make([]GameSummary, 0, len(bgm.summaries))
	for _, s := range bgm.summaries {
		out = append(out, s)
	}
	bgm.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (bgm *BattleshipGameManager) Count() int {
	bgm.mu.RLock()
	defer bgm.mu.RUnlock()
	return len(bgm.games)
}

func summarize(g *Game) GameSummary {
	return GameSummary{
		Uuid:      g.uuid,
		Phase:     g.phase.String(),
		ShipsLeft: [2]int{g.grid.ShipsLeft(PlayerOne), g.grid.ShipsLeft(PlayerTwo)},
		Shots:     g.shots,
		CreatedAt: g.createdAt,
	}
}
