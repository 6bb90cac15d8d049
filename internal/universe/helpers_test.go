package universe

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/codewords/codewords/internal/board"
	"github.com/codewords/codewords/internal/protocol"

	"github.com/google/uuid"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (s *recordingSink) Send(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *recordingSink) Messages() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
}

func messagesOfType[T protocol.Message](s *recordingSink) []T {
	var out []T
	for _, msg := range s.Messages() {
		if typed, ok := msg.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func seededBoard() *board.Board {
	return board.NewWithRand(rand.New(rand.NewPCG(7, 11)))
}

func newTestUniverse(opts ...Option) *Universe {
	return New(append([]Option{WithBoardFactory(seededBoard)}, opts...)...)
}

type testPlayer struct {
	id   uuid.UUID
	sink *recordingSink
}

func addPlayer(t *testing.T, u *Universe, nickname string) testPlayer {
	t.Helper()
	sink := &recordingSink{}
	id := u.AddSession(sink)
	if _, err := u.Authenticate(id, nickname); err != nil {
		t.Fatalf("authenticate %s: %v", nickname, err)
	}
	return testPlayer{id: id, sink: sink}
}

// staffGame joins four players and seats them on both teams.
func staffGame(t *testing.T, u *Universe) (*Game, []testPlayer) {
	t.Helper()
	game, code := u.NewMatch()
	players := []testPlayer{
		addPlayer(t, u, "alice"),
		addPlayer(t, u, "bob"),
		addPlayer(t, u, "carol"),
		addPlayer(t, u, "dave"),
	}
	for _, p := range players {
		if _, err := u.JoinMatch(p.id, code); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	game.SetPlayerTeam(players[0].id, protocol.TeamRed)
	game.SetPlayerTeam(players[1].id, protocol.TeamRed)
	game.SetPlayerTeam(players[2].id, protocol.TeamBlue)
	game.SetPlayerTeam(players[3].id, protocol.TeamBlue)
	return game, players
}

func playerEntry(t *testing.T, game *Game, viewer, target uuid.UUID) protocol.GamePlayerState {
	t.Helper()
	snap, ok := game.Snapshot(viewer)
	if !ok {
		t.Fatalf("viewer %s not in game", viewer)
	}
	for _, entry := range snap.Players {
		if entry.Player.ID == target {
			return entry
		}
	}
	t.Fatalf("player %s not in snapshot", target)
	return protocol.GamePlayerState{}
}

func checkRosterInvariants(t *testing.T, game *Game) {
	t.Helper()
	game.mu.Lock()
	defer game.mu.Unlock()
	spymasters := map[protocol.Team]int{}
	for id, p := range game.players {
		if p.team == protocol.TeamNone && p.role != protocol.RoleSpectator {
			t.Fatalf("player %s has role %s without a team", id, p.role)
		}
		if p.role == protocol.RoleSpymaster {
			spymasters[p.team]++
		}
	}
	for team, count := range spymasters {
		if count > 1 {
			t.Fatalf("team %s has %d spymasters", team, count)
		}
	}
}
