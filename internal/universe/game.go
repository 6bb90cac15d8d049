package universe

import (
	"sync"
	"sync/atomic"

	"github.com/codewords/codewords/internal/board"
	"github.com/codewords/codewords/internal/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// directory is the part of the Universe a Game calls back into. A Game never
// owns the Universe; it only asks it to route messages and membership.
type directory interface {
	Send(playerID uuid.UUID, msg protocol.Message)
	RemoveMatch(gameID uuid.UUID) bool
	bindPlayerGame(playerID, gameID, from uuid.UUID) error
	unbindPlayerGame(playerID, gameID, restore uuid.UUID)
	playerInfos(ids []uuid.UUID) map[uuid.UUID]protocol.PlayerInfo
	notify(ev Event)
}

type playerState struct {
	team  protocol.Team
	role  protocol.PlayerRole
	ready bool
}

type seat struct {
	team protocol.Team
	role protocol.PlayerRole
}

// Game is one match: its roster, turn and board.
//
// Roster mutators refuse to run once the game has left pregame and keep the
// roster invariants: one spymaster per team, no role without a team.
type Game struct {
	id       uuid.UUID
	joinCode string
	dir      directory
	logger   zerolog.Logger

	// joinable mirrors turn == pregame so the Universe can read it without
	// taking the game lock.
	joinable atomic.Bool

	mu      sync.Mutex
	players map[uuid.UUID]*playerState
	turn    protocol.Turn
	board   *board.Board
	closed  bool
}

func newGame(id uuid.UUID, joinCode string, b *board.Board, dir directory, logger zerolog.Logger) *Game {
	g := &Game{
		id:       id,
		joinCode: joinCode,
		dir:      dir,
		logger:   logger.With().Stringer("game_id", id).Logger(),
		players:  make(map[uuid.UUID]*playerState),
		turn:     protocol.TurnPregame,
		board:    b,
	}
	g.joinable.Store(true)
	return g
}

func (g *Game) ID() uuid.UUID {
	return g.id
}

func (g *Game) JoinCode() string {
	return g.joinCode
}

func (g *Game) Info() protocol.GameInfo {
	return protocol.GameInfo{GameID: g.id, JoinCode: g.joinCode}
}

// IsJoinable reports whether the game is still in pregame.
func (g *Game) IsJoinable() bool {
	return g.joinable.Load()
}

func (g *Game) Turn() protocol.Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turn
}

func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

func (g *Game) HasPlayer(playerID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.players[playerID]
	return ok
}

// AddPlayer puts a player into the game as a teamless spectator. Adding a
// player who is already in the game does nothing; a player in another game
// is refused.
func (g *Game) AddPlayer(playerID uuid.UUID) error {
	return g.addPlayer(playerID, uuid.Nil)
}

// addPlayer is AddPlayer for a player who may still be bound to the game
// from. On failure the player is bound to from again.
func (g *Game) addPlayer(playerID, from uuid.UUID) error {
	if err := g.dir.bindPlayerGame(playerID, g.id, from); err != nil {
		return err
	}

	g.mu.Lock()
	if _, ok := g.players[playerID]; ok {
		g.mu.Unlock()
		return nil
	}
	if g.closed {
		g.mu.Unlock()
		g.dir.unbindPlayerGame(playerID, g.id, from)
		return protocol.NewError(protocol.ErrNotFound, "game does not exist")
	}
	if g.turn != protocol.TurnPregame {
		g.mu.Unlock()
		g.dir.unbindPlayerGame(playerID, g.id, from)
		return protocol.NewError(protocol.ErrBadState, "game is currently not joinable")
	}
	g.players[playerID] = &playerState{team: protocol.TeamNone, role: protocol.RoleSpectator}
	others := g.playerIDsLocked(playerID)
	g.mu.Unlock()

	info := g.dir.playerInfos([]uuid.UUID{playerID})[playerID]
	msg := protocol.PlayerConnectedMessage{GamePlayerState: protocol.GamePlayerState{
		Player: info,
		Team:   protocol.TeamNone,
		Role:   protocol.RoleSpectator,
	}}
	for _, id := range others {
		g.dir.Send(id, msg)
	}
	g.logger.Debug().Stringer("player_id", playerID).Msg("player joined game")
	g.dir.notify(Event{Kind: EventPlayerJoined, Game: g.Info(), PlayerID: playerID})
	return nil
}

// RemovePlayer takes a player out of the game. The last player out removes
// the game from the Universe.
func (g *Game) RemovePlayer(playerID uuid.UUID) {
	g.dir.unbindPlayerGame(playerID, g.id, uuid.Nil)

	g.mu.Lock()
	if _, ok := g.players[playerID]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.players, playerID)
	empty := len(g.players) == 0
	if empty {
		g.closed = true
		g.joinable.Store(false)
	}
	remaining := g.playerIDsLocked(uuid.Nil)
	g.mu.Unlock()

	g.logger.Debug().Stringer("player_id", playerID).Msg("player left game")
	g.dir.notify(Event{Kind: EventPlayerLeft, Game: g.Info(), PlayerID: playerID})
	if empty {
		g.dir.RemoveMatch(g.id)
		return
	}
	msg := protocol.PlayerDisconnectedMessage{PlayerID: playerID}
	for _, id := range remaining {
		g.dir.Send(id, msg)
	}
	g.BroadcastSnapshot()
}

// SetPlayerTeam moves a player to team and picks their role: no team means
// spectator, otherwise the player takes the team's spymaster seat if it is
// free and becomes an operative if not. Players outside the game are
// ignored; once the game has started the change is refused with BadState.
func (g *Game) SetPlayerTeam(playerID uuid.UUID, team protocol.Team) error {
	g.mu.Lock()
	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return nil
	}
	if g.turn != protocol.TurnPregame {
		g.mu.Unlock()
		return protocol.NewError(protocol.ErrBadState, "cannot set team because game is not joinable")
	}
	p.team = team
	p.ready = false
	switch {
	case team == protocol.TeamNone:
		p.role = protocol.RoleSpectator
	case g.hasSpymasterLocked(team, playerID):
		p.role = protocol.RoleOperative
	default:
		p.role = protocol.RoleSpymaster
	}
	g.mu.Unlock()

	g.BroadcastSnapshot()
	return nil
}

// SetPlayerRole changes a teamed player's role. Taking the spymaster role
// demotes the team's current spymaster to operative. Players without a team
// keep their spectator role. Like SetPlayerTeam it is refused after start.
func (g *Game) SetPlayerRole(playerID uuid.UUID, role protocol.PlayerRole) error {
	g.mu.Lock()
	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return nil
	}
	if g.turn != protocol.TurnPregame {
		g.mu.Unlock()
		return protocol.NewError(protocol.ErrBadState, "cannot set role because game is not joinable")
	}
	if p.team == protocol.TeamNone {
		g.mu.Unlock()
		return nil
	}
	p.role = role
	p.ready = false
	if role == protocol.RoleSpymaster {
		for id, other := range g.players {
			if id == playerID || other.team != p.team || other.role != protocol.RoleSpymaster {
				continue
			}
			other.role = protocol.RoleOperative
			other.ready = false
		}
	}
	g.mu.Unlock()

	g.BroadcastSnapshot()
	return nil
}

// MarkReady flags the player as ready. When both teams have a ready
// spymaster and ready operatives, the game leaves pregame and the board's
// starting team begins. It reports whether that transition happened.
func (g *Game) MarkReady(playerID uuid.UUID) bool {
	g.mu.Lock()
	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return false
	}
	p.ready = true
	started := false
	if g.turn == protocol.TurnPregame && g.quorumLocked() {
		turn, err := protocol.SpymasterThinking(g.board.StartingTeam())
		if err != nil {
			g.logger.Error().Err(err).Msg("board has no starting team")
		} else {
			g.turn = turn
			g.joinable.Store(false)
			started = true
		}
	}
	turn := g.turn
	g.mu.Unlock()

	if started {
		g.logger.Info().Str("turn", string(turn)).Msg("game started")
		g.dir.notify(Event{Kind: EventGameStarted, Game: g.Info(), Turn: turn})
	}
	g.BroadcastSnapshot()
	return started
}

// Broadcast sends msg to every player in the game.
func (g *Game) Broadcast(msg protocol.Message) {
	g.mu.Lock()
	ids := g.playerIDsLocked(uuid.Nil)
	g.mu.Unlock()
	for _, id := range ids {
		g.dir.Send(id, msg)
	}
}

// quorumLocked reports whether all four (team, role) seats are filled and
// every player sitting in one of them is ready.
func (g *Game) quorumLocked() bool {
	seats := make(map[seat]struct{}, 4)
	for _, p := range g.players {
		if p.team == protocol.TeamNone || p.role == protocol.RoleSpectator {
			continue
		}
		if !p.ready {
			return false
		}
		seats[seat{team: p.team, role: p.role}] = struct{}{}
	}
	return len(seats) == 4
}

func (g *Game) hasSpymasterLocked(team protocol.Team, except uuid.UUID) bool {
	for id, p := range g.players {
		if id != except && p.team == team && p.role == protocol.RoleSpymaster {
			return true
		}
	}
	return false
}

// playerIDsLocked returns the roster ids, sorted, without except.
func (g *Game) playerIDsLocked(except uuid.UUID) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(g.players))
	for id := range g.players {
		if id != except {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}
