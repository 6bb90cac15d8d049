// Package universe tracks connected players and the games they play.
//
// The Universe is the process-wide directory: it owns every session and
// every game and hands out join codes. Each Game guards its own roster and
// turn with its own lock. Neither lock is ever held while the other is taken
// or while a message is handed to a session's sink.
package universe

import (
	"sort"
	"sync"

	"github.com/codewords/codewords/internal/board"
	"github.com/codewords/codewords/internal/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const anonymousNickname = "anonymous"

// Sink delivers messages to one connected session. Send must not block; a
// sink that cannot take the message drops it.
type Sink interface {
	Send(msg protocol.Message)
}

type session struct {
	info          protocol.PlayerInfo
	authenticated bool
	gameID        uuid.UUID
	sink          Sink
}

type GameSummary struct {
	GameID   uuid.UUID
	JoinCode string
	Players  int
}

type Universe struct {
	playersMu sync.RWMutex
	players   map[uuid.UUID]*session

	gamesMu  sync.RWMutex
	games    map[uuid.UUID]*Game
	joinable map[string]uuid.UUID

	newBoard    func() *board.Board
	newJoinCode func() string
	observer    Observer
	logger      zerolog.Logger
}

type Option func(*Universe)

func WithLogger(logger zerolog.Logger) Option {
	return func(u *Universe) {
		u.logger = logger.With().Str("component", "universe").Logger()
	}
}

// WithBoardFactory replaces the board generator used for new games.
func WithBoardFactory(factory func() *board.Board) Option {
	return func(u *Universe) {
		u.newBoard = factory
	}
}

// WithJoinCodeGenerator replaces the random join code source.
func WithJoinCodeGenerator(generate func() string) Option {
	return func(u *Universe) {
		u.newJoinCode = generate
	}
}

func New(opts ...Option) *Universe {
	u := &Universe{
		players:     make(map[uuid.UUID]*session),
		games:       make(map[uuid.UUID]*Game),
		joinable:    make(map[string]uuid.UUID),
		newBoard:    board.New,
		newJoinCode: generateJoinCode,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// AddSession registers a new unauthenticated session and returns its id.
func (u *Universe) AddSession(sink Sink) uuid.UUID {
	id := uuid.New()
	u.playersMu.Lock()
	u.players[id] = &session{
		info: protocol.PlayerInfo{ID: id, Nickname: anonymousNickname},
		sink: sink,
	}
	u.playersMu.Unlock()
	u.logger.Debug().Stringer("player_id", id).Msg("session added")
	return id
}

// Authenticate sets the nickname of a session. The nickname must already be
// validated by the caller.
func (u *Universe) Authenticate(playerID uuid.UUID, nickname string) (protocol.PlayerInfo, error) {
	u.playersMu.Lock()
	defer u.playersMu.Unlock()
	s, ok := u.players[playerID]
	if !ok {
		return protocol.PlayerInfo{}, protocol.NewError(protocol.ErrInternal, "couldn't find user in state")
	}
	if s.authenticated {
		return protocol.PlayerInfo{}, protocol.NewError(protocol.ErrAlreadyAuthenticated, "cannot authenticate twice")
	}
	s.authenticated = true
	s.info.Nickname = nickname
	return s.info, nil
}

func (u *Universe) IsAuthenticated(playerID uuid.UUID) bool {
	u.playersMu.RLock()
	defer u.playersMu.RUnlock()
	s, ok := u.players[playerID]
	return ok && s.authenticated
}

func (u *Universe) PlayerInfo(playerID uuid.UUID) (protocol.PlayerInfo, bool) {
	u.playersMu.RLock()
	defer u.playersMu.RUnlock()
	s, ok := u.players[playerID]
	if !ok {
		return protocol.PlayerInfo{}, false
	}
	return s.info, true
}

// RemoveSession forgets a session. It does not touch game membership;
// callers remove the player from its game first.
func (u *Universe) RemoveSession(playerID uuid.UUID) {
	u.playersMu.Lock()
	delete(u.players, playerID)
	u.playersMu.Unlock()
	u.logger.Debug().Stringer("player_id", playerID).Msg("session removed")
}

// NewMatch creates an empty joinable game with a fresh join code.
func (u *Universe) NewMatch() (*Game, string) {
	b := u.newBoard()
	id := uuid.New()

	u.gamesMu.Lock()
	code := u.allocateJoinCodeLocked(id)
	game := newGame(id, code, b, u, u.logger)
	u.games[id] = game
	u.gamesMu.Unlock()

	u.logger.Info().Stringer("game_id", id).Str("join_code", code).Msg("game created")
	u.notify(Event{Kind: EventGameCreated, Game: game.Info()})
	return game, code
}

// allocateJoinCodeLocked picks a code that no joinable game holds. A code
// still mapped to a game that stopped being joinable is reclaimed.
func (u *Universe) allocateJoinCodeLocked(gameID uuid.UUID) string {
	for {
		code := u.newJoinCode()
		if owner, taken := u.joinable[code]; taken {
			if game, ok := u.games[owner]; ok && game.IsJoinable() {
				continue
			}
			delete(u.joinable, code)
			u.logger.Debug().Str("join_code", code).Stringer("previous_game_id", owner).Msg("reclaimed stale join code")
		}
		u.joinable[code] = gameID
		return code
	}
}

// JoinMatch moves a player into the game behind joinCode. See MovePlayer.
func (u *Universe) JoinMatch(playerID uuid.UUID, joinCode string) (*Game, error) {
	game, ok := u.lookupJoinCode(NormalizeJoinCode(joinCode))
	if !ok {
		return nil, protocol.NewError(protocol.ErrNotFound, "game does not exist")
	}
	if err := u.MovePlayer(playerID, game); err != nil {
		return nil, err
	}
	return game, nil
}

// MovePlayer adds the player to target and only then takes them out of the
// game they were in. If target refuses the player, they stay where they were.
// Moving a player into their own game does nothing.
func (u *Universe) MovePlayer(playerID uuid.UUID, target *Game) error {
	current, inGame := u.GetPlayerMatch(playerID)
	if inGame && current == target {
		return nil
	}
	from := uuid.Nil
	if inGame {
		from = current.ID()
	}
	if err := target.addPlayer(playerID, from); err != nil {
		return err
	}
	if inGame {
		current.RemovePlayer(playerID)
	}
	return nil
}

func (u *Universe) lookupJoinCode(code string) (*Game, bool) {
	u.gamesMu.RLock()
	defer u.gamesMu.RUnlock()
	id, ok := u.joinable[code]
	if !ok {
		return nil, false
	}
	game, ok := u.games[id]
	return game, ok
}

// GameByJoinCode returns the joinable game behind a code.
func (u *Universe) GameByJoinCode(joinCode string) (*Game, bool) {
	game, ok := u.lookupJoinCode(NormalizeJoinCode(joinCode))
	if !ok || !game.IsJoinable() {
		return nil, false
	}
	return game, true
}

func (u *Universe) Game(gameID uuid.UUID) (*Game, bool) {
	u.gamesMu.RLock()
	defer u.gamesMu.RUnlock()
	game, ok := u.games[gameID]
	return game, ok
}

// GetPlayerMatch returns the game the player is currently in.
func (u *Universe) GetPlayerMatch(playerID uuid.UUID) (*Game, bool) {
	u.playersMu.RLock()
	s, ok := u.players[playerID]
	var gameID uuid.UUID
	if ok {
		gameID = s.gameID
	}
	u.playersMu.RUnlock()
	if gameID == uuid.Nil {
		return nil, false
	}
	return u.Game(gameID)
}

// RemovePlayerFromMatch makes the player leave whatever game they are in.
func (u *Universe) RemovePlayerFromMatch(playerID uuid.UUID) {
	if game, ok := u.GetPlayerMatch(playerID); ok {
		game.RemovePlayer(playerID)
	}
}

// RemoveMatch forgets a game and releases its join code if the code still
// points at it.
func (u *Universe) RemoveMatch(gameID uuid.UUID) bool {
	u.gamesMu.Lock()
	game, ok := u.games[gameID]
	if ok {
		delete(u.games, gameID)
		if owner, mapped := u.joinable[game.JoinCode()]; mapped && owner == gameID {
			delete(u.joinable, game.JoinCode())
		}
	}
	u.gamesMu.Unlock()
	if ok {
		u.logger.Info().Stringer("game_id", gameID).Msg("game removed")
		u.notify(Event{Kind: EventGameRemoved, Game: game.Info()})
	}
	return ok
}

// JoinableGames lists games still in pregame, ordered by join code.
func (u *Universe) JoinableGames() []GameSummary {
	u.gamesMu.RLock()
	candidates := make([]*Game, 0, len(u.joinable))
	for _, id := range u.joinable {
		if game, ok := u.games[id]; ok {
			candidates = append(candidates, game)
		}
	}
	u.gamesMu.RUnlock()

	list := make([]GameSummary, 0, len(candidates))
	for _, game := range candidates {
		if !game.IsJoinable() {
			continue
		}
		list = append(list, GameSummary{
			GameID:   game.ID(),
			JoinCode: game.JoinCode(),
			Players:  game.PlayerCount(),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].JoinCode < list[j].JoinCode
	})
	return list
}

// Stats reports how many sessions and games are live.
func (u *Universe) Stats() (players, games int) {
	u.playersMu.RLock()
	players = len(u.players)
	u.playersMu.RUnlock()
	u.gamesMu.RLock()
	games = len(u.games)
	u.gamesMu.RUnlock()
	return players, games
}

// Send hands msg to the player's sink. Unknown players are ignored; they
// have disconnected and nobody is left to tell.
func (u *Universe) Send(playerID uuid.UUID, msg protocol.Message) {
	u.playersMu.RLock()
	s, ok := u.players[playerID]
	var sink Sink
	if ok {
		sink = s.sink
	}
	u.playersMu.RUnlock()
	if sink != nil {
		sink.Send(msg)
	}
}

// bindPlayerGame points the session at gameID. A session already bound to a
// game other than from is refused.
func (u *Universe) bindPlayerGame(playerID, gameID, from uuid.UUID) error {
	u.playersMu.Lock()
	defer u.playersMu.Unlock()
	s, ok := u.players[playerID]
	if !ok {
		return protocol.NewError(protocol.ErrInternal, "couldn't find user in state")
	}
	if s.gameID != uuid.Nil && s.gameID != gameID && s.gameID != from {
		return protocol.NewError(protocol.ErrBadState, "already in another game")
	}
	s.gameID = gameID
	return nil
}

// unbindPlayerGame points a session bound to gameID at restore instead.
func (u *Universe) unbindPlayerGame(playerID, gameID, restore uuid.UUID) {
	u.playersMu.Lock()
	defer u.playersMu.Unlock()
	if s, ok := u.players[playerID]; ok && s.gameID == gameID {
		s.gameID = restore
	}
}

func (u *Universe) playerInfos(ids []uuid.UUID) map[uuid.UUID]protocol.PlayerInfo {
	u.playersMu.RLock()
	defer u.playersMu.RUnlock()
	infos := make(map[uuid.UUID]protocol.PlayerInfo, len(ids))
	for _, id := range ids {
		if s, ok := u.players[id]; ok {
			infos[id] = s.info
		} else {
			infos[id] = protocol.PlayerInfo{ID: id, Nickname: anonymousNickname}
		}
	}
	return infos
}
