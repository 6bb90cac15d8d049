package server

import (
	"strings"
	"sync"
	"testing"

	"github.com/codewords/codewords/internal/config"
	"github.com/codewords/codewords/internal/protocol"
	"github.com/codewords/codewords/internal/universe"

	"github.com/google/uuid"
)

type dispatchPlayer struct {
	id   uuid.UUID
	sink *recordingSink
}

func newDispatchServer() (*Server, *universe.Universe) {
	u := universe.New(universe.WithBoardFactory(seededBoard))
	return New(u, config.Default()), u
}

func connect(s *Server) dispatchPlayer {
	sink := &recordingSink{}
	return dispatchPlayer{id: s.universe.AddSession(sink), sink: sink}
}

func login(t *testing.T, s *Server, nickname string) dispatchPlayer {
	t.Helper()
	p := connect(s)
	if err := s.dispatch(p.id, protocol.AuthenticateCommand{Nickname: nickname}); err != nil {
		t.Fatalf("authenticate %s: %v", nickname, err)
	}
	return p
}

func expectKind(t *testing.T, err error, kind protocol.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := protocol.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func hostGame(t *testing.T, s *Server, host dispatchPlayer) protocol.GameInfo {
	t.Helper()
	if err := s.dispatch(host.id, protocol.NewGameCommand{}); err != nil {
		t.Fatalf("new game: %v", err)
	}
	joined := messagesOfType[protocol.GameJoinedMessage](host.sink)
	if len(joined) == 0 {
		t.Fatalf("expected game_joined for host")
	}
	return joined[len(joined)-1].GameInfo
}

func TestDispatchRequiresAuthentication(t *testing.T) {
	s, _ := newDispatchServer()
	p := connect(s)

	commands := []protocol.Command{
		protocol.NewGameCommand{},
		protocol.JoinGameCommand{JoinCode: "BCDFGH"},
		protocol.MarkReadyCommand{},
		protocol.SendTextCommand{Text: "hi"},
		protocol.RequestGameStateSnapshotCommand{},
	}
	for _, cmd := range commands {
		expectKind(t, s.dispatch(p.id, cmd), protocol.ErrNotAuthenticated)
	}
	if len(p.sink.msgs) != 0 {
		t.Fatalf("expected no messages before authentication, got %d", len(p.sink.msgs))
	}
}

func TestAuthenticate(t *testing.T) {
	s, u := newDispatchServer()
	p := connect(s)

	if err := s.dispatch(p.id, protocol.AuthenticateCommand{Nickname: "  alice  "}); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	msg, ok := p.sink.Last().(protocol.AuthenticatedMessage)
	if !ok {
		t.Fatalf("expected authenticated message, got %T", p.sink.Last())
	}
	if msg.ID != p.id || msg.Nickname != "alice" {
		t.Fatalf("expected %s/alice, got %s/%s", p.id, msg.ID, msg.Nickname)
	}
	if !u.IsAuthenticated(p.id) {
		t.Fatalf("expected session to be authenticated")
	}

	expectKind(t, s.dispatch(p.id, protocol.AuthenticateCommand{Nickname: "again"}), protocol.ErrAlreadyAuthenticated)
	if info, _ := u.PlayerInfo(p.id); info.Nickname != "alice" {
		t.Fatalf("expected nickname to stay alice, got %s", info.Nickname)
	}
}

func TestAuthenticateNicknameLength(t *testing.T) {
	decomposed := strings.Repeat("e\u0301", 16)

	cases := []struct {
		name     string
		nickname string
		ok       bool
	}{
		{name: "empty", nickname: "", ok: false},
		{name: "whitespace", nickname: "   ", ok: false},
		{name: "sixteen", nickname: strings.Repeat("a", 16), ok: true},
		{name: "seventeen", nickname: strings.Repeat("a", 17), ok: false},
		{name: "combining marks compose", nickname: decomposed, ok: true},
		{name: "composed too long", nickname: decomposed + "e\u0301", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, u := newDispatchServer()
			p := connect(s)
			err := s.dispatch(p.id, protocol.AuthenticateCommand{Nickname: tc.nickname})
			if !tc.ok {
				expectKind(t, err, protocol.ErrBadInput)
				if perr := protocol.AsError(err); perr.Message != "nickname must be between 1 and 16 characters" {
					t.Fatalf("expected nickname length message, got %q", perr.Message)
				}
				if u.IsAuthenticated(p.id) {
					t.Fatalf("expected session to stay unauthenticated")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected nickname to be accepted, got %v", err)
			}
		})
	}
}

func TestNewGameJoinsCreator(t *testing.T) {
	s, u := newDispatchServer()
	alice := login(t, s, "alice")

	info := hostGame(t, s, alice)
	game, ok := u.GetPlayerMatch(alice.id)
	if !ok || game.ID() != info.GameID {
		t.Fatalf("expected alice in game %s", info.GameID)
	}
	snaps := messagesOfType[protocol.GameStateSnapshotMessage](alice.sink)
	if len(snaps) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snaps))
	}
	if snaps[0].Turn != protocol.TurnPregame || len(snaps[0].Tiles) != 25 {
		t.Fatalf("expected pregame snapshot with 25 tiles, got %s/%d", snaps[0].Turn, len(snaps[0].Tiles))
	}

	second := hostGame(t, s, alice)
	if second.GameID == info.GameID {
		t.Fatalf("expected a fresh game")
	}
	if _, ok := u.Game(info.GameID); ok {
		t.Fatalf("expected abandoned game to be removed")
	}
}

func TestJoinGame(t *testing.T) {
	s, u := newDispatchServer()
	alice := login(t, s, "alice")
	bob := login(t, s, "bob")
	info := hostGame(t, s, alice)
	alice.sink.Reset()

	lower := strings.ToLower(universe.FormatJoinCode(info.JoinCode))
	if err := s.dispatch(bob.id, protocol.JoinGameCommand{JoinCode: lower}); err != nil {
		t.Fatalf("join: %v", err)
	}
	joined := messagesOfType[protocol.GameJoinedMessage](bob.sink)
	if len(joined) != 1 || joined[0].GameID != info.GameID {
		t.Fatalf("expected bob to join %s, got %+v", info.GameID, joined)
	}
	connected := messagesOfType[protocol.PlayerConnectedMessage](alice.sink)
	if len(connected) != 1 || connected[0].Player.Nickname != "bob" {
		t.Fatalf("expected alice to see bob connect, got %+v", connected)
	}
	if game, _ := u.GetPlayerMatch(bob.id); game.PlayerCount() != 2 {
		t.Fatalf("expected two players, got %d", game.PlayerCount())
	}
}

func TestJoinGameUnknownCode(t *testing.T) {
	s, u := newDispatchServer()
	alice := login(t, s, "alice")
	info := hostGame(t, s, alice)

	code := "BCDFGH"
	if code == info.JoinCode {
		code = "ZZZZZZ"
	}
	expectKind(t, s.dispatch(alice.id, protocol.JoinGameCommand{JoinCode: code}), protocol.ErrNotFound)
	if game, ok := u.GetPlayerMatch(alice.id); !ok || game.ID() != info.GameID {
		t.Fatalf("expected alice to stay in their game after a bad code")
	}
	expectKind(t, s.dispatch(alice.id, protocol.JoinGameCommand{}), protocol.ErrBadInput)
}

func TestJoinGameSwitchesGames(t *testing.T) {
	s, u := newDispatchServer()
	alice := login(t, s, "alice")
	bob := login(t, s, "bob")
	first := hostGame(t, s, alice)
	second := hostGame(t, s, bob)

	if err := s.dispatch(alice.id, protocol.JoinGameCommand{JoinCode: second.JoinCode}); err != nil {
		t.Fatalf("switch: %v", err)
	}
	game, ok := u.GetPlayerMatch(alice.id)
	if !ok || game.ID() != second.GameID {
		t.Fatalf("expected alice in %s", second.GameID)
	}
	if _, ok := u.Game(first.GameID); ok {
		t.Fatalf("expected alice's empty game to be removed")
	}

	alice.sink.Reset()
	if err := s.dispatch(alice.id, protocol.JoinGameCommand{JoinCode: second.JoinCode}); err != nil {
		t.Fatalf("rejoin same game: %v", err)
	}
	if game.PlayerCount() != 2 {
		t.Fatalf("expected two players, got %d", game.PlayerCount())
	}
	if len(messagesOfType[protocol.GameJoinedMessage](alice.sink)) != 1 {
		t.Fatalf("expected game_joined to be resent")
	}
	if len(messagesOfType[protocol.GameStateSnapshotMessage](alice.sink)) != 1 {
		t.Fatalf("expected a snapshot to be resent")
	}
}

func TestLeaveGame(t *testing.T) {
	s, u := newDispatchServer()
	alice := login(t, s, "alice")
	bob := login(t, s, "bob")
	info := hostGame(t, s, alice)
	if err := s.dispatch(bob.id, protocol.JoinGameCommand{JoinCode: info.JoinCode}); err != nil {
		t.Fatalf("join: %v", err)
	}
	alice.sink.Reset()

	if err := s.dispatch(bob.id, protocol.LeaveGameCommand{}); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, ok := bob.sink.Last().(protocol.GameLeftMessage); !ok {
		t.Fatalf("expected game_left, got %T", bob.sink.Last())
	}
	gone := messagesOfType[protocol.PlayerDisconnectedMessage](alice.sink)
	if len(gone) != 1 || gone[0].PlayerID != bob.id {
		t.Fatalf("expected alice to see bob leave, got %+v", gone)
	}

	if err := s.dispatch(bob.id, protocol.LeaveGameCommand{}); err != nil {
		t.Fatalf("leave outside a game: %v", err)
	}
	if _, ok := bob.sink.Last().(protocol.GameLeftMessage); !ok {
		t.Fatalf("expected game_left outside a game, got %T", bob.sink.Last())
	}
	if _, ok := u.Game(info.GameID); !ok {
		t.Fatalf("expected game to survive while alice is in it")
	}
}

func TestCommandsOutsideGame(t *testing.T) {
	s, _ := newDispatchServer()
	alice := login(t, s, "alice")

	commands := []protocol.Command{
		protocol.MarkReadyCommand{},
		protocol.SendTextCommand{Text: "hello"},
		protocol.SetPlayerTeamCommand{Team: protocol.TeamRed},
		protocol.SetPlayerRoleCommand{Role: protocol.RoleOperative},
		protocol.RequestGameStateSnapshotCommand{},
	}
	for _, cmd := range commands {
		expectKind(t, s.dispatch(alice.id, cmd), protocol.ErrBadState)
	}
}

func TestSendTextBroadcasts(t *testing.T) {
	s, _ := newDispatchServer()
	alice := login(t, s, "alice")
	bob := login(t, s, "bob")
	info := hostGame(t, s, alice)
	if err := s.dispatch(bob.id, protocol.JoinGameCommand{JoinCode: info.JoinCode}); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := s.dispatch(bob.id, protocol.SendTextCommand{Text: "hi all"}); err != nil {
		t.Fatalf("send text: %v", err)
	}
	for _, p := range []dispatchPlayer{alice, bob} {
		chat, ok := p.sink.Last().(protocol.ChatMessage)
		if !ok {
			t.Fatalf("expected chat, got %T", p.sink.Last())
		}
		if chat.PlayerID != bob.id || chat.Text != "hi all" {
			t.Fatalf("expected bob's chat, got %+v", chat)
		}
	}
}

func TestSetTeamAndRoleValidation(t *testing.T) {
	s, u := newDispatchServer()
	alice := login(t, s, "alice")
	hostGame(t, s, alice)

	expectKind(t, s.dispatch(alice.id, protocol.SetPlayerTeamCommand{Team: "green"}), protocol.ErrBadInput)
	expectKind(t, s.dispatch(alice.id, protocol.SetPlayerRoleCommand{Role: "captain"}), protocol.ErrBadInput)

	if err := s.dispatch(alice.id, protocol.SetPlayerTeamCommand{Team: protocol.TeamBlue}); err != nil {
		t.Fatalf("set team: %v", err)
	}
	game, _ := u.GetPlayerMatch(alice.id)
	snap, _ := game.Snapshot(alice.id)
	if snap.Players[0].Team != protocol.TeamBlue || snap.Players[0].Role != protocol.RoleSpymaster {
		t.Fatalf("expected blue spymaster, got %s/%s", snap.Players[0].Team, snap.Players[0].Role)
	}
	if err := s.dispatch(alice.id, protocol.SetPlayerRoleCommand{Role: protocol.RoleOperative}); err != nil {
		t.Fatalf("set role: %v", err)
	}
	snap, _ = game.Snapshot(alice.id)
	if snap.Players[0].Role != protocol.RoleOperative {
		t.Fatalf("expected operative, got %s", snap.Players[0].Role)
	}
	if err := s.dispatch(alice.id, protocol.SetPlayerTeamCommand{Team: protocol.TeamNone}); err != nil {
		t.Fatalf("clear team: %v", err)
	}
	snap, _ = game.Snapshot(alice.id)
	if snap.Players[0].Team != protocol.TeamNone || snap.Players[0].Role != protocol.RoleSpectator {
		t.Fatalf("expected teamless spectator, got %s/%s", snap.Players[0].Team, snap.Players[0].Role)
	}
}

// seatGame fills a new game with two players per team, nobody ready yet.
func seatGame(t *testing.T, s *Server, nicknames ...string) (*universe.Game, []dispatchPlayer) {
	t.Helper()
	if len(nicknames) == 0 {
		nicknames = []string{"alice", "bob", "carol", "dave"}
	}
	players := make([]dispatchPlayer, 0, len(nicknames))
	for _, nickname := range nicknames {
		players = append(players, login(t, s, nickname))
	}
	info := hostGame(t, s, players[0])
	for _, p := range players[1:] {
		if err := s.dispatch(p.id, protocol.JoinGameCommand{JoinCode: info.JoinCode}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	teams := []protocol.Team{protocol.TeamRed, protocol.TeamRed, protocol.TeamBlue, protocol.TeamBlue}
	for i, p := range players {
		if err := s.dispatch(p.id, protocol.SetPlayerTeamCommand{Team: teams[i]}); err != nil {
			t.Fatalf("set team: %v", err)
		}
	}
	game, _ := s.universe.Game(info.GameID)
	return game, players
}

func startGame(t *testing.T, s *Server) (*universe.Game, []dispatchPlayer) {
	t.Helper()
	game, players := seatGame(t, s)
	for _, p := range players {
		if err := s.dispatch(p.id, protocol.MarkReadyCommand{}); err != nil {
			t.Fatalf("mark ready: %v", err)
		}
	}
	return game, players
}

func TestStartedGameRejectsRosterChanges(t *testing.T) {
	s, u := newDispatchServer()
	game, players := startGame(t, s)

	want, _ := protocol.SpymasterThinking(seededBoard().StartingTeam())
	if game.Turn() != want {
		t.Fatalf("expected turn %s, got %s", want, game.Turn())
	}
	expectKind(t, s.dispatch(players[1].id, protocol.SetPlayerTeamCommand{Team: protocol.TeamBlue}), protocol.ErrBadState)
	expectKind(t, s.dispatch(players[1].id, protocol.SetPlayerRoleCommand{Role: protocol.RoleSpymaster}), protocol.ErrBadState)

	latecomer := login(t, s, "erin")
	expectKind(t, s.dispatch(latecomer.id, protocol.JoinGameCommand{JoinCode: game.JoinCode()}), protocol.ErrBadState)
	if len(u.JoinableGames()) != 0 {
		t.Fatalf("expected no joinable games once started")
	}
}

func TestRequestSnapshot(t *testing.T) {
	s, _ := newDispatchServer()
	game, players := startGame(t, s)
	for _, p := range players {
		p.sink.Reset()
	}

	if err := s.dispatch(players[1].id, protocol.RequestGameStateSnapshotCommand{}); err != nil {
		t.Fatalf("request snapshot: %v", err)
	}
	if len(players[0].sink.msgs) != 0 {
		t.Fatalf("expected only the requester to get a snapshot")
	}
	snap, ok := players[1].sink.Last().(protocol.GameStateSnapshotMessage)
	if !ok {
		t.Fatalf("expected snapshot, got %T", players[1].sink.Last())
	}
	if snap.Turn != game.Turn() {
		t.Fatalf("expected turn %s, got %s", game.Turn(), snap.Turn)
	}
	for _, tile := range snap.Tiles {
		if tile.Character != protocol.CharacterUnknown {
			t.Fatalf("expected operative view to hide %s", tile.Codeword)
		}
	}
}

func TestJoinStartedGameKeepsCurrentGame(t *testing.T) {
	s, u := newDispatchServer()
	started, _ := startGame(t, s)
	erin := login(t, s, "erin")
	frank := login(t, s, "frank")
	lobby := hostGame(t, s, erin)
	if err := s.dispatch(frank.id, protocol.JoinGameCommand{JoinCode: lobby.JoinCode}); err != nil {
		t.Fatalf("join lobby: %v", err)
	}
	erin.sink.Reset()
	frank.sink.Reset()

	expectKind(t, s.dispatch(erin.id, protocol.JoinGameCommand{JoinCode: started.JoinCode()}), protocol.ErrBadState)
	game, ok := u.GetPlayerMatch(erin.id)
	if !ok || game.ID() != lobby.GameID {
		t.Fatalf("expected erin to stay in the lobby")
	}
	if game.PlayerCount() != 2 {
		t.Fatalf("expected lobby to keep both players, got %d", game.PlayerCount())
	}
	if len(messagesOfType[protocol.GameLeftMessage](erin.sink)) != 0 {
		t.Fatalf("expected no game_left for a refused join")
	}
	if len(messagesOfType[protocol.PlayerDisconnectedMessage](frank.sink)) != 0 {
		t.Fatalf("expected frank to see nobody leave")
	}
}

// hookSink runs fn once, on the first message of type T it receives.
type hookSink[T protocol.Message] struct {
	recordingSink
	once sync.Once
	fn   func()
}

func (h *hookSink[T]) Send(msg protocol.Message) {
	h.recordingSink.Send(msg)
	if _, ok := msg.(T); ok {
		h.once.Do(h.fn)
	}
}

func TestJoinSwitchIsAllOrNothing(t *testing.T) {
	s, u := newDispatchServer()
	target, seated := seatGame(t, s)
	for _, p := range seated[:3] {
		if err := s.dispatch(p.id, protocol.MarkReadyCommand{}); err != nil {
			t.Fatalf("mark ready: %v", err)
		}
	}

	erin := login(t, s, "erin")
	lobby := hostGame(t, s, erin)
	watcher := &hookSink[protocol.PlayerDisconnectedMessage]{fn: func() {
		target.MarkReady(seated[3].id)
	}}
	watcherID := s.universe.AddSession(watcher)
	if err := s.dispatch(watcherID, protocol.AuthenticateCommand{Nickname: "frank"}); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := s.dispatch(watcherID, protocol.JoinGameCommand{JoinCode: lobby.JoinCode}); err != nil {
		t.Fatalf("join lobby: %v", err)
	}

	err := s.dispatch(erin.id, protocol.JoinGameCommand{JoinCode: target.JoinCode()})
	game, inGame := u.GetPlayerMatch(erin.id)
	left := len(messagesOfType[protocol.GameLeftMessage](erin.sink))
	switch {
	case err == nil:
		if !inGame || game != target || !target.HasPlayer(erin.id) {
			t.Fatalf("expected a successful join to land erin in the target game")
		}
	default:
		if !inGame || game.ID() != lobby.GameID {
			t.Fatalf("expected a failed join to keep erin in the lobby, got err=%v", err)
		}
	}
	if left != 0 {
		t.Fatalf("expected no game_left while switching, got %d", left)
	}
	if target.IsJoinable() {
		t.Fatalf("expected the target game to start once its last player was ready")
	}
}
