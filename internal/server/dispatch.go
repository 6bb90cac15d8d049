package server

import (
	"github.com/codewords/codewords/internal/protocol"
	"github.com/codewords/codewords/internal/universe"

	"github.com/google/uuid"
)

// dispatch runs one decoded command for a session. Only authenticate is
// accepted before the session has a nickname.
func (s *Server) dispatch(playerID uuid.UUID, cmd protocol.Command) error {
	if !s.universe.IsAuthenticated(playerID) {
		auth, ok := cmd.(protocol.AuthenticateCommand)
		if !ok {
			return protocol.NewError(protocol.ErrNotAuthenticated, "cannot perform this command unauthenticated")
		}
		return s.onAuthenticate(playerID, auth)
	}

	switch cmd := cmd.(type) {
	case protocol.AuthenticateCommand:
		return protocol.NewError(protocol.ErrAlreadyAuthenticated, "cannot authenticate twice")
	case protocol.NewGameCommand:
		return s.onNewGame(playerID)
	case protocol.JoinGameCommand:
		return s.onJoinGame(playerID, cmd)
	case protocol.LeaveGameCommand:
		return s.onLeaveGame(playerID)
	case protocol.MarkReadyCommand:
		return s.onMarkReady(playerID)
	case protocol.SendTextCommand:
		return s.onSendText(playerID, cmd)
	case protocol.SetPlayerRoleCommand:
		return s.onSetPlayerRole(playerID, cmd)
	case protocol.SetPlayerTeamCommand:
		return s.onSetPlayerTeam(playerID, cmd)
	case protocol.RequestGameStateSnapshotCommand:
		return s.onRequestSnapshot(playerID)
	default:
		return protocol.Errorf(protocol.ErrInvalidCommand, "unsupported command %q", cmd.CommandName())
	}
}

func (s *Server) onAuthenticate(playerID uuid.UUID, cmd protocol.AuthenticateCommand) error {
	nickname, err := validateNickname(cmd.Nickname)
	if err != nil {
		return err
	}
	info, err := s.universe.Authenticate(playerID, nickname)
	if err != nil {
		return err
	}
	s.logger.Info().Stringer("player_id", playerID).Str("nickname", info.Nickname).Msg("player authenticated")
	s.universe.Send(playerID, protocol.AuthenticatedMessage{PlayerInfo: info})
	return nil
}

func (s *Server) onNewGame(playerID uuid.UUID) error {
	game, _ := s.universe.NewMatch()
	if err := s.universe.MovePlayer(playerID, game); err != nil {
		s.universe.RemoveMatch(game.ID())
		return err
	}
	s.universe.Send(playerID, protocol.GameJoinedMessage{GameInfo: game.Info()})
	game.BroadcastSnapshot()
	return nil
}

func (s *Server) onJoinGame(playerID uuid.UUID, cmd protocol.JoinGameCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	if current, ok := s.universe.GetPlayerMatch(playerID); ok {
		if target, found := s.universe.GameByJoinCode(cmd.JoinCode); found && target == current {
			s.universe.Send(playerID, protocol.GameJoinedMessage{GameInfo: current.Info()})
			current.SendSnapshot(playerID)
			return nil
		}
	}
	game, err := s.universe.JoinMatch(playerID, cmd.JoinCode)
	if err != nil {
		return err
	}
	s.universe.Send(playerID, protocol.GameJoinedMessage{GameInfo: game.Info()})
	game.BroadcastSnapshot()
	return nil
}

func (s *Server) onLeaveGame(playerID uuid.UUID) error {
	s.universe.RemovePlayerFromMatch(playerID)
	s.universe.Send(playerID, protocol.GameLeftMessage{})
	return nil
}

func (s *Server) onMarkReady(playerID uuid.UUID) error {
	game, err := s.currentGame(playerID)
	if err != nil {
		return err
	}
	game.MarkReady(playerID)
	return nil
}

func (s *Server) onSendText(playerID uuid.UUID, cmd protocol.SendTextCommand) error {
	game, err := s.currentGame(playerID)
	if err != nil {
		return err
	}
	game.Broadcast(protocol.ChatMessage{PlayerID: playerID, Text: cmd.Text})
	return nil
}

func (s *Server) onSetPlayerRole(playerID uuid.UUID, cmd protocol.SetPlayerRoleCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	game, err := s.currentGame(playerID)
	if err != nil {
		return err
	}
	if !game.IsJoinable() {
		return protocol.NewError(protocol.ErrBadState, "cannot set role because game is not joinable")
	}
	return game.SetPlayerRole(playerID, cmd.Role)
}

func (s *Server) onSetPlayerTeam(playerID uuid.UUID, cmd protocol.SetPlayerTeamCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	game, err := s.currentGame(playerID)
	if err != nil {
		return err
	}
	if !game.IsJoinable() {
		return protocol.NewError(protocol.ErrBadState, "cannot set team because game is not joinable")
	}
	return game.SetPlayerTeam(playerID, cmd.Team)
}

func (s *Server) onRequestSnapshot(playerID uuid.UUID) error {
	game, err := s.currentGame(playerID)
	if err != nil {
		return err
	}
	if !game.SendSnapshot(playerID) {
		return protocol.NewError(protocol.ErrBadState, "not in a game")
	}
	return nil
}

func (s *Server) currentGame(playerID uuid.UUID) (*universe.Game, error) {
	game, ok := s.universe.GetPlayerMatch(playerID)
	if !ok {
		return nil, protocol.NewError(protocol.ErrBadState, "not in a game")
	}
	return game, nil
}
