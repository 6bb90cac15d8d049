package protocol

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Command is a request sent by a client. Commands are tagged by their "cmd"
// field on the wire, e.g. {"cmd":"join_game","join_code":"BCDFGH"}.
type Command interface {
	CommandName() string
}

const (
	CmdAuthenticate             = "authenticate"
	CmdSendText                 = "send_text"
	CmdNewGame                  = "new_game"
	CmdJoinGame                 = "join_game"
	CmdLeaveGame                = "leave_game"
	CmdMarkReady                = "mark_ready"
	CmdSetPlayerRole            = "set_player_role"
	CmdSetPlayerTeam            = "set_player_team"
	CmdRequestGameStateSnapshot = "request_game_state_snapshot"
)

type AuthenticateCommand struct {
	Nickname string `json:"nickname" validate:"required,max=16"`
}

type SendTextCommand struct {
	Text string `json:"text"`
}

type NewGameCommand struct{}

type JoinGameCommand struct {
	JoinCode string `json:"join_code" validate:"required,max=32"`
}

type LeaveGameCommand struct{}

type MarkReadyCommand struct{}

type SetPlayerRoleCommand struct {
	Role PlayerRole `json:"role" validate:"required,oneof=spymaster operative spectator"`
}

type SetPlayerTeamCommand struct {
	Team Team `json:"team" validate:"omitempty,oneof=red blue"`
}

type RequestGameStateSnapshotCommand struct{}

func (AuthenticateCommand) CommandName() string             { return CmdAuthenticate }
func (SendTextCommand) CommandName() string                 { return CmdSendText }
func (NewGameCommand) CommandName() string                  { return CmdNewGame }
func (JoinGameCommand) CommandName() string                 { return CmdJoinGame }
func (LeaveGameCommand) CommandName() string                { return CmdLeaveGame }
func (MarkReadyCommand) CommandName() string                { return CmdMarkReady }
func (SetPlayerRoleCommand) CommandName() string            { return CmdSetPlayerRole }
func (SetPlayerTeamCommand) CommandName() string            { return CmdSetPlayerTeam }
func (RequestGameStateSnapshotCommand) CommandName() string { return CmdRequestGameStateSnapshot }

// DecodeCommand parses a single inbound frame. Malformed frames and unknown
// command names fail with ErrInvalidCommand.
func DecodeCommand(data []byte) (Command, error) {
	if !gjson.ValidBytes(data) {
		return nil, NewError(ErrInvalidCommand, "command is not valid json")
	}
	tag := gjson.GetBytes(data, "cmd")
	if tag.Type != gjson.String {
		return nil, NewError(ErrInvalidCommand, "command is missing a cmd tag")
	}

	switch tag.String() {
	case CmdAuthenticate:
		return decodeAs[AuthenticateCommand](data)
	case CmdSendText:
		return decodeAs[SendTextCommand](data)
	case CmdNewGame:
		return NewGameCommand{}, nil
	case CmdJoinGame:
		return decodeAs[JoinGameCommand](data)
	case CmdLeaveGame:
		return LeaveGameCommand{}, nil
	case CmdMarkReady:
		return MarkReadyCommand{}, nil
	case CmdSetPlayerRole:
		return decodeAs[SetPlayerRoleCommand](data)
	case CmdSetPlayerTeam:
		return decodeAs[SetPlayerTeamCommand](data)
	case CmdRequestGameStateSnapshot:
		return RequestGameStateSnapshotCommand{}, nil
	default:
		return nil, Errorf(ErrInvalidCommand, "unknown command %q", tag.String())
	}
}

func decodeAs[T Command](data []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, NewError(ErrInvalidCommand, err.Error())
	}
	return cmd, nil
}
