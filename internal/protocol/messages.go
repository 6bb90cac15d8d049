package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// Message is an event delivered to a client. Messages are tagged by their
// "type" field on the wire.
type Message interface {
	MessageType() string
}

type ChatMessage struct {
	PlayerID uuid.UUID `json:"player_id"`
	Text     string    `json:"text"`
}

type PlayerConnectedMessage struct {
	GamePlayerState
}

type PlayerDisconnectedMessage struct {
	PlayerID uuid.UUID `json:"player_id"`
}

type GameJoinedMessage struct {
	GameInfo
}

type GameLeftMessage struct{}

type AuthenticatedMessage struct {
	PlayerInfo
}

type GameStateSnapshotMessage struct {
	GameStateSnapshot
}

func (ChatMessage) MessageType() string               { return "chat" }
func (PlayerConnectedMessage) MessageType() string    { return "player_connected" }
func (PlayerDisconnectedMessage) MessageType() string { return "player_disconnected" }
func (GameJoinedMessage) MessageType() string         { return "game_joined" }
func (GameLeftMessage) MessageType() string           { return "game_left" }
func (AuthenticatedMessage) MessageType() string      { return "authenticated" }
func (GameStateSnapshotMessage) MessageType() string  { return "game_state_snapshot" }

// EncodeMessage renders msg as a JSON object carrying its type tag.
func EncodeMessage(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(data, "type", msg.MessageType())
}
