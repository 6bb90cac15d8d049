// Package protocol defines the values exchanged between the game server and
// its clients: commands flowing in, events flowing out, and the shared game
// vocabulary both sides speak.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Team is a player's side. The zero value means the player has no team and
// is encoded as JSON null.
type Team string

const (
	TeamNone Team = ""
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

func (t Team) MarshalJSON() ([]byte, error) {
	if t == TeamNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *Team) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = TeamNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Team(raw)
	return nil
}

// Valid reports whether t is one of the playable teams.
func (t Team) Valid() bool {
	return t == TeamRed || t == TeamBlue
}

type PlayerRole string

const (
	RoleSpymaster PlayerRole = "spymaster"
	RoleOperative PlayerRole = "operative"
	RoleSpectator PlayerRole = "spectator"
)

// Character is the hidden identity behind a codeword. CharacterUnknown is
// never stored on a board; it only shows up in redacted views.
type Character string

const (
	CharacterUnknown   Character = "unknown"
	CharacterRedAgent  Character = "red_agent"
	CharacterBlueAgent Character = "blue_agent"
	CharacterBystander Character = "bystander"
	CharacterAssassin  Character = "assassin"
)

type Turn string

const (
	TurnPregame                Turn = "pregame"
	TurnIntermission           Turn = "intermission"
	TurnRedSpymasterThinking   Turn = "red_spymaster_thinking"
	TurnRedOperativesGuessing  Turn = "red_operatives_guessing"
	TurnBlueSpymasterThinking  Turn = "blue_spymaster_thinking"
	TurnBlueOperativesGuessing Turn = "blue_operatives_guessing"
	TurnEndgame                Turn = "endgame"
)

// SpymasterThinking returns the turn in which team's spymaster gives a clue.
func SpymasterThinking(team Team) (Turn, error) {
	switch team {
	case TeamRed:
		return TurnRedSpymasterThinking, nil
	case TeamBlue:
		return TurnBlueSpymasterThinking, nil
	default:
		return "", fmt.Errorf("no spymaster turn for team %q", team)
	}
}

type PlayerInfo struct {
	ID       uuid.UUID `json:"id"`
	Nickname string    `json:"nickname"`
}

// GamePlayerState is a roster entry as shown to clients.
type GamePlayerState struct {
	Player PlayerInfo `json:"player"`
	Team   Team       `json:"team"`
	Role   PlayerRole `json:"role"`
	Ready  bool       `json:"ready"`
}

type GameInfo struct {
	GameID   uuid.UUID `json:"game_id"`
	JoinCode string    `json:"join_code"`
}

type Tile struct {
	Codeword  string    `json:"codeword"`
	Character Character `json:"character"`
	Spotted   bool      `json:"spotted"`
}

type GameStateSnapshot struct {
	Players []GamePlayerState `json:"players"`
	Tiles   []Tile            `json:"tiles"`
	Turn    Turn              `json:"turn"`
}
