package universe

import (
	"bytes"
	"sort"

	"github.com/codewords/codewords/internal/protocol"

	"github.com/google/uuid"
)

type snapshotView struct {
	playerID uuid.UUID
	tiles    []protocol.Tile
}

// BroadcastSnapshot sends every player their own view of the game.
func (g *Game) BroadcastSnapshot() {
	players, views, turn := g.collectSnapshot(uuid.Nil)
	g.deliverSnapshot(players, views, turn)
}

// SendSnapshot sends one player their view of the game. It reports false
// when the player is not in the game.
func (g *Game) SendSnapshot(playerID uuid.UUID) bool {
	players, views, turn := g.collectSnapshot(playerID)
	if len(views) == 0 {
		return false
	}
	g.deliverSnapshot(players, views, turn)
	return true
}

// Snapshot returns the view of the game as seen by viewer.
func (g *Game) Snapshot(viewer uuid.UUID) (protocol.GameStateSnapshot, bool) {
	players, views, turn := g.collectSnapshot(viewer)
	if len(views) == 0 {
		return protocol.GameStateSnapshot{}, false
	}
	g.fillNicknames(players)
	return protocol.GameStateSnapshot{Players: players, Tiles: views[0].tiles, Turn: turn}, true
}

// collectSnapshot copies the roster and projects the board for each viewer
// in one locked section, so every viewer sees the same state. With only set
// to uuid.Nil every player is a viewer.
func (g *Game) collectSnapshot(only uuid.UUID) ([]protocol.GamePlayerState, []snapshotView, protocol.Turn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := g.playerIDsLocked(uuid.Nil)
	started := g.turn != protocol.TurnPregame
	players := make([]protocol.GamePlayerState, 0, len(ids))
	views := make([]snapshotView, 0, len(ids))
	for _, id := range ids {
		p := g.players[id]
		players = append(players, protocol.GamePlayerState{
			Player: protocol.PlayerInfo{ID: id},
			Team:   p.team,
			Role:   p.role,
			Ready:  p.ready,
		})
		if only != uuid.Nil && only != id {
			continue
		}
		views = append(views, snapshotView{
			playerID: id,
			tiles:    g.board.TilesFor(p.role, started),
		})
	}
	return players, views, g.turn
}

func (g *Game) deliverSnapshot(players []protocol.GamePlayerState, views []snapshotView, turn protocol.Turn) {
	g.fillNicknames(players)
	for _, view := range views {
		g.dir.Send(view.playerID, protocol.GameStateSnapshotMessage{GameStateSnapshot: protocol.GameStateSnapshot{
			Players: players,
			Tiles:   view.tiles,
			Turn:    turn,
		}})
	}
}

func (g *Game) fillNicknames(players []protocol.GamePlayerState) {
	ids := make([]uuid.UUID, len(players))
	for i := range players {
		ids[i] = players[i].Player.ID
	}
	infos := g.dir.playerInfos(ids)
	for i := range players {
		players[i].Player = infos[players[i].Player.ID]
	}
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
