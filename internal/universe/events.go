package universe

import (
	"github.com/codewords/codewords/internal/protocol"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventGameCreated  EventKind = "game_created"
	EventPlayerJoined EventKind = "player_joined"
	EventPlayerLeft   EventKind = "player_left"
	EventGameStarted  EventKind = "game_started"
	EventGameRemoved  EventKind = "game_removed"
)

// Event describes a change in a game's lifecycle. PlayerID is set for join
// and leave events, Turn for game_started.
type Event struct {
	Kind     EventKind
	Game     protocol.GameInfo
	PlayerID uuid.UUID
	Turn     protocol.Turn
}

// Observer is called after a lifecycle change, with no lock held. It runs on
// the goroutine of the session that caused the change and must not block.
type Observer func(Event)

// WithObserver registers fn to receive lifecycle events.
func WithObserver(fn Observer) Option {
	return func(u *Universe) {
		u.observer = fn
	}
}

func (u *Universe) notify(ev Event) {
	if u.observer != nil {
		u.observer(ev)
	}
}
