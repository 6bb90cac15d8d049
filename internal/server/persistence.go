package server

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/codewords/codewords/internal/db"
	"github.com/codewords/codewords/internal/universe"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultAuditBuffer = 256

// AuditLog appends game lifecycle events to the events table. Observe never
// blocks game code; Run does the writes.
type AuditLog struct {
	db      *gorm.DB
	events  chan universe.Event
	dropped atomic.Int64
	logger  zerolog.Logger
}

type EventPayload struct {
	GameID   string `json:"game_id"`
	JoinCode string `json:"join_code"`
	PlayerID string `json:"player_id,omitempty"`
	Turn     string `json:"turn,omitempty"`
}

// NewAuditLog returns an audit log writing to conn. A nil conn makes every
// call a no-op.
func NewAuditLog(conn *gorm.DB, buffer int, logger zerolog.Logger) *AuditLog {
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}
	return &AuditLog{
		db:     conn,
		events: make(chan universe.Event, buffer),
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Observe queues ev for writing. It is a universe.Observer.
func (a *AuditLog) Observe(ev universe.Event) {
	if a == nil || a.db == nil {
		return
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
		a.logger.Warn().Str("type", string(ev.Kind)).Msg("audit queue full, dropping event")
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (a *AuditLog) Dropped() int64 {
	return a.dropped.Load()
}

// Run writes queued events until ctx is done, then flushes what is left.
func (a *AuditLog) Run(ctx context.Context) error {
	if a == nil || a.db == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case ev := <-a.events:
			a.write(ev)
		case <-ctx.Done():
			a.flush()
			return nil
		}
	}
}

func (a *AuditLog) flush() {
	for {
		select {
		case ev := <-a.events:
			a.write(ev)
		default:
			return
		}
	}
}

func (a *AuditLog) write(ev universe.Event) {
	record, err := eventRecord(ev, time.Now().UTC())
	if err != nil {
		a.logger.Error().Err(err).Str("type", string(ev.Kind)).Msg("encode audit event")
		return
	}
	if err := a.db.Create(&record).Error; err != nil {
		a.logger.Error().Err(err).Str("type", string(ev.Kind)).Stringer("game_id", ev.Game.GameID).Msg("persist audit event")
	}
}

func eventRecord(ev universe.Event, at time.Time) (db.Event, error) {
	payload := EventPayload{
		GameID:   ev.Game.GameID.String(),
		JoinCode: ev.Game.JoinCode,
		Turn:     string(ev.Turn),
	}
	var playerID *uuid.UUID
	if ev.PlayerID != uuid.Nil {
		id := ev.PlayerID
		playerID = &id
		payload.PlayerID = id.String()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return db.Event{}, err
	}
	return db.Event{
		GameID:    ev.Game.GameID,
		PlayerID:  playerID,
		JoinCode:  ev.Game.JoinCode,
		Type:      string(ev.Kind),
		Payload:   datatypes.JSON(data),
		CreatedAt: at,
	}, nil
}
