package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event is one append-only audit row. It is never read back to restore game
// state.
type Event struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    uuid.UUID      `gorm:"type:uuid;index;not null"`
	PlayerID  *uuid.UUID     `gorm:"type:uuid;index"`
	JoinCode  string         `gorm:"size:12;not null"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
