package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type RoundStatus string

const (
	RoundOpen         RoundStatus = "open"
	RoundCalculating  RoundStatus = "calculating"
	RoundSettled      RoundStatus = "settled"
	RoundPayoutFailed RoundStatus = "payout_failed"
)

// Round is the persisted record of one raffle cycle. The in-memory aggregate
// only keeps the most recent winner; this table is the operator-facing history.
type Round struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	RoundNumber      int             `gorm:"index" json:"round_number"`
	Status           RoundStatus     `json:"status"`
	Pot              decimal.Decimal `gorm:"type:numeric" json:"pot"`
	EntryCount       int             `json:"entry_count"`
	RequestID        string          `json:"request_id"`
	RandomValue      string          `json:"random_value"` // decimal string of the 256-bit value
	WinnerTelegramID *int64          `json:"winner_telegram_id"`
	PlayersJSON      datatypes.JSON  `json:"players"` // participant snapshot at draw time
	OpenedAt         time.Time       `json:"opened_at"`
	SettledAt        *time.Time      `json:"settled_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
