package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	TelegramID int64           `gorm:"uniqueIndex" json:"telegram_id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Balance    decimal.Decimal `gorm:"type:numeric" json:"balance"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
