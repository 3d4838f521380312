package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	DepositTransaction  TransactionType = "deposit"
	WithdrawTransaction TransactionType = "withdraw"
	EntryTransaction    TransactionType = "entry"
	PayoutTransaction   TransactionType = "payout"
)

type Transaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `json:"user_id"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `gorm:"type:numeric" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:numeric" json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}
