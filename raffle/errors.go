package raffle

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientEntry is returned when an entry value is below the entrance fee.
	ErrInsufficientEntry = errors.New("entry value below entrance fee")

	// ErrRoundNotOpen is returned when an entry arrives while a draw is in progress.
	ErrRoundNotOpen = errors.New("round is not open")

	// ErrIndexOutOfRange is returned for participant reads past the end of the ledger.
	ErrIndexOutOfRange = errors.New("participant index out of range")

	// ErrTransferFailed wraps a payout that could not be delivered to the winner.
	ErrTransferFailed = errors.New("transfer to winner failed")

	// ErrUnknownRequest is returned for a fulfillment whose correlation id does not
	// match the outstanding randomness request.
	ErrUnknownRequest = errors.New("unknown or stale randomness request")
)

// UpkeepNotNeededError signals that a draw was triggered before the round became
// eligible. It is a "not yet" diagnostic, not an exceptional condition: the
// snapshot tells the caller what was missing so it can decide when to retry.
type UpkeepNotNeededError struct {
	Balance          decimal.Decimal
	ParticipantCount int
	State            State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("upkeep not needed (balance=%s players=%d state=%s)",
		e.Balance, e.ParticipantCount, e.State)
}
