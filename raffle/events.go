package raffle

import "github.com/shopspring/decimal"

// Listener receives round lifecycle notifications. Callbacks run inside the
// round's critical section, so implementations must not call back into the
// round and should hand slow work off to a goroutine.
type Listener interface {
	EnteredRound(p Participant, value decimal.Decimal)
	DrawRequested(requestID string)
	WinnerPicked(winner Participant, pot decimal.Decimal)
}

// NopListener is a Listener that ignores every notification.
type NopListener struct{}

func (NopListener) EnteredRound(Participant, decimal.Decimal) {}
func (NopListener) DrawRequested(string)                      {}
func (NopListener) WinnerPicked(Participant, decimal.Decimal) {}
