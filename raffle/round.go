package raffle

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// State of the round: entries are admitted while OPEN; CALCULATING means a
// randomness request is outstanding and the round is waiting for the oracle.
type State string

const (
	StateOpen        State = "open"
	StateCalculating State = "calculating"
)

// Participant identifies one entrant. The service layer maps these to user
// accounts; the round only appends, indexes and clears them.
type Participant string

// Config carries the parameters fixed at construction. EntranceFee and
// DrawInterval gate entries and eligibility; the oracle parameters are opaque
// to the round and passed through on every randomness request.
type Config struct {
	EntranceFee      decimal.Decimal
	DrawInterval     time.Duration
	KeyHash          string
	SubscriptionID   uint64
	CallbackGasLimit uint32
}

// Payer delivers the pot to the winner. Implementations report failure with an
// error; they must not call back into the round.
type Payer interface {
	Pay(winner Participant, amount decimal.Decimal) error
}

// Round is the single long-lived raffle aggregate. It cycles indefinitely
// through OPEN -> CALCULATING -> OPEN. All fields are guarded by mu so that
// concurrent HTTP handlers, the upkeep loop and the oracle callback never
// interleave inside an operation.
type Round struct {
	mu          sync.Mutex
	cfg         Config
	coordinator Coordinator
	payer       Payer
	listener    Listener
	now         func() time.Time

	state            State
	players          []Participant
	pooled           decimal.Decimal
	recentWinner     *Participant
	lastDraw         time.Time
	pendingRequestID string
}

// NewRound creates the round in the OPEN state with an empty ledger. The draw
// interval starts counting from construction time.
func NewRound(cfg Config, coordinator Coordinator, payer Payer) *Round {
	return &Round{
		cfg:         cfg,
		coordinator: coordinator,
		payer:       payer,
		listener:    NopListener{},
		now:         time.Now,
		state:       StateOpen,
		pooled:      decimal.Zero,
		lastDraw:    time.Now(),
	}
}

// SetListener registers the notification sink. Pass nil to silence events.
func (r *Round) SetListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l == nil {
		l = NopListener{}
	}
	r.listener = l
}

// Enter admits a participant into the current round. The value must be at
// least the entrance fee and the round must be OPEN; on success the
// participant is appended to the ledger and the pot grows by value.
func (r *Round) Enter(p Participant, value decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if value.LessThan(r.cfg.EntranceFee) {
		return ErrInsufficientEntry
	}
	if r.state != StateOpen {
		return ErrRoundNotOpen
	}

	r.players = append(r.players, p)
	r.pooled = r.pooled.Add(value)
	r.listener.EnteredRound(p, value)
	return nil
}

// IsEligible reports whether a draw can be triggered right now: the interval
// has elapsed since the last draw, the round is OPEN, and there is at least
// one participant with a non-empty pot. Pure read, callable at any time.
func (r *Round) IsEligible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eligibleLocked()
}

func (r *Round) eligibleLocked() bool {
	intervalElapsed := r.now().Sub(r.lastDraw) >= r.cfg.DrawInterval
	return intervalElapsed &&
		r.state == StateOpen &&
		r.pooled.GreaterThan(decimal.Zero) &&
		len(r.players) > 0
}

// TriggerDraw re-checks eligibility and, if met, moves the round to
// CALCULATING and asks the coordinator for one random value. It returns the
// correlation id immediately without waiting for the result; the round stays
// suspended in CALCULATING until FulfillRandomness is called.
//
// An ineligible trigger fails with *UpkeepNotNeededError carrying the current
// snapshot. A coordinator failure rolls the state back to OPEN so the
// operation is all-or-nothing.
func (r *Round) TriggerDraw() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.eligibleLocked() {
		return "", &UpkeepNotNeededError{
			Balance:          r.pooled,
			ParticipantCount: len(r.players),
			State:            r.state,
		}
	}

	r.state = StateCalculating
	requestID, err := r.coordinator.RequestRandomness(RandomnessRequest{
		KeyHash:              r.cfg.KeyHash,
		SubscriptionID:       r.cfg.SubscriptionID,
		RequestConfirmations: RequestConfirmations,
		CallbackGasLimit:     r.cfg.CallbackGasLimit,
		NumValues:            NumRandomValues,
	})
	if err != nil {
		r.state = StateOpen
		return "", fmt.Errorf("request randomness: %w", err)
	}

	r.pendingRequestID = requestID
	r.listener.DrawRequested(requestID)
	return requestID, nil
}

// FulfillRandomness completes the draw for the given correlation id. The
// caller-identity check (only the configured oracle may reach this) is
// enforced at the transport boundary; here the id itself is validated against
// the single outstanding request, so stale or duplicate callbacks fail
// ErrUnknownRequest without touching round state.
//
// Effects run in a fixed order, with every state change committed before the
// payout interaction: winner selection, draw timestamp, ledger reset, winner
// record, reopen, WinnerPicked, and only then the transfer. A failed transfer
// leaves the reopened round intact; the undelivered pot stays pooled and rolls
// into the next round's payout.
func (r *Round) FulfillRandomness(requestID string, values []*big.Int) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateCalculating || requestID == "" || requestID != r.pendingRequestID {
		return "", ErrUnknownRequest
	}
	if len(values) == 0 {
		return "", fmt.Errorf("%w: empty random values", ErrUnknownRequest)
	}

	// Modulo reduction is not perfectly uniform unless the participant count
	// divides the value's domain. Kept for parity with the deployed draws.
	count := big.NewInt(int64(len(r.players)))
	winnerIndex := new(big.Int).Mod(values[0], count).Int64()
	winner := r.players[winnerIndex]
	pot := r.pooled

	r.lastDraw = r.now()
	r.players = nil
	r.recentWinner = &winner
	r.state = StateOpen
	r.pendingRequestID = ""
	r.listener.WinnerPicked(winner, pot)

	if err := r.payer.Pay(winner, pot); err != nil {
		return winner, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	r.pooled = decimal.Zero
	return winner, nil
}

// GetParticipant returns the participant at index in entry order.
func (r *Round) GetParticipant(index int) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.players) {
		return "", ErrIndexOutOfRange
	}
	return r.players[index], nil
}

// ParticipantCount returns the number of admitted entries this round.
func (r *Round) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// RecentWinner returns the winner of the most recently completed round, if any.
func (r *Round) RecentWinner() (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recentWinner == nil {
		return "", false
	}
	return *r.recentWinner, true
}

func (r *Round) EntranceFee() decimal.Decimal { return r.cfg.EntranceFee }

func (r *Round) DrawInterval() time.Duration { return r.cfg.DrawInterval }

func (r *Round) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Round) PooledBalance() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pooled
}

func (r *Round) LastDrawTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDraw
}

// PendingRequestID returns the outstanding correlation id, empty while OPEN.
func (r *Round) PendingRequestID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingRequestID
}
