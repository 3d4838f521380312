package raffle

import (
	"errors"
	"math/big"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCoordinator struct {
	mu       sync.Mutex
	requests []RandomnessRequest
	nextID   string
	err      error
}

func (c *fakeCoordinator) RequestRandomness(req RandomnessRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.requests = append(c.requests, req)
	return c.nextID, nil
}

type fakePayer struct {
	winner Participant
	amount decimal.Decimal
	calls  int
	err    error
}

func (p *fakePayer) Pay(winner Participant, amount decimal.Decimal) error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.winner = winner
	p.amount = amount
	return nil
}

type recordingListener struct {
	entered   []Participant
	requested []string
	winners   []Participant
	pots      []decimal.Decimal
}

func (l *recordingListener) EnteredRound(p Participant, _ decimal.Decimal) {
	l.entered = append(l.entered, p)
}

func (l *recordingListener) DrawRequested(id string) {
	l.requested = append(l.requested, id)
}

func (l *recordingListener) WinnerPicked(w Participant, pot decimal.Decimal) {
	l.winners = append(l.winners, w)
	l.pots = append(l.pots, pot)
}

func testConfig() Config {
	return Config{
		EntranceFee:      decimal.RequireFromString("0.01"),
		DrawInterval:     30 * time.Second,
		KeyHash:          "0xkeyhash",
		SubscriptionID:   42,
		CallbackGasLimit: 500000,
	}
}

func newTestRound(t *testing.T) (*Round, *fakeCoordinator, *fakePayer, *recordingListener) {
	t.Helper()
	coord := &fakeCoordinator{nextID: "req-1"}
	payer := &fakePayer{}
	listener := &recordingListener{}
	r := NewRound(testConfig(), coord, payer)
	r.SetListener(listener)
	return r, coord, payer, listener
}

func advance(r *Round, d time.Duration) {
	base := r.LastDrawTime()
	r.now = func() time.Time { return base.Add(d) }
}

func TestEnterAdmitsPaidEntry(t *testing.T) {
	r, _, _, listener := newTestRound(t)

	err := r.Enter("P0", decimal.RequireFromString("0.01"))
	require.NoError(t, err)

	assert.Equal(t, 1, r.ParticipantCount())
	assert.True(t, r.PooledBalance().Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, []Participant{"P0"}, listener.entered)

	p, err := r.GetParticipant(0)
	require.NoError(t, err)
	assert.Equal(t, Participant("P0"), p)
}

func TestEnterRejectsValueBelowFee(t *testing.T) {
	r, _, _, listener := newTestRound(t)

	err := r.Enter("P0", decimal.RequireFromString("0.009"))
	require.ErrorIs(t, err, ErrInsufficientEntry)

	assert.Equal(t, 0, r.ParticipantCount())
	assert.True(t, r.PooledBalance().IsZero())
	assert.Empty(t, listener.entered)
}

func TestEnterRejectedWhileCalculating(t *testing.T) {
	r, _, _, _ := newTestRound(t)
	require.NoError(t, r.Enter("P0", decimal.RequireFromString("0.01")))
	advance(r, 31*time.Second)
	_, err := r.TriggerDraw()
	require.NoError(t, err)

	err = r.Enter("P1", decimal.RequireFromString("0.05"))
	require.ErrorIs(t, err, ErrRoundNotOpen)
	assert.Equal(t, 1, r.ParticipantCount())
}

func TestGetParticipantOutOfRange(t *testing.T) {
	r, _, _, _ := newTestRound(t)
	require.NoError(t, r.Enter("P0", decimal.RequireFromString("0.01")))

	_, err := r.GetParticipant(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = r.GetParticipant(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

// Eligibility must equal the AND of its four predicates for any combination.
func TestEligibilityMatchesPredicates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		r, _, _, _ := newTestRound(t)

		elapsed := time.Duration(rng.Intn(61)) * time.Second
		players := rng.Intn(3)
		balancePositive := rng.Intn(2) == 1
		calculating := rng.Intn(2) == 1

		for p := 0; p < players; p++ {
			require.NoError(t, r.Enter(Participant(string(rune('A'+p))), decimal.RequireFromString("0.02")))
		}
		// Vary the pot independently of the ledger so each conjunct is
		// falsified on its own: players with an empty pot, and a pot with no
		// players.
		if !balancePositive {
			r.pooled = decimal.Zero
		} else if players == 0 {
			r.pooled = decimal.RequireFromString("0.05")
		}
		if calculating {
			r.state = StateCalculating
		}
		advance(r, elapsed)

		want := elapsed >= 30*time.Second &&
			!calculating &&
			balancePositive &&
			players > 0

		got := r.IsEligible()
		require.Equalf(t, want, got,
			"elapsed=%s players=%d balancePositive=%v calculating=%v",
			elapsed, players, balancePositive, calculating)
		// Repeated calls without intervening mutation stay stable.
		require.Equal(t, got, r.IsEligible())
	}
}

func TestTriggerDrawMovesToCalculating(t *testing.T) {
	r, coord, _, listener := newTestRound(t)
	require.NoError(t, r.Enter("P0", decimal.RequireFromString("0.01")))
	advance(r, 31*time.Second)

	id, err := r.TriggerDraw()
	require.NoError(t, err)
	assert.Equal(t, "req-1", id)
	assert.Equal(t, StateCalculating, r.State())
	assert.Equal(t, []string{"req-1"}, listener.requested)

	require.Len(t, coord.requests, 1)
	req := coord.requests[0]
	assert.Equal(t, "0xkeyhash", req.KeyHash)
	assert.Equal(t, uint64(42), req.SubscriptionID)
	assert.Equal(t, uint16(3), req.RequestConfirmations)
	assert.Equal(t, uint32(500000), req.CallbackGasLimit)
	assert.Equal(t, uint32(1), req.NumValues)
}

func TestTriggerDrawNotEligible(t *testing.T) {
	r, _, _, _ := newTestRound(t)
	require.NoError(t, r.Enter("P0", decimal.RequireFromString("0.01")))
	// Interval not yet elapsed.
	_, err := r.TriggerDraw()

	var notNeeded *UpkeepNotNeededError
	require.ErrorAs(t, err, &notNeeded)
	assert.Equal(t, 1, notNeeded.ParticipantCount)
	assert.Equal(t, StateOpen, notNeeded.State)
	assert.True(t, notNeeded.Balance.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, StateOpen, r.State())
}

func TestSecondTriggerWhileCalculatingFails(t *testing.T) {
	r, _, _, listener := newTestRound(t)
	require.NoError(t, r.Enter("P0", decimal.RequireFromString("0.01")))
	advance(r, 31*time.Second)
	_, err := r.TriggerDraw()
	require.NoError(t, err)

	_, err = r.TriggerDraw()
	var notNeeded *UpkeepNotNeededError
	require.ErrorAs(t, err, &notNeeded)
	assert.Equal(t, StateCalculating, notNeeded.State)
	assert.Len(t, listener.requested, 1)
}

func TestTriggerDrawCoordinatorFailureRollsBack(t *testing.T) {
	r, coord, _, listener := newTestRound(t)
	coord.err = errors.New("coordinator unavailable")
	require.NoError(t, r.Enter("P0", decimal.RequireFromString("0.01")))
	advance(r, 31*time.Second)

	_, err := r.TriggerDraw()
	require.Error(t, err)
	assert.Equal(t, StateOpen, r.State())
	assert.Empty(t, listener.requested)
	assert.Empty(t, r.PendingRequestID())

	// Still eligible, so a retry succeeds once the coordinator recovers.
	coord.err = nil
	_, err = r.TriggerDraw()
	require.NoError(t, err)
}

func TestFulfillSelectsWinnerByModulo(t *testing.T) {
	r, _, payer, listener := newTestRound(t)
	for _, p := range []Participant{"P0", "P1", "P2"} {
		require.NoError(t, r.Enter(p, decimal.RequireFromString("0.01")))
	}
	advance(r, 31*time.Second)
	id, err := r.TriggerDraw()
	require.NoError(t, err)

	fulfilled := r.LastDrawTime().Add(45 * time.Second)
	r.now = func() time.Time { return fulfilled }

	winner, err := r.FulfillRandomness(id, []*big.Int{big.NewInt(7)})
	require.NoError(t, err)

	// 7 mod 3 == 1
	assert.Equal(t, Participant("P1"), winner)
	assert.Equal(t, 0, r.ParticipantCount())
	assert.Equal(t, StateOpen, r.State())
	assert.True(t, r.PooledBalance().IsZero())
	assert.Equal(t, fulfilled, r.LastDrawTime())

	recent, ok := r.RecentWinner()
	require.True(t, ok)
	assert.Equal(t, Participant("P1"), recent)

	assert.Equal(t, []Participant{"P1"}, listener.winners)
	require.Len(t, listener.pots, 1)
	assert.True(t, listener.pots[0].Equal(decimal.RequireFromString("0.03")))

	assert.Equal(t, 1, payer.calls)
	assert.Equal(t, Participant("P1"), payer.winner)
	assert.True(t, payer.amount.Equal(decimal.RequireFromString("0.03")))
}

func TestFulfillHandlesOversizedRandomValue(t *testing.T) {
	r, _, payer, _ := newTestRound(t)
	for _, p := range []Participant{"P0", "P1"} {
		require.NoError(t, r.Enter(p, decimal.RequireFromString("0.01")))
	}
	advance(r, 31*time.Second)
	id, err := r.TriggerDraw()
	require.NoError(t, err)

	// 2^255 + 1 is odd, so index = 1 with two participants.
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	huge.Add(huge, big.NewInt(1))

	winner, err := r.FulfillRandomness(id, []*big.Int{huge})
	require.NoError(t, err)
	assert.Equal(t, Participant("P1"), winner)
	assert.Equal(t, Participant("P1"), payer.winner)
}

func TestFulfillRejectsUnknownRequest(t *testing.T) {
	r, _, payer, _ := newTestRound(t)
	require.NoError(t, r.Enter("P0", decimal.RequireFromString("0.01")))

	// No request outstanding at all.
	_, err := r.FulfillRandomness("req-1", []*big.Int{big.NewInt(1)})
	require.ErrorIs(t, err, ErrUnknownRequest)

	advance(r, 31*time.Second)
	id, err := r.TriggerDraw()
	require.NoError(t, err)

	// Wrong correlation id leaves the draw outstanding.
	_, err = r.FulfillRandomness("bogus", []*big.Int{big.NewInt(1)})
	require.ErrorIs(t, err, ErrUnknownRequest)
	assert.Equal(t, StateCalculating, r.State())
	assert.Equal(t, 1, r.ParticipantCount())
	assert.Equal(t, 0, payer.calls)

	// The real callback still lands, and a duplicate is then rejected.
	_, err = r.FulfillRandomness(id, []*big.Int{big.NewInt(0)})
	require.NoError(t, err)
	_, err = r.FulfillRandomness(id, []*big.Int{big.NewInt(0)})
	require.ErrorIs(t, err, ErrUnknownRequest)
	assert.Equal(t, 1, payer.calls)
}

func TestFulfillRejectsEmptyValues(t *testing.T) {
	r, _, _, _ := newTestRound(t)
	require.NoError(t, r.Enter("P0", decimal.RequireFromString("0.01")))
	advance(r, 31*time.Second)
	id, err := r.TriggerDraw()
	require.NoError(t, err)

	_, err = r.FulfillRandomness(id, nil)
	require.ErrorIs(t, err, ErrUnknownRequest)
}

// A failed transfer leaves the round reopened with the pot still pooled; the
// undelivered pot rolls into the next round's payout.
func TestFulfillTransferFailureKeepsPot(t *testing.T) {
	r, coord, payer, _ := newTestRound(t)
	payer.err = errors.New("wallet unavailable")
	require.NoError(t, r.Enter("P0", decimal.RequireFromString("0.02")))
	advance(r, 31*time.Second)
	id, err := r.TriggerDraw()
	require.NoError(t, err)

	winner, err := r.FulfillRandomness(id, []*big.Int{big.NewInt(0)})
	require.ErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, Participant("P0"), winner)

	// State advanced, pot retained.
	assert.Equal(t, StateOpen, r.State())
	assert.Equal(t, 0, r.ParticipantCount())
	assert.True(t, r.PooledBalance().Equal(decimal.RequireFromString("0.02")))

	// Next round's pot includes the stuck funds.
	payer.err = nil
	require.NoError(t, r.Enter("P1", decimal.RequireFromString("0.01")))
	advance(r, 31*time.Second)
	coord.nextID = "req-2"
	id, err = r.TriggerDraw()
	require.NoError(t, err)
	_, err = r.FulfillRandomness(id, []*big.Int{big.NewInt(0)})
	require.NoError(t, err)
	assert.True(t, payer.amount.Equal(decimal.RequireFromString("0.03")))
	assert.True(t, r.PooledBalance().IsZero())
}

// End-to-end scenario: fee 0.01, interval 30s, three entrants, random value 7.
func TestFullRoundLifecycle(t *testing.T) {
	r, _, payer, listener := newTestRound(t)

	for _, p := range []Participant{"P0", "P1", "P2"} {
		require.NoError(t, r.Enter(p, decimal.RequireFromString("0.01")))
	}
	assert.Equal(t, 3, r.ParticipantCount())

	advance(r, 31*time.Second)
	id, err := r.TriggerDraw()
	require.NoError(t, err)
	assert.Equal(t, StateCalculating, r.State())

	winner, err := r.FulfillRandomness(id, []*big.Int{big.NewInt(7)})
	require.NoError(t, err)
	assert.Equal(t, Participant("P1"), winner)
	assert.Equal(t, []Participant{"P1"}, listener.winners)
	assert.Equal(t, 0, r.ParticipantCount())
	assert.True(t, payer.amount.Equal(decimal.RequireFromString("0.03")))

	// The round reopened and accepts the next cycle's entries.
	require.NoError(t, r.Enter("P3", decimal.RequireFromString("0.01")))
	assert.Equal(t, 1, r.ParticipantCount())
}
