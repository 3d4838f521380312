package services

import (
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bellapacxx/raffle-backend/config"
	"github.com/bellapacxx/raffle-backend/models"
	"github.com/bellapacxx/raffle-backend/raffle"
	"github.com/bellapacxx/raffle-backend/utils/logger"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// Raffle is the singleton service, set by InitRaffleService.
var Raffle *RaffleService

// RaffleService wraps the round aggregate with persistence, wallet debits,
// the observer hub and the upkeep loop. Its mutex serializes entries,
// triggers and fulfillments end to end so the wallet ledger and the round
// never disagree.
type RaffleService struct {
	mu    sync.Mutex
	cfg   config.Raffle
	round *raffle.Round
	hub   *Hub

	currentRoundID uint
	roundNumber    int
	players        []string // mirror of the ledger for the settlement snapshot
}

// InitRaffleService builds the round from config, wires the coordinator
// (external when COORDINATOR_URL is set, in-process dev oracle otherwise) and
// starts the upkeep loop.
func InitRaffleService(cfg config.Raffle) *RaffleService {
	svc := &RaffleService{cfg: cfg, hub: NewHub()}

	var coordinator raffle.Coordinator
	if cfg.CoordinatorURL != "" {
		coordinator = NewHTTPCoordinator(cfg.CoordinatorURL)
		logger.Infof("[Raffle] using external coordinator at %s", cfg.CoordinatorURL)
	} else {
		dev := NewDevCoordinator(cfg.DevOracleDelay)
		dev.OnFulfill(func(requestID string, values []*big.Int) {
			if _, err := svc.Fulfill(requestID, values); err != nil {
				logger.Errorf("[Raffle] dev fulfillment %s failed: %v", requestID, err)
			}
		})
		coordinator = dev
		logger.Infof("[Raffle] using in-process dev oracle (delay=%s)", cfg.DevOracleDelay)
	}

	svc.round = raffle.NewRound(raffle.Config{
		EntranceFee:      cfg.EntranceFee,
		DrawInterval:     cfg.DrawInterval,
		KeyHash:          cfg.KeyHash,
		SubscriptionID:   cfg.SubscriptionID,
		CallbackGasLimit: cfg.CallbackGasLimit,
	}, coordinator, &WalletPayer{})
	svc.round.SetListener(svc)

	svc.openRoundRecord()
	Raffle = svc

	go svc.runUpkeepLoop()
	logger.Infof("[Raffle] service started (fee=%s interval=%s)", cfg.EntranceFee, cfg.DrawInterval)
	return svc
}

// Round exposes the aggregate for read accessors.
func (s *RaffleService) Round() *raffle.Round { return s.round }

// Enter debits the user's wallet by amount and admits them into the current
// round. Admission conditions are checked before the debit so a rejected
// entry never touches the wallet.
func (s *RaffleService) Enter(telegramID int64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount.LessThan(s.round.EntranceFee()) {
		return raffle.ErrInsufficientEntry
	}
	if s.round.State() != raffle.StateOpen {
		return raffle.ErrRoundNotOpen
	}

	var user models.User
	if err := config.DB.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		user.Balance = user.Balance.Sub(amount)
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		entry := models.Entry{
			RoundID:    s.currentRoundID,
			UserID:     user.ID,
			TelegramID: telegramID,
			Amount:     amount,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		record := models.Transaction{
			UserID:       user.ID,
			Type:         models.EntryTransaction,
			Amount:       amount,
			BalanceAfter: user.Balance,
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return err
	}

	participant := raffle.Participant(strconv.FormatInt(telegramID, 10))
	if err := s.round.Enter(participant, amount); err != nil {
		// Cannot happen under s.mu after the checks above, but never keep a
		// debited wallet out of the pot.
		logger.Errorf("[Raffle] admission failed after debit for %d, refunding: %v", telegramID, err)
		s.refund(user.ID, amount)
		return err
	}

	s.players = append(s.players, string(participant))
	go s.syncRoundRecord(s.currentRoundID)
	return nil
}

// TriggerDraw performs upkeep manually; the upkeep loop calls it too.
func (s *RaffleService) TriggerDraw() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round.TriggerDraw()
}

// Fulfill completes the outstanding draw and settles the persisted round:
// winner, random value and final status are recorded, then the next cycle's
// row opens. A payout failure still settles the row, marked payout_failed so
// operators can reconcile the stuck pot.
func (s *RaffleService) Fulfill(requestID string, values []*big.Int) (raffle.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pot := s.round.PooledBalance()
	winner, err := s.round.FulfillRandomness(requestID, values)
	if err != nil && !errors.Is(err, raffle.ErrTransferFailed) {
		return "", err
	}

	status := models.RoundSettled
	if err != nil {
		status = models.RoundPayoutFailed
		logger.Errorf("[Raffle] payout failed for round %d: %v", s.roundNumber, err)
	}

	winnerTelegramID, convErr := strconv.ParseInt(string(winner), 10, 64)
	if convErr != nil {
		logger.Errorf("[Raffle] unparseable winner identity %q: %v", winner, convErr)
	}

	playersJSON, _ := json.Marshal(s.players)
	now := time.Now()
	updates := map[string]any{
		"status":             status,
		"pot":                pot,
		"entry_count":        len(s.players),
		"request_id":         requestID,
		"random_value":       values[0].String(),
		"winner_telegram_id": winnerTelegramID,
		"players_json":       datatypes.JSON(playersJSON),
		"settled_at":         now,
	}
	if dbErr := config.DB.Model(&models.Round{}).Where("id = ?", s.currentRoundID).Updates(updates).Error; dbErr != nil {
		logger.Errorf("[Raffle] failed to settle round record %d: %v", s.currentRoundID, dbErr)
	}

	logger.Infof("[Raffle] round %d settled: winner=%s pot=%s status=%s",
		s.roundNumber, winner, pot, status)

	s.players = nil
	s.openRoundRecord()
	return winner, err
}

// Snapshot is the read model served over REST and on websocket connect.
type Snapshot struct {
	EntranceFee      decimal.Decimal `json:"entrance_fee"`
	DrawIntervalSecs int             `json:"draw_interval_seconds"`
	State            raffle.State    `json:"state"`
	ParticipantCount int             `json:"participant_count"`
	PooledBalance    decimal.Decimal `json:"pooled_balance"`
	RecentWinner     *string         `json:"recent_winner"`
	LastDrawTime     time.Time       `json:"last_draw_time"`
	PendingRequestID string          `json:"pending_request_id,omitempty"`
	RoundNumber      int             `json:"round_number"`
}

func (s *RaffleService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		EntranceFee:      s.round.EntranceFee(),
		DrawIntervalSecs: int(s.round.DrawInterval() / time.Second),
		State:            s.round.State(),
		ParticipantCount: s.round.ParticipantCount(),
		PooledBalance:    s.round.PooledBalance(),
		LastDrawTime:     s.round.LastDrawTime(),
		PendingRequestID: s.round.PendingRequestID(),
		RoundNumber:      s.roundNumber,
	}
	if w, ok := s.round.RecentWinner(); ok {
		winner := string(w)
		snap.RecentWinner = &winner
	}
	return snap
}

// Listener callbacks run inside the round's critical section; everything here
// is handed to goroutines so the round is never blocked on observers or the DB.

func (s *RaffleService) EnteredRound(p raffle.Participant, value decimal.Decimal) {
	go s.hub.Broadcast("entered_round", map[string]any{
		"participant": string(p),
		"value":       value,
	})
}

func (s *RaffleService) DrawRequested(requestID string) {
	roundID := s.currentRoundID
	go func() {
		if err := config.DB.Model(&models.Round{}).Where("id = ?", roundID).
			Updates(map[string]any{"status": models.RoundCalculating, "request_id": requestID}).Error; err != nil {
			logger.Errorf("[Raffle] failed to mark round %d calculating: %v", roundID, err)
		}
		s.hub.Broadcast("draw_requested", map[string]any{"request_id": requestID})
	}()
	logger.Infof("[Raffle] draw requested for round %d (request=%s)", s.roundNumber, requestID)
}

func (s *RaffleService) WinnerPicked(winner raffle.Participant, pot decimal.Decimal) {
	go s.hub.Broadcast("winner_picked", map[string]any{
		"winner": string(winner),
		"pot":    pot,
	})
	logger.Infof("[Raffle] winner picked for round %d: %s (pot=%s)", s.roundNumber, winner, pot)
}

func (s *RaffleService) refund(userID uint, amount decimal.Decimal) {
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		user.Balance = user.Balance.Add(amount)
		return tx.Save(&user).Error
	})
	if err != nil {
		logger.Errorf("[Raffle] refund of %s to user %d failed: %v", amount, userID, err)
	}
}

// openRoundRecord creates the persisted row for the next cycle, numbering it
// after the latest round on record.
func (s *RaffleService) openRoundRecord() {
	var last models.Round
	next := 1
	if err := config.DB.Order("round_number DESC").First(&last).Error; err == nil {
		next = last.RoundNumber + 1
	}

	record := models.Round{
		RoundNumber: next,
		Status:      models.RoundOpen,
		Pot:         decimal.Zero,
		OpenedAt:    time.Now(),
		PlayersJSON: datatypes.JSON([]byte("[]")),
	}
	if err := config.DB.Create(&record).Error; err != nil {
		logger.Errorf("[Raffle] failed to create round record: %v", err)
		return
	}
	s.currentRoundID = record.ID
	s.roundNumber = next
}

// syncRoundRecord keeps the open row's pot and entry count current.
func (s *RaffleService) syncRoundRecord(roundID uint) {
	updates := map[string]any{
		"pot":         s.round.PooledBalance(),
		"entry_count": s.round.ParticipantCount(),
	}
	if err := config.DB.Model(&models.Round{}).Where("id = ?", roundID).Updates(updates).Error; err != nil {
		logger.Errorf("[Raffle] failed to sync round record %d: %v", roundID, err)
	}
}

// runUpkeepLoop periodically retries the draw trigger so rounds settle
// without an external keeper. UpkeepNotNeeded is the normal idle case.
func (s *RaffleService) runUpkeepLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if !s.round.IsEligible() {
			continue
		}
		if _, err := s.TriggerDraw(); err != nil {
			var notNeeded *raffle.UpkeepNotNeededError
			if errors.As(err, &notNeeded) {
				continue
			}
			logger.Errorf("[Raffle] upkeep trigger failed: %v", err)
		}
	}
}
