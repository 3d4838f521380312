package services

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bellapacxx/raffle-backend/raffle"
	"github.com/bellapacxx/raffle-backend/utils/logger"
)

// FulfillFunc delivers the random values for an issued request back into the
// raffle service.
type FulfillFunc func(requestID string, values []*big.Int)

// domain is 2^256, matching the width of the values a real coordinator returns.
var domain = new(big.Int).Lsh(big.NewInt(1), 256)

// DevCoordinator is the in-process oracle used for local runs and tests. It
// mints a uuid correlation id per request and, after a simulated confirmation
// delay, generates a 256-bit value from crypto/rand and invokes the
// fulfillment callback on its own goroutine.
type DevCoordinator struct {
	mu      sync.Mutex
	delay   time.Duration
	fulfill FulfillFunc
}

func NewDevCoordinator(delay time.Duration) *DevCoordinator {
	return &DevCoordinator{delay: delay}
}

// OnFulfill registers the callback; must be set before the first request.
func (c *DevCoordinator) OnFulfill(f FulfillFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fulfill = f
}

func (c *DevCoordinator) RequestRandomness(req raffle.RandomnessRequest) (string, error) {
	requestID := uuid.NewString()

	go func() {
		time.Sleep(c.delay)

		value, err := rand.Int(rand.Reader, domain)
		if err != nil {
			logger.Errorf("[DevOracle] failed to generate randomness for %s: %v", requestID, err)
			return
		}

		c.mu.Lock()
		fulfill := c.fulfill
		c.mu.Unlock()
		if fulfill == nil {
			logger.Errorf("[DevOracle] no fulfillment callback registered, dropping %s", requestID)
			return
		}

		logger.Infof("[DevOracle] fulfilling request %s", requestID)
		fulfill(requestID, []*big.Int{value})
	}()

	return requestID, nil
}
