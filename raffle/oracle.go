package raffle

// Randomness request constants passed through to the coordinator on every draw.
const (
	RequestConfirmations = 3
	NumRandomValues      = 1
)

// RandomnessRequest carries the fixed oracle parameters for one draw.
type RandomnessRequest struct {
	KeyHash              string `json:"key_hash"`
	SubscriptionID       uint64 `json:"subscription_id"`
	RequestConfirmations uint16 `json:"request_confirmations"`
	CallbackGasLimit     uint32 `json:"callback_gas_limit"`
	NumValues            uint32 `json:"num_values"`
}

// Coordinator is the oracle collaborator. RequestRandomness must return
// immediately with an opaque correlation id; the random values arrive later
// through a separate call into Round.FulfillRandomness.
type Coordinator interface {
	RequestRandomness(req RandomnessRequest) (string, error)
}
