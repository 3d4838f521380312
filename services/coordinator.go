package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bellapacxx/raffle-backend/raffle"
)

type requestRandomnessResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// HTTPCoordinator talks to an external randomness coordinator. The request
// returns the correlation id immediately; the coordinator later POSTs the
// random values to our /api/raffle/fulfill callback with the shared token.
type HTTPCoordinator struct {
	url    string
	client *http.Client
}

func NewHTTPCoordinator(url string) *HTTPCoordinator {
	return &HTTPCoordinator{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPCoordinator) RequestRandomness(req raffle.RandomnessRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %v", err)
	}

	httpReq, err := http.NewRequest("POST", c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %v", err)
	}

	var parsed requestRandomnessResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %v", err)
	}
	if resp.StatusCode != http.StatusOK || parsed.RequestID == "" {
		return "", fmt.Errorf("coordinator rejected request: status=%d error=%s", resp.StatusCode, parsed.Error)
	}

	return parsed.RequestID, nil
}
