package logging

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExplain(t *testing.T) {
	cases := map[string]string{
		"execution reverted: Already completed":       "You have already completed this challenge.",
		"execution reverted: Challenge full":          "This challenge is full.",
		"execution reverted: Deadline passed":         "The challenge deadline has passed.",
		"execution reverted: already participated":    "You have already participated in this challenge.",
		"insufficient funds for gas * price + value":  "Insufficient funds to cover the reward pool and gas.",
		"MetaMask Tx Signature: User denied signature": "Transaction was rejected in the wallet.",
	}
	for raw, want := range cases {
		assert.Equal(t, want, Explain(errors.New(raw)), raw)
	}

	assert.Equal(t, "Transaction failed: nonce too low", Explain(errors.New("nonce too low")))
	assert.Equal(t, "Transaction was rejected in the wallet.", Explain(fmt.Errorf("sign: %w", errors.New("user rejected the request"))))
	assert.Empty(t, Explain(nil))
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, IsRateLimit(errors.New("429 Too Many Requests")))
	assert.True(t, IsRateLimit(errors.New("rate_limit exceeded")))
	assert.False(t, IsRateLimit(errors.New("connection refused")))
	assert.False(t, IsRateLimit(nil))
}

func TestNewLevel(t *testing.T) {
	logger, err := New("debug")
	if assert.NoError(t, err) {
		assert.True(t, logger.Core().Enabled(-1))
	}
	_, err = New("loud")
	assert.Error(t, err)
}
