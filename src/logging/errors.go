package logging

import "strings"

// IsRateLimit reports whether an RPC or HTTP error looks like throttling.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429")
}

var revertReasons = []struct {
	needles []string
	text    string
}{
	{[]string{"already completed"}, "You have already completed this challenge."},
	{[]string{"already participated"}, "You have already participated in this challenge."},
	{[]string{"challenge full", "max participants"}, "This challenge is full."},
	{[]string{"deadline passed", "challenge expired", "deadline has passed"}, "The challenge deadline has passed."},
	{[]string{"insufficient funds"}, "Insufficient funds to cover the reward pool and gas."},
	{[]string{"user rejected", "user denied"}, "Transaction was rejected in the wallet."},
}

// Explain turns a failed contract write into text for the user. Known
// revert reasons get a fixed message; anything else is passed through.
func Explain(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	for _, r := range revertReasons {
		for _, n := range r.needles {
			if strings.Contains(msg, n) {
				return r.text
			}
		}
	}
	return "Transaction failed: " + err.Error()
}
