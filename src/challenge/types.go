package challenge

import (
	"math/big"
	"strings"
)

// GraceSeconds is how long after the deadline participants may still
// claim before the creator can reclaim the unclaimed pool.
const GraceSeconds int64 = 600

// DefaultNickname is shown when a creator did not set one.
const DefaultNickname = "Anonymous"

// Status is the derived lifecycle state of a challenge.
type Status string

const (
	StatusActive     Status = "active"
	StatusEnded      Status = "ended"
	StatusRefundable Status = "refundable"
)

// ProofType is the kind of proof a challenge asks for.
type ProofType string

const (
	ProofNone  ProofType = ""
	ProofImage ProofType = "image"
	ProofText  ProofType = "text"
	ProofLink  ProofType = "link"
)

// ParseProofType accepts the known proof types case-insensitively.
func ParseProofType(s string) (ProofType, bool) {
	switch ProofType(strings.ToLower(strings.TrimSpace(s))) {
	case ProofImage:
		return ProofImage, true
	case ProofText:
		return ProofText, true
	case ProofLink:
		return ProofLink, true
	case ProofNone:
		return ProofNone, true
	}
	return ProofNone, false
}

// Categories offered when creating a challenge.
var Categories = []string{"Social", "Education", "Lifestyle", "Creative", "Tech"}

// Record is a challenge as stored by the contract. It is only ever
// re-read, never modified locally.
type Record struct {
	ID                  uint64   `json:"id"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	CreatorAddress      string   `json:"creatorAddress"`
	CreatorNickname     string   `json:"creatorNickname"`
	Reward              *big.Int `json:"-"`
	Deadline            int64    `json:"deadline"`
	MaxParticipants     uint64   `json:"maxParticipants"`
	CurrentParticipants uint64   `json:"currentParticipants"`
}

// RawRecord is a record as decoded from the contract, before any
// numeric coercion. Placeholder rows for deleted or unused ids come back
// with zero values.
type RawRecord struct {
	ID                  *big.Int
	Title               string
	Description         string
	CreatorAddress      string
	CreatorNickname     string
	Reward              *big.Int
	Deadline            *big.Int
	MaxParticipants     *big.Int
	CurrentParticipants *big.Int
}

// Metadata is the descriptive data that lives only in the local cache.
type Metadata struct {
	Category     string    `json:"category"`
	ProofType    ProofType `json:"proofType,omitempty"`
	Requirements string    `json:"requirements,omitempty"`
	CreatedAt    int64     `json:"createdAt"`
}

// View is the denormalised challenge handed to the display layer.
type View struct {
	Record

	Category     string    `json:"category"`
	ProofType    ProofType `json:"proofType,omitempty"`
	Requirements string    `json:"requirements,omitempty"`
	HasMetadata  bool      `json:"hasMetadata"`

	RewardWei        string `json:"reward"`
	Status           Status `json:"status"`
	TimeLeft         string `json:"timeLeft"`
	CreatorDisplay   string `json:"creator"`
	RewardDisplay    string `json:"rewardDisplay"`
	TotalPoolDisplay string `json:"totalPoolDisplay"`
	// RefundableAt is the unix second after which an unfilled challenge
	// can be refunded.
	RefundableAt int64 `json:"refundableAt"`
}
