package challenge

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Contract method names.
const (
	MethodCreate   = "createChallenge"
	MethodComplete = "completeChallenge"
	MethodEdit     = "editChallenge"
	MethodDelete   = "deleteChallenge"
	MethodRefund   = "refundCreator"
)

// Call is a shaped contract write: method, ABI arguments and the value
// attached to the transaction.
type Call struct {
	Method string
	Args   []any
	Value  *big.Int
	// Input is the ABI-encoded calldata once the call has been packed.
	Input []byte
}

// MaxDurationDays is the longest a new challenge may run.
const MaxDurationDays = 30

// CreateForm is what a creator fills in.
type CreateForm struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Nickname        string `json:"nickname"`
	Category        string `json:"category"`
	ProofType       string `json:"proofType"`
	Requirements    string `json:"requirements"`
	Reward          string `json:"reward"`
	DurationDays    int    `json:"duration"`
	MaxParticipants uint64 `json:"maxParticipants"`
}

// CreatePlan is a validated create form: the contract call plus the
// values needed to remember its metadata until the contract assigns an id.
type CreatePlan struct {
	Call            Call
	Title           string
	Description     string
	Deadline        int64
	MaxParticipants uint64
	Reward          *big.Int
	Metadata        Metadata
}

// PlanCreate validates form and shapes the createChallenge call. The
// deadline is now plus the chosen number of days.
func PlanCreate(form CreateForm, now time.Time) (CreatePlan, error) {
	title := strings.TrimSpace(form.Title)
	if title == "" {
		return CreatePlan{}, invalid("title", "title is required")
	}
	description := strings.TrimSpace(form.Description)
	if description == "" {
		return CreatePlan{}, invalid("description", "description is required")
	}
	if form.MaxParticipants == 0 {
		return CreatePlan{}, invalid("maxParticipants", "at least one participant is required")
	}
	if form.DurationDays <= 0 {
		return CreatePlan{}, invalid("duration", "duration must be at least one day")
	}
	if form.DurationDays > MaxDurationDays {
		return CreatePlan{}, invalid("duration", fmt.Sprintf("duration must be at most %d days", MaxDurationDays))
	}
	category, err := normalizeCategory(form.Category)
	if err != nil {
		return CreatePlan{}, err
	}
	proof := ProofImage
	if strings.TrimSpace(form.ProofType) != "" {
		p, ok := ParseProofType(form.ProofType)
		if !ok {
			return CreatePlan{}, invalid("proofType", fmt.Sprintf("unknown proof type %q", form.ProofType))
		}
		proof = p
	}
	reward, err := positiveAmount("reward", form.Reward)
	if err != nil {
		return CreatePlan{}, err
	}

	nickname := strings.TrimSpace(form.Nickname)
	if nickname == "" {
		nickname = DefaultNickname
	}
	deadline := now.Unix() + int64(form.DurationDays)*secondsPerDay

	return CreatePlan{
		Call: Call{
			Method: MethodCreate,
			Args: []any{
				title,
				description,
				nickname,
				reward,
				big.NewInt(deadline),
				new(big.Int).SetUint64(form.MaxParticipants),
			},
			Value: TotalCost(reward, form.MaxParticipants),
		},
		Title:           title,
		Description:     description,
		Deadline:        deadline,
		MaxParticipants: form.MaxParticipants,
		Reward:          reward,
		Metadata: Metadata{
			Category:     category,
			ProofType:    proof,
			Requirements: strings.TrimSpace(form.Requirements),
			CreatedAt:    now.UnixMilli(),
		},
	}, nil
}

// EditForm carries the fields the contract lets a creator change.
type EditForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      string `json:"reward"`
	Deadline    int64  `json:"deadline"`
}

// PlanEdit validates form and shapes the editChallenge call.
func PlanEdit(id uint64, form EditForm, now time.Time) (Call, error) {
	if id == 0 {
		return Call{}, invalid("id", "challenge id is required")
	}
	title := strings.TrimSpace(form.Title)
	if title == "" {
		return Call{}, invalid("title", "title is required")
	}
	description := strings.TrimSpace(form.Description)
	if description == "" {
		return Call{}, invalid("description", "description is required")
	}
	if form.Deadline <= now.Unix() {
		return Call{}, invalid("deadline", "deadline must be in the future")
	}
	reward, err := positiveAmount("reward", form.Reward)
	if err != nil {
		return Call{}, err
	}
	return Call{
		Method: MethodEdit,
		Args: []any{
			new(big.Int).SetUint64(id),
			title,
			description,
			reward,
			big.NewInt(form.Deadline),
		},
	}, nil
}

// PlanComplete shapes completeChallenge.
func PlanComplete(id uint64) (Call, error) { return idCall(MethodComplete, id) }

// PlanDelete shapes deleteChallenge.
func PlanDelete(id uint64) (Call, error) { return idCall(MethodDelete, id) }

// PlanRefund shapes refundCreator.
func PlanRefund(id uint64) (Call, error) { return idCall(MethodRefund, id) }

func idCall(method string, id uint64) (Call, error) {
	if id == 0 {
		return Call{}, invalid("id", "challenge id is required")
	}
	return Call{Method: method, Args: []any{new(big.Int).SetUint64(id)}}, nil
}

func positiveAmount(field, s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, invalid(field, "amount is required")
	}
	wei, err := ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if wei.Sign() <= 0 {
		return nil, invalid(field, "amount must be greater than zero")
	}
	return wei, nil
}

func normalizeCategory(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Categories[0], nil
	}
	for _, c := range Categories {
		if strings.EqualFold(c, s) {
			return c, nil
		}
	}
	return "", invalid("category", fmt.Sprintf("unknown category %q", s))
}

// Receipt is the outcome of a mined write. ChallengeID is set when the
// write created a challenge.
type Receipt struct {
	TxHash      string `json:"txHash"`
	Block       uint64 `json:"block"`
	ChallengeID uint64 `json:"challengeId,omitempty"`
}

// SentTx is a submitted transaction as seen on chain. Method is empty
// when the transaction does not call the challenge contract.
type SentTx struct {
	Hash        string
	From        string
	Method      string
	ChallengeID uint64
}
