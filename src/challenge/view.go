package challenge

import (
	"math/big"
	"strings"
)

// DefaultSymbol is the currency suffix used when none is configured.
const DefaultSymbol = "ETH"

// Builder composes views. The zero value formats amounts without a
// currency suffix.
type Builder struct {
	Symbol string
}

// BuildView composes a view with the default currency symbol.
func BuildView(rec Record, meta *Metadata, nowSeconds int64) View {
	return Builder{Symbol: DefaultSymbol}.Build(rec, meta, nowSeconds)
}

// Build copies rec, overlays meta when present and derives the
// time-dependent fields. Neither input is modified.
func (b Builder) Build(rec Record, meta *Metadata, nowSeconds int64) View {
	reward := new(big.Int)
	if rec.Reward != nil {
		reward.Set(rec.Reward)
	}
	rec.Reward = reward

	v := View{
		Record:           rec,
		Status:           DeriveStatus(rec, nowSeconds),
		TimeLeft:         TimeLeft(rec.Deadline, nowSeconds),
		CreatorDisplay:   creatorDisplay(rec),
		RewardWei:        reward.String(),
		RewardDisplay:    FormatAmount(reward, b.Symbol),
		TotalPoolDisplay: FormatAmount(TotalCost(reward, rec.MaxParticipants), b.Symbol),
		RefundableAt:     ClaimDeadline(rec).Unix(),
	}
	if meta != nil {
		v.HasMetadata = true
		v.Category = meta.Category
		v.ProofType = meta.ProofType
		v.Requirements = meta.Requirements
	}
	return v
}

func creatorDisplay(rec Record) string {
	if nick := strings.TrimSpace(rec.CreatorNickname); nick != "" {
		return nick
	}
	return DefaultNickname
}

// Dashboard summarises one address's activity.
type Dashboard struct {
	Address             string `json:"address"`
	Created             []View `json:"created"`
	Completed           []View `json:"completed"`
	CreatedCount        int    `json:"challengesCreated"`
	CompletedCount      int    `json:"challengesCompleted"`
	ActiveCreated       int    `json:"activeCreated"`
	RefundableCreated   int    `json:"refundableCreated"`
	TotalParticipants   uint64 `json:"totalParticipants"`
	TotalRewardsWei     string `json:"totalRewards"`
	TotalRewardsDisplay string `json:"totalRewardsDisplay"`
	// PendingCreates counts creates whose metadata is still waiting for
	// the contract to assign an id.
	PendingCreates int `json:"pendingCreates"`
}

// BuildDashboard aggregates views that already passed the validity filter.
func (b Builder) BuildDashboard(address string, created, completed []View) Dashboard {
	d := Dashboard{
		Address:        address,
		Created:        created,
		Completed:      completed,
		CreatedCount:   len(created),
		CompletedCount: len(completed),
	}
	for _, v := range created {
		d.TotalParticipants += v.CurrentParticipants
		switch v.Status {
		case StatusActive:
			d.ActiveCreated++
		case StatusRefundable:
			d.RefundableCreated++
		}
	}
	earned := new(big.Int)
	for _, v := range completed {
		if v.Reward != nil {
			earned.Add(earned, v.Reward)
		}
	}
	d.TotalRewardsWei = earned.String()
	d.TotalRewardsDisplay = FormatAmount(earned, b.Symbol)
	if d.Created == nil {
		d.Created = []View{}
	}
	if d.Completed == nil {
		d.Completed = []View{}
	}
	return d
}
