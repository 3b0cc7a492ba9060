package challenge

import (
	"math"
	"math/big"
	"strings"
)

// IsValid filters out the placeholder rows the contract returns for
// deleted or never-used ids.
func IsValid(rec Record) bool {
	return rec.ID > 0 && strings.TrimSpace(rec.Title) != "" && rec.Deadline > 0
}

// Normalize coerces a raw contract row into a Record. Any field that does
// not fit its Go type makes the whole row unusable.
func Normalize(raw RawRecord) (Record, bool) {
	id, ok := toUint64(raw.ID)
	if !ok {
		return Record{}, false
	}
	deadline, ok := toUint64(raw.Deadline)
	if !ok || deadline > math.MaxInt64 {
		return Record{}, false
	}
	maxP, ok := toUint64(raw.MaxParticipants)
	if !ok {
		return Record{}, false
	}
	curP, ok := toUint64(raw.CurrentParticipants)
	if !ok {
		return Record{}, false
	}
	reward := new(big.Int)
	if raw.Reward != nil {
		if raw.Reward.Sign() < 0 {
			return Record{}, false
		}
		reward.Set(raw.Reward)
	}
	return Record{
		ID:                  id,
		Title:               raw.Title,
		Description:         raw.Description,
		CreatorAddress:      raw.CreatorAddress,
		CreatorNickname:     raw.CreatorNickname,
		Reward:              reward,
		Deadline:            int64(deadline),
		MaxParticipants:     maxP,
		CurrentParticipants: curP,
	}, true
}

// FilterValid is the single ingestion point for contract rows: every list,
// count and aggregate is computed from its output.
func FilterValid(raws []RawRecord) []Record {
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		rec, ok := Normalize(raw)
		if !ok || !IsValid(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ValidRecord normalises and validates a single row.
func ValidRecord(raw RawRecord) (Record, bool) {
	rec, ok := Normalize(raw)
	if !ok || !IsValid(rec) {
		return Record{}, false
	}
	return rec, true
}

func toUint64(v *big.Int) (uint64, bool) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}
