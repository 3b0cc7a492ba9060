// Package metadata joins on-chain challenges with the descriptive fields
// the contract does not store (category, proof type, requirements).
//
// A creator's metadata is written as a pending entry before the create
// transaction is sent, because the id is only known afterwards. The first
// time a matching record is read back, the entry is promoted to the by-id
// map and removed from the pending list.
package metadata

import (
	"strconv"
	"strings"

	"github.com/stake-plus/base-buddies/src/challenge"
)

// Store keys.
const (
	PendingKey = "challengeMetaPending"
	ByIDKey    = "challengeMetaById"
)

type Metadata = challenge.Metadata

// PendingEntry is metadata plus the exact values sent in the create call.
type PendingEntry struct {
	Metadata
	Title           string `json:"title"`
	Description     string `json:"description"`
	CreatorAddress  string `json:"creatorAddress"`
	Deadline        int64  `json:"deadline"`
	MaxParticipants uint64 `json:"maxParticipants"`
}

// Matches reports whether entry describes rec. Text and numbers compare
// exactly; the creator address ignores case.
func Matches(entry PendingEntry, rec challenge.Record) bool {
	return entry.Title == rec.Title &&
		entry.Description == rec.Description &&
		entry.Deadline == rec.Deadline &&
		entry.MaxParticipants == rec.MaxParticipants &&
		strings.EqualFold(entry.CreatorAddress, rec.CreatorAddress)
}

// State is the decoded contents of both keys.
type State struct {
	Pending []PendingEntry
	ByID    map[string]Metadata
}

func idKey(id uint64) string { return strconv.FormatUint(id, 10) }

// Lookup returns the promoted metadata for id.
func (s State) Lookup(id uint64) (Metadata, bool) {
	m, ok := s.ByID[idKey(id)]
	return m, ok
}

// Find returns the index of the first pending entry matching rec, or -1.
// Structurally identical entries are indistinguishable; the earliest wins.
func (s State) Find(rec challenge.Record) int {
	for i, e := range s.Pending {
		if Matches(e, rec) {
			return i
		}
	}
	return -1
}

// Promote moves pending entry i to ByID under id and returns the new
// state. s is not modified.
func (s State) Promote(i int, id uint64) State {
	out := State{
		Pending: make([]PendingEntry, 0, len(s.Pending)),
		ByID:    make(map[string]Metadata, len(s.ByID)+1),
	}
	for k, v := range s.ByID {
		out.ByID[k] = v
	}
	for j, e := range s.Pending {
		if j == i {
			out.ByID[idKey(id)] = e.Metadata
			continue
		}
		out.Pending = append(out.Pending, e)
	}
	return out
}
