package challenge

import (
	"cmp"
	"slices"
	"strings"
)

// Sort orders offered on the listing.
const (
	SortNewest       = "newest"
	SortReward       = "reward"
	SortParticipants = "participants"
	SortEnding       = "ending"
)

// CategoryAll disables category filtering.
const CategoryAll = "All"

// Query narrows and orders a listing.
type Query struct {
	Search   string
	Category string
	Sort     string
}

// Apply returns the views matching q in q's order. The input slice is
// left untouched.
func (q Query) Apply(views []View) []View {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	category := strings.TrimSpace(q.Category)
	if strings.EqualFold(category, CategoryAll) {
		category = ""
	}

	out := make([]View, 0, len(views))
	for _, v := range views {
		if category != "" && !strings.EqualFold(v.Category, category) {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(v.Title), term) &&
			!strings.Contains(strings.ToLower(v.Description), term) {
			continue
		}
		out = append(out, v)
	}

	slices.SortStableFunc(out, q.compare)
	return out
}

func (q Query) compare(a, b View) int {
	var c int
	switch q.Sort {
	case SortReward:
		c = -compareWei(a, b)
	case SortParticipants:
		c = -cmp.Compare(a.CurrentParticipants, b.CurrentParticipants)
	case SortEnding:
		c = cmp.Compare(a.Deadline, b.Deadline)
	}
	if c != 0 {
		return c
	}
	return -cmp.Compare(a.ID, b.ID)
}

func compareWei(a, b View) int {
	switch {
	case a.Reward == nil && b.Reward == nil:
		return 0
	case a.Reward == nil:
		return -1
	case b.Reward == nil:
		return 1
	}
	return a.Reward.Cmp(b.Reward)
}
