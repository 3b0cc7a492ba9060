package challenge

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func view(id uint64, title, category string, reward int64, deadline int64, cur uint64) View {
	return View{
		Record: Record{
			ID: id, Title: title, Description: "about " + title,
			Reward: big.NewInt(reward), Deadline: deadline,
			MaxParticipants: 10, CurrentParticipants: cur,
		},
		Category: category,
	}
}

func ids(views []View) []uint64 {
	out := make([]uint64, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestQueryApply(t *testing.T) {
	views := []View{
		view(1, "Morning run", "Lifestyle", 5, 300, 1),
		view(2, "Learn Go", "Education", 50, 100, 7),
		view(3, "Paint a mural", "Creative", 20, 200, 3),
		view(4, "Evening run", "Lifestyle", 10, 150, 0),
	}

	assert.Equal(t, []uint64{4, 3, 2, 1}, ids(Query{}.Apply(views)))
	assert.Equal(t, []uint64{2, 3, 4, 1}, ids(Query{Sort: SortReward}.Apply(views)))
	assert.Equal(t, []uint64{2, 3, 1, 4}, ids(Query{Sort: SortParticipants}.Apply(views)))
	assert.Equal(t, []uint64{2, 4, 3, 1}, ids(Query{Sort: SortEnding}.Apply(views)))

	assert.Equal(t, []uint64{4, 1}, ids(Query{Search: "RUN"}.Apply(views)))
	assert.Equal(t, []uint64{4, 1}, ids(Query{Category: "lifestyle"}.Apply(views)))
	assert.Len(t, Query{Category: CategoryAll}.Apply(views), 4)
	assert.Equal(t, []uint64{2}, ids(Query{Search: "about learn"}.Apply(views)))

	assert.Equal(t, uint64(1), views[0].ID)
}
