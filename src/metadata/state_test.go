package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromoteLeavesInputAlone(t *testing.T) {
	rec := record(2)
	st := State{
		Pending: []PendingEntry{entryFor(record(1), "x"), entryFor(rec, "y")},
		ByID:    map[string]Metadata{"1": {Category: "old"}},
	}
	i := st.Find(rec)
	assert.Equal(t, 0, i, "entries for identical records are indistinguishable")

	next := st.Promote(1, 2)
	assert.Len(t, st.Pending, 2)
	assert.Len(t, st.ByID, 1)
	assert.Len(t, next.Pending, 1)
	assert.Equal(t, "x", next.Pending[0].Category)
	assert.Equal(t, "y", next.ByID["2"].Category)
	assert.Equal(t, "old", next.ByID["1"].Category)
}

func TestMatches(t *testing.T) {
	rec := record(1)
	e := entryFor(rec, "x")
	assert.True(t, Matches(e, rec))

	e.Title = "Push-ups "
	assert.False(t, Matches(e, rec))
}
