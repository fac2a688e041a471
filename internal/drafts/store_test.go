package drafts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

func abc() *Store {
	return New(types.NewCollection(
		types.IssueDraft{Title: "A", Description: "a"},
		types.IssueDraft{Title: "B", Description: "b"},
		types.IssueDraft{Title: "C", Description: "c"},
	))
}

func TestDeleteThenEditRenumbers(t *testing.T) {
	s := abc()

	if !s.Delete(1) {
		t.Fatal("Delete(1) = false, want true")
	}
	assert.Equal(t, []string{"A", "C"}, s.Snapshot().Titles())

	if !s.Edit(1, "X", "Y") {
		t.Fatal("Edit(1) = false, want true")
	}
	assert.Equal(t, []types.IssueDraft{
		{Title: "A", Description: "a"},
		{Title: "X", Description: "Y"},
	}, s.Snapshot().Issues)
}

func TestOutOfRangeIsNoop(t *testing.T) {
	for _, idx := range []int{-1, 3, 42} {
		s := abc()
		before := s.Snapshot()

		if s.Edit(idx, "X", "Y") {
			t.Errorf("Edit(%d) = true, want false", idx)
		}
		if s.Delete(idx) {
			t.Errorf("Delete(%d) = true, want false", idx)
		}
		assert.Equal(t, before, s.Snapshot())
	}
}

func TestDeleteLastAndFirst(t *testing.T) {
	s := abc()
	s.Delete(2)
	s.Delete(0)
	assert.Equal(t, []string{"B"}, s.Snapshot().Titles())
	s.Delete(0)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Delete(0))
}

func TestSnapshotIsolation(t *testing.T) {
	s := abc()
	snap := s.Snapshot()

	s.Edit(0, "changed", "changed")
	s.Delete(1)
	s.Add(types.IssueDraft{Title: "D", Description: "d"})

	assert.Equal(t, []string{"A", "B", "C"}, snap.Titles())
}

func TestReplaceCopiesInput(t *testing.T) {
	c := types.NewCollection(types.IssueDraft{Title: "A", Description: "a"})
	s := New(c)
	c.Issues[0].Title = "mutated"

	d, ok := s.Get(0)
	assert.True(t, ok)
	assert.Equal(t, "A", d.Title)
}

func TestIsUnchanged(t *testing.T) {
	s := abc()
	assert.True(t, s.IsUnchanged(0, "A", "a"))
	assert.False(t, s.IsUnchanged(0, "A", "changed"))
	assert.True(t, s.IsUnchanged(9, "whatever", ""))
}

func TestDuplicatesAllowed(t *testing.T) {
	s := New(types.IssueDraftCollection{})
	d := types.IssueDraft{Title: "Same", Description: "same"}
	s.Add(d)
	s.Add(d)
	assert.Equal(t, 2, s.Len())
}
