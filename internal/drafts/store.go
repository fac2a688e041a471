// Package drafts holds the editable list of issue drafts for one session.
//
// A Store is owned by a single goroutine (the CLI flow or a test); it does no
// locking. Indices are positions, not identities: after Delete every later
// entry shifts down by one.
package drafts

import "github.com/ticketdrop/ticketdrop/internal/types"

// Store is an ordered, in-memory collection of issue drafts.
type Store struct {
	issues []types.IssueDraft
}

// New returns a store seeded with a copy of the collection.
func New(c types.IssueDraftCollection) *Store {
	s := &Store{}
	s.Replace(c)
	return s
}

// Replace swaps the whole collection, typically after an extraction.
func (s *Store) Replace(c types.IssueDraftCollection) {
	s.issues = append([]types.IssueDraft{}, c.Issues...)
}

// Add appends a manually entered draft.
func (s *Store) Add(d types.IssueDraft) {
	s.issues = append(s.issues, d)
}

// Edit replaces the draft at index. Out-of-range indices are ignored and
// reported by returning false.
func (s *Store) Edit(index int, title, description string) bool {
	if !s.inRange(index) {
		return false
	}
	s.issues[index] = types.IssueDraft{Title: title, Description: description}
	return true
}

// Delete removes the draft at index and renumbers the rest.
// Out-of-range indices are ignored and reported by returning false.
func (s *Store) Delete(index int) bool {
	if !s.inRange(index) {
		return false
	}
	s.issues = append(s.issues[:index:index], s.issues[index+1:]...)
	return true
}

// IsUnchanged reports whether an edit at index would leave the draft as is.
// Out-of-range indices count as unchanged.
func (s *Store) IsUnchanged(index int, title, description string) bool {
	if !s.inRange(index) {
		return true
	}
	d := s.issues[index]
	return d.Title == title && d.Description == description
}

// Get returns the draft at index.
func (s *Store) Get(index int) (types.IssueDraft, bool) {
	if !s.inRange(index) {
		return types.IssueDraft{}, false
	}
	return s.issues[index], true
}

// Len returns the number of drafts.
func (s *Store) Len() int {
	return len(s.issues)
}

// Snapshot returns an immutable copy of the current collection.
func (s *Store) Snapshot() types.IssueDraftCollection {
	return types.NewCollection(s.issues...)
}

func (s *Store) inRange(index int) bool {
	return index >= 0 && index < len(s.issues)
}
