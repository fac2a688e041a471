// Package types defines the core data structures shared by the ticketdrop
// import pipeline.
package types

import (
	"fmt"
	"strings"
)

// MaxTitleWords bounds the length of an extracted issue title.
const MaxTitleWords = 10

// IssueDraft is a locally held issue candidate that has not been created
// remotely yet. Drafts have no identity; their position in a collection is
// their only handle.
type IssueDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate checks the draft has the fields required to create a remote issue.
func (d IssueDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

// TitleWords returns the number of whitespace separated words in the title.
func (d IssueDraft) TitleWords() int {
	return len(strings.Fields(d.Title))
}

// IssueDraftCollection is the ordered set of drafts owned by a session.
// Insertion order is display order and import order.
type IssueDraftCollection struct {
	Issues []IssueDraft `json:"issues"`
}

// NewCollection builds a collection from the given drafts (copied).
func NewCollection(drafts ...IssueDraft) IssueDraftCollection {
	return IssueDraftCollection{Issues: append([]IssueDraft{}, drafts...)}
}

// Len returns the number of drafts.
func (c IssueDraftCollection) Len() int {
	return len(c.Issues)
}

// Clone returns a copy that shares no backing storage with c.
func (c IssueDraftCollection) Clone() IssueDraftCollection {
	return IssueDraftCollection{Issues: append([]IssueDraft{}, c.Issues...)}
}

// Titles returns the draft titles in order.
func (c IssueDraftCollection) Titles() []string {
	titles := make([]string, len(c.Issues))
	for i, d := range c.Issues {
		titles[i] = d.Title
	}
	return titles
}

// RemoteTeam is the tracker container that owns created issues.
type RemoteTeam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
