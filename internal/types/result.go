package types

import "fmt"

// ImportStatus is the outcome of creating a single draft remotely.
type ImportStatus string

const (
	ImportCreated ImportStatus = "created"
	ImportFailed  ImportStatus = "failed"
)

// ImportResult reports what happened to one draft during an import.
// Created results carry the remote identifier; failed results carry a reason.
type ImportResult struct {
	Status     ImportStatus `json:"status"`
	Identifier string       `json:"identifier,omitempty"` // e.g. "ENG-123"
	Title      string       `json:"title"`
	URL        string       `json:"url,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

// Created builds a successful import result.
func Created(identifier, title string) ImportResult {
	return ImportResult{Status: ImportCreated, Identifier: identifier, Title: title}
}

// Failed builds a failed import result.
func Failed(title, reason string) ImportResult {
	return ImportResult{Status: ImportFailed, Title: title, Reason: reason}
}

// OK reports whether the draft was created.
func (r ImportResult) OK() bool {
	return r.Status == ImportCreated
}

// Message renders the user-facing notification for the result.
func (r ImportResult) Message() string {
	if r.OK() {
		return fmt.Sprintf("Created %s: %s", r.Identifier, r.Title)
	}
	return fmt.Sprintf("Failed to create issue: %s", r.Title)
}

// ImportSummary aggregates the results of one import run.
type ImportSummary struct {
	Team    RemoteTeam     `json:"team"`
	Results []ImportResult `json:"results"`
	Created int            `json:"created"`
	Failed  int            `json:"failed"`
	Total   int            `json:"total"`
}

// Record appends a result and updates the counters.
func (s *ImportSummary) Record(r ImportResult) {
	s.Results = append(s.Results, r)
	if r.OK() {
		s.Created++
	} else {
		s.Failed++
	}
}

// Err reports item failures: a TotalImportFailure when nothing was created,
// a PartialImportFailure when only some items failed, nil otherwise.
func (s *ImportSummary) Err() error {
	if s == nil || s.Failed == 0 {
		return nil
	}
	if s.Created == 0 {
		return &TotalImportFailure{Total: s.Total, Results: s.Results}
	}
	return &PartialImportFailure{Failed: s.Failed, Total: s.Total, Results: s.Results}
}

// Message renders the completion notification.
func (s *ImportSummary) Message() string {
	if s.Failed == 0 {
		return fmt.Sprintf("All %d issues have been imported to Linear", s.Total)
	}
	return fmt.Sprintf("Imported %d of %d issues to Linear", s.Created, s.Total)
}
