package types

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed or missing input. The operation that
// returned it was not attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ExtractionError reports a network or model failure while extracting issues.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SchemaValidationError reports an extraction payload that does not match the
// issue schema. Nothing from the payload may be used.
type SchemaValidationError struct {
	Violations []string
}

func (e *SchemaValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "extraction response does not match the issue schema"
	}
	return fmt.Sprintf("extraction response does not match the issue schema: %s", strings.Join(e.Violations, "; "))
}

// GatewayError reports a transport or remote API failure on an upstream call.
// StatusCode is the upstream HTTP status, or 0 when no response was received.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("upstream request failed")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PartialImportFailure reports that some drafts failed to import. Every
// failure is also present in Results.
type PartialImportFailure struct {
	Failed  int
	Total   int
	Results []ImportResult
}

func (e *PartialImportFailure) Error() string {
	return fmt.Sprintf("%d of %d issues failed to import", e.Failed, e.Total)
}

// FailedResults returns only the failed entries.
func (e *PartialImportFailure) FailedResults() []ImportResult {
	var out []ImportResult
	for _, r := range e.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// TotalImportFailure reports that every draft of an import failed.
type TotalImportFailure struct {
	Total   int
	Results []ImportResult
}

func (e *TotalImportFailure) Error() string {
	return fmt.Sprintf("all %d issues failed to import", e.Total)
}

// TeamResolutionFailure aborts an import before any issue is created.
type TeamResolutionFailure struct {
	Err error
}

func (e *TeamResolutionFailure) Error() string {
	if e.Err == nil {
		return "Unable to resolve a Linear team for this account."
	}
	return fmt.Sprintf("Unable to resolve a Linear team for this account: %v", e.Err)
}

func (e *TeamResolutionFailure) Unwrap() error { return e.Err }
