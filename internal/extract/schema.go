package extract

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

// issueSchemaJSON is the strict shape every extraction payload must match.
const issueSchemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["issues"],
  "properties": {
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["title", "description"],
        "properties": {
          "title": {
            "type": "string",
            "minLength": 1,
            "description": "Action-oriented title of at most 10 words, first word capitalized"
          },
          "description": {
            "type": "string",
            "minLength": 1,
            "description": "One or two sentences with expected behavior and acceptance criteria where relevant"
          }
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func issueSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(issueSchemaJSON))
	})
	return schema, schemaErr
}

// toolInputSchema returns the schema properties in the form the Messages API
// expects for a tool definition.
func toolInputSchema() (properties map[string]interface{}, required []string) {
	var doc struct {
		Properties map[string]interface{} `json:"properties"`
		Required   []string               `json:"required"`
	}
	// The schema is a compile-time constant; a decode failure is a programming error.
	if err := json.Unmarshal([]byte(issueSchemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("extract: invalid issue schema: %v", err))
	}
	return doc.Properties, doc.Required
}

// Validate checks a raw extraction payload against the issue schema and the
// title policy, returning the decoded collection only when everything holds.
func Validate(raw []byte) (types.IssueDraftCollection, error) {
	s, err := issueSchema()
	if err != nil {
		return types.IssueDraftCollection{}, fmt.Errorf("load issue schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		// Not parseable as JSON at all.
		return types.IssueDraftCollection{}, &types.SchemaValidationError{Violations: []string{err.Error()}}
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}
		return types.IssueDraftCollection{}, &types.SchemaValidationError{Violations: violations}
	}

	var out types.IssueDraftCollection
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.IssueDraftCollection{}, &types.SchemaValidationError{Violations: []string{err.Error()}}
	}

	var violations []string
	for i, d := range out.Issues {
		if err := d.Validate(); err != nil {
			violations = append(violations, fmt.Sprintf("issues.%d: %v", i, err))
		}
		if n := d.TitleWords(); n > types.MaxTitleWords {
			violations = append(violations, fmt.Sprintf("issues.%d.title: %d words, at most %d allowed", i, n, types.MaxTitleWords))
		}
	}
	if len(violations) > 0 {
		return types.IssueDraftCollection{}, &types.SchemaValidationError{Violations: violations}
	}
	if out.Issues == nil {
		out.Issues = []types.IssueDraft{}
	}
	return out, nil
}
