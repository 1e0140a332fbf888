package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// analysisSchemaJSON is the structured-output contract for the analysis
// engine. The OpenAI client sends it as the response format and validates
// the returned payload against it before anything is persisted.
const analysisSchemaJSON = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["summary", "commentary", "findings"],
	"properties": {
		"summary": {"type": "string"},
		"commentary": {
			"type": "object",
			"additionalProperties": false,
			"required": ["overall_comment", "warning_comment", "advice"],
			"properties": {
				"overall_comment": {"type": "string"},
				"warning_comment": {"type": "string"},
				"advice": {"type": "string"}
			}
		},
		"findings": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["title", "clause", "reason", "reason_reference", "severity_level"],
				"properties": {
					"title": {"type": "string"},
					"clause": {"type": "string"},
					"reason": {"type": "string"},
					"reason_reference": {"type": "string"},
					"severity_level": {"type": "integer"}
				}
			}
		}
	}
}`

// analysisPayload mirrors analysisSchemaJSON.
type analysisPayload struct {
	Summary    string `json:"summary"`
	Commentary struct {
		OverallComment string `json:"overall_comment"`
		WarningComment string `json:"warning_comment"`
		Advice         string `json:"advice"`
	} `json:"commentary"`
	Findings []FindingData `json:"findings"`
}

// validateAnalysisPayload checks raw against the analysis schema and
// decodes it. A schema violation means the engine response is malformed.
func validateAnalysisPayload(raw []byte) (*analysisPayload, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis.json", bytes.NewReader([]byte(analysisSchemaJSON))); err != nil {
		return nil, fmt.Errorf("failed to load analysis schema: %w", err)
	}
	schema, err := compiler.Compile("analysis.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile analysis schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("analysis payload is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("analysis payload does not match schema: %w", err)
	}

	var payload analysisPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode analysis payload: %w", err)
	}
	return &payload, nil
}
