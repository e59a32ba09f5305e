// internal/workers/loan/loan-submit/validation.go
package loansubmit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// payloadSchema is what a draft must satisfy before it becomes reviewable.
// BVN and NIN are the 11-digit Nigerian identity numbers; phone numbers are
// local format (0 + 10 digits).
const payloadSchema = `{
	"type": "object",
	"required": ["fullName", "phone", "ministry", "employeeId", "bvn", "nin", "address", "amount", "period", "purpose", "accountType"],
	"properties": {
		"fullName":    {"type": "string", "minLength": 1},
		"phone":       {"type": "string", "pattern": "^0\\d{10}$"},
		"ministry":    {"type": "string", "minLength": 1},
		"employeeId":  {"type": "string", "minLength": 1},
		"bvn":         {"type": "string", "pattern": "^\\d{11}$"},
		"nin":         {"type": "string", "pattern": "^\\d{11}$"},
		"address":     {"type": "string", "minLength": 1},
		"amount":      {"type": "number", "minimum": 1},
		"period":      {"type": "integer", "minimum": 1, "maximum": 60},
		"purpose":     {"type": "string", "enum": ["medical", "consumption", "investment", "education", "others"]},
		"accountType": {"type": "string", "enum": ["current", "savings", "cooperate"]}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(payloadSchema)

// validatePayload checks the stored draft against the submission schema and
// returns a readable list of violations.
func validatePayload(payload *applicationPayload) error {
	doc, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
