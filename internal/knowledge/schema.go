package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fixTemplateSchemaJSON and errorNotesSchemaJSON are the wire contracts
// compiled once and reused to validate rows before they
// are persisted.
const fixTemplateSchemaJSON = `{
	"type": "object",
	"required": ["action"],
	"properties": {
		"action": {"enum": ["edit", "command"]},
		"edits": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["path", "before", "after"],
				"properties": {
					"path": {"type": "string"},
					"before": {"type": "string"},
					"after": {"type": "string"}
				}
			}
		},
		"command": {"type": "string"}
	}
}`

const errorNotesSchemaJSON = `{
	"type": "object",
	"properties": {
		"decisions": {"type": "array", "items": {"type": "string"}},
		"attempts": {"type": "array", "items": {"type": "string"}},
		"blockers": {"type": "array", "items": {"type": "string"}},
		"keyFindings": {"type": "array", "items": {"type": "string"}}
	}
}`

var fixTemplateSchema = mustCompile("fix_template.json", fixTemplateSchemaJSON)
var errorNotesSchema = mustCompile("error_notes.json", errorNotesSchemaJSON)

func mustCompile(name, schemaJSON string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("knowledge: invalid schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("knowledge: compile schema %s: %v", name, err))
	}
	return s
}

// ValidateFixTemplate reports whether templateJSON conforms to the
// FixTemplate wire contract before it is written by UpsertFixPattern.
func ValidateFixTemplate(templateJSON string) error {
	return validateAgainst(fixTemplateSchema, templateJSON)
}

// ValidateErrorNotes reports whether notesJSON conforms to the ErrorNotes
// wire contract before it is stored on an ErrorFact.
func ValidateErrorNotes(notesJSON string) error {
	return validateAgainst(errorNotesSchema, notesJSON)
}

func validateAgainst(schema *jsonschema.Schema, payload string) error {
	var v interface{}
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return fmt.Errorf("knowledge: invalid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("knowledge: schema validation failed: %w", err)
	}
	return nil
}
