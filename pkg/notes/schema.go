package notes

import (
	"encoding/json"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"github.com/invopop/jsonschema"
)

// ResultSchema returns the JSON Schema describing a list of NoteResult values
// as emitted by the CLI's JSON output.
func ResultSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect([]NoteResult{})
	schema.Title = "Clinical note results"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return out, nil
}
