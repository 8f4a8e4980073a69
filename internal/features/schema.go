package features

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/pkg/anthropic"
)

// ToolName is the single tool offered to the model.
const ToolName = "extract_features_and_use_cases"

const (
	systemPrompt = "You are an AI assistant that analyzes company websites to extract " +
		"1) key AI features (be sure they are specifically AI-related) and " +
		"2) notable business function specific use cases for the products offered by the company."

	userPromptPrefix = "Analyze the following website content and extract key AI features and notable use cases:\n\n"
)

// extractionSchema is the tool's input schema. The same document validates
// what the model sends back.
func extractionSchema() map[string]any {
	stringList := func(desc string) map[string]any {
		return map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": desc,
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key_ai_features":   stringList("List of key AI features mentioned on the website"),
			"notable_use_cases": stringList("List of notable use cases mentioned on the website"),
		},
		"required":             []any{"key_ai_features", "notable_use_cases"},
		"additionalProperties": false,
	}
}

// Tool returns the extraction tool definition.
func Tool() anthropic.Tool {
	return anthropic.Tool{
		Name:        ToolName,
		Description: "Extract key AI features and notable use cases from website content",
		InputSchema: extractionSchema(),
	}
}

var compiledSchema = mustCompile()

func mustCompile() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(extractionSchema()))
	if err != nil {
		panic(eris.Wrap(err, "features: compile extraction schema"))
	}
	return s
}

// ParseExtraction validates a tool call's JSON input against the
// extraction schema and decodes it.
func ParseExtraction(input json.RawMessage) (model.Extraction, error) {
	if len(input) == 0 {
		return model.Extraction{}, eris.Wrap(resilience.ErrMalformed, "features: empty tool input")
	}

	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(input))
	if err != nil {
		return model.Extraction{}, eris.Wrapf(resilience.ErrMalformed, "features: tool input: %v", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return model.Extraction{}, eris.Wrapf(resilience.ErrMalformed, "features: tool input failed validation: %s", strings.Join(errs, "; "))
	}

	var ext model.Extraction
	if err := json.Unmarshal(input, &ext); err != nil {
		return model.Extraction{}, eris.Wrapf(resilience.ErrMalformed, "features: decode tool input: %v", err)
	}
	return ext, nil
}
