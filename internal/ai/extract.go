package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"callscreen/internal/types"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"
)

// profileJSONSchema describes the shape of an extraction response. Every
// field is optional and scalars may be null; the response only has to be an
// object whose present fields have the right types.
const profileJSONSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": ["string", "null"]},
    "email": {"type": ["string", "null"]},
    "phone": {"type": ["string", "null"]},
    "education": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "degree": {"type": ["string", "null"]},
          "institution": {"type": ["string", "null"]},
          "dates": {"type": ["string", "null"]}
        }
      }
    },
    "experience": {"type": ["array", "null"], "items": {"type": ["string", "null"]}},
    "skills": {"type": ["array", "null"], "items": {"type": ["string", "null"]}}
  }
}`

var profileSchema = gojsonschema.NewStringLoader(profileJSONSchema)

// profileResponseSchema mirrors profileJSONSchema for the Gemini structured
// output mode.
var profileResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":  {Type: genai.TypeString},
		"email": {Type: genai.TypeString},
		"phone": {Type: genai.TypeString},
		"education": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"degree":      {Type: genai.TypeString},
					"institution": {Type: genai.TypeString},
					"dates":       {Type: genai.TypeString},
				},
			},
		},
		"experience": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"skills":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
}

// CleanJSONBlock removes markdown code fences models wrap JSON in even when
// asked not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a language identifier on the first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	return text
}

// DecodeProfile turns a raw extraction response into a profile. The text is
// unfenced, validated against the profile schema and decoded with
// mapstructure. Missing or null fields stay empty and education entries
// without a degree are dropped.
func DecodeProfile(raw string) (types.ExtractedProfile, error) {
	var profile types.ExtractedProfile

	cleaned := CleanJSONBlock(raw)
	if cleaned == "" {
		return profile, fmt.Errorf("empty extraction response")
	}

	result, err := gojsonschema.Validate(profileSchema, gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return profile, fmt.Errorf("extraction response is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var violations []string
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}
		return profile, fmt.Errorf("extraction response violates schema: %s", strings.Join(violations, "; "))
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return profile, fmt.Errorf("failed to decode extraction response: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &profile,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return profile, err
	}
	if err := decoder.Decode(fields); err != nil {
		return profile, fmt.Errorf("failed to map extraction response: %w", err)
	}
	profile.Education = withDegree(profile.Education)
	profile.Experience = nonEmpty(profile.Experience)
	profile.Skills = nonEmpty(profile.Skills)
	return profile, nil
}

func withDegree(entries []types.EducationEntry) []types.EducationEntry {
	out := entries[:0]
	for _, e := range entries {
		if strings.TrimSpace(e.Degree) != "" {
			out = append(out, e)
		}
	}
	return out
}

func nonEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
