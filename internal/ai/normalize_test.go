package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWellFormedResponse(t *testing.T) {
	raw := `{
		"summary": "A person walks a dog through a park.",
		"objects": ["leash", "bench", "tree"],
		"people": ["adult walking a dog"],
		"actions": ["walking", "dog sniffing grass"],
		"text_content": [],
		"audio_context": {"likely_sounds": ["birds"], "likely_music": ""},
		"technical_aspects": {"camera_work": "handheld", "lighting": "daylight", "color_palette": "green"},
		"metadata": {"setting": "park", "era": "modern", "genre": "home video"}
	}`

	record := Normalize(raw)

	assert.Equal(t, "A person walks a dog through a park.", record.Summary)
	assert.JSONEq(t, `["leash", "bench", "tree"]`, record.Objects)
	assert.JSONEq(t, `["adult walking a dog"]`, record.People)
	assert.JSONEq(t, `["walking", "dog sniffing grass"]`, record.Actions)
	assert.JSONEq(t, `[]`, record.TextContent)
	assert.JSONEq(t, `{"likely_sounds": ["birds"], "likely_music": ""}`, record.AudioContext)
	assert.JSONEq(t, `{"setting": "park", "era": "modern", "genre": "home video"}`, record.Metadata)
}

func TestNormalizeNonJSONResponse(t *testing.T) {
	record := Normalize("not json")

	assert.Equal(t, "not json", record.Summary)
	assert.Equal(t, "[]", record.Objects)
	assert.Equal(t, "[]", record.People)
	assert.Equal(t, "[]", record.Actions)
	assert.Equal(t, "[]", record.TextContent)
	assert.Equal(t, "{}", record.AudioContext)
	assert.Equal(t, "{}", record.TechnicalAspects)
	assert.Equal(t, "{}", record.Metadata)
}

func TestNormalizeMarkdownFencedResponse(t *testing.T) {
	raw := "```json\n{\"summary\": \"Night driving footage.\", \"objects\": [\"car\"]}\n```"

	record := Normalize(raw)

	assert.Equal(t, "Night driving footage.", record.Summary)
	assert.JSONEq(t, `["car"]`, record.Objects)
	assert.Equal(t, "[]", record.People)
	assert.Equal(t, "{}", record.Metadata)
}

func TestNormalizeMissingFieldsDefaulted(t *testing.T) {
	record := Normalize(`{"summary": "Short clip."}`)

	assert.Equal(t, "Short clip.", record.Summary)
	assert.Equal(t, "[]", record.Objects)
	assert.Equal(t, "{}", record.AudioContext)
	assert.Equal(t, "{}", record.TechnicalAspects)
}

func TestNormalizeDoubleEncodedField(t *testing.T) {
	record := Normalize(`{"summary": "s", "objects": "[\"boat\"]"}`)

	assert.JSONEq(t, `["boat"]`, record.Objects)
}

func TestNormalizeNeverPanicsAndSerializes(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"{",
		"[1,2,3]",
		"null",
		`{"summary": 42}`,
	}

	for _, in := range inputs {
		record := Normalize(in)
		require.NotNil(t, record)

		_, err := json.Marshal(record)
		require.NoError(t, err)
	}
}
