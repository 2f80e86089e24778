package ai

import (
	"strings"

	"github.com/tidwall/gjson"
)

const (
	emptyArray  = "[]"
	emptyObject = "{}"
)

// Normalize converts raw provider response text into an AnalysisRecord.
// A response that is not parsable JSON degrades gracefully: the raw text
// becomes the summary and every structured field gets its empty
// serialization. Normalize never fails.
func Normalize(raw string) *AnalysisRecord {
	candidate := extractJSON(raw)

	if candidate == "" || !gjson.Valid(candidate) {
		return degraded(raw)
	}

	root := gjson.Parse(candidate)
	if !root.IsObject() {
		return degraded(raw)
	}

	record := &AnalysisRecord{
		Summary:          root.Get("summary").String(),
		Objects:          structured(root, "objects", emptyArray),
		People:           structured(root, "people", emptyArray),
		Actions:          structured(root, "actions", emptyArray),
		TextContent:      structured(root, "text_content", emptyArray),
		AudioContext:     structured(root, "audio_context", emptyObject),
		TechnicalAspects: structured(root, "technical_aspects", emptyObject),
		Metadata:         structured(root, "metadata", emptyObject),
	}

	if record.Summary == "" {
		record.Summary = strings.TrimSpace(raw)
	}

	return record
}

func degraded(raw string) *AnalysisRecord {
	return &AnalysisRecord{
		Summary:          strings.TrimSpace(raw),
		Objects:          emptyArray,
		People:           emptyArray,
		Actions:          emptyArray,
		TextContent:      emptyArray,
		AudioContext:     emptyObject,
		TechnicalAspects: emptyObject,
		Metadata:         emptyObject,
	}
}

func structured(root gjson.Result, key, fallback string) string {
	field := root.Get(key)
	if !field.Exists() {
		return fallback
	}

	switch {
	case field.IsArray() || field.IsObject():
		return field.Raw
	case field.Type == gjson.String:
		// Providers occasionally double-encode sub-documents.
		if inner := field.String(); gjson.Valid(inner) && (gjson.Parse(inner).IsArray() || gjson.Parse(inner).IsObject()) {
			return inner
		}
		return fallback
	default:
		return fallback
	}
}

// extractJSON pulls the outermost JSON object out of response text that
// may be wrapped in markdown fences or prose.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return raw[start : end+1]
}
