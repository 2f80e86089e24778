package ai

import (
	"context"
	"fmt"
	"strings"
)

// AnalysisRecord is the structured scene analysis returned by the
// multimodal provider. Summary is plain text; the remaining fields hold
// serialized JSON sub-documents that callers store and retrieve whole.
type AnalysisRecord struct {
	Summary          string `json:"summary"`
	Objects          string `json:"objects"`
	People           string `json:"people"`
	Actions          string `json:"actions"`
	TextContent      string `json:"text_content"`
	AudioContext     string `json:"audio_context"`
	TechnicalAspects string `json:"technical_aspects"`
	Metadata         string `json:"metadata"`
}

// Client analyzes a temporally ordered set of JPEG frames.
type Client interface {
	AnalyzeFrames(ctx context.Context, frames [][]byte, languageHint string) (*AnalysisRecord, error)
}

type Config struct {
	Provider     string
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string
}

// NewClient selects a provider from config. OpenAI-compatible endpoints
// and Gemini are supported.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but no API key configured")
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider selected but no API key configured")
		}
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q", cfg.Provider)
	}
}

func buildPrompt(frameCount int, languageHint string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are given %d frames sampled in temporal order from a single video.\n", frameCount)
	b.WriteString("Analyze the video's visual content and respond with a single JSON object with exactly these fields:\n")
	b.WriteString(`{
  "summary": "2-4 sentence description of the video content",
  "objects": ["notable objects and props"],
  "people": ["visible people with brief descriptions"],
  "actions": ["actions and events occurring across the frames"],
  "text_content": ["any visible text, titles or captions"],
  "audio_context": {"likely_sounds": [], "likely_music": ""},
  "technical_aspects": {"camera_work": "", "lighting": "", "color_palette": ""},
  "metadata": {"setting": "", "era": "", "genre": ""}
}` + "\n")
	b.WriteString("Respond with the JSON object only, no surrounding prose.")

	if languageHint != "" {
		fmt.Fprintf(&b, "\nWrite all text values in %s.", languageHint)
	}

	return b.String()
}
