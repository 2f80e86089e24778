package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) AnalyzeFrames(ctx context.Context, frames [][]byte, languageHint string) (*AnalysisRecord, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(buildPrompt(len(frames), languageHint)),
	}
	for _, frame := range frames {
		parts = append(parts, genai.NewPartFromBytes(frame, "image/jpeg"))
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze frames: %w", err)
	}

	responseText := result.Text()
	if responseText == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	return Normalize(responseText), nil
}
