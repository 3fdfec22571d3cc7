package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/twogether/internal/domain"
)

type VertexClient struct {
	client    *genai.Client
	modelName string
}

// NewVertexClient creates an LLMClient based on Vertex AI (Gemini).
func NewVertexClient(ctx context.Context, projectID, location, modelName string) (*VertexClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("vertex: project and location must be set")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// GenerateJSON implements domain.LLMClient using Vertex AI.
func (v *VertexClient) GenerateJSON(ctx context.Context, genCtx domain.GenerationContext) (string, error) {
	prompt, err := BuildPrompt(genCtx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt.User, genai.RoleUser),
	}

	temp := float32(0.8)
	topP := float32(0.9)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   int32(4096),
		ResponseMIMEType:  "application/json",
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("vertex returned empty text")
	}
	return text, nil
}
