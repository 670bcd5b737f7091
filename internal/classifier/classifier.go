// Package classifier implements the label-classification oracle on Vertex AI
// (Gemini). The engine treats its output as untrusted free text; this package
// only has to return the model's best-effort reply within the timeout.
package classifier

import (
	"context"
	"fmt"

	"github.com/jilsnshah/alignflow/internal/config"
	"google.golang.org/genai"
)

// Client calls a Gemini model to classify chat messages.
type Client struct {
	client *genai.Client
	model  string
	cfg    config.ClassifierConfig
}

// New creates a Vertex AI classifier from configuration.
func New(ctx context.Context, cfg config.ClassifierConfig) (*Client, error) {
	if cfg.Project == "" || cfg.Location == "" {
		return nil, fmt.Errorf("classifier: project and location are required")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("classifier: create client: %w", err)
	}

	return &Client{client: gc, model: cfg.Model, cfg: cfg}, nil
}

// Classify sends one message with the labelling instructions and returns the
// raw model reply. The call is bounded by the configured timeout on top of
// whatever deadline ctx already carries.
func (c *Client) Classify(ctx context.Context, input, instructions string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(input, genai.RoleUser),
	}

	// Deterministic settings; a classifier should not be creative.
	temp := float32(0.0)
	outputTokens := int32(16)

	gcfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   outputTokens,
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, gcfg)
	if err != nil {
		return "", fmt.Errorf("classifier: generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("classifier: model returned empty text")
	}
	return text, nil
}
