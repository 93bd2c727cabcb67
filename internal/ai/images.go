package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// GenerateImage renders one illustration and returns the raw image
// bytes from the model's inline response.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if prompt == "" {
		return nil, fmt.Errorf("image prompt is empty")
	}
	resp, err := g.imageModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("received an empty response from image model")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
			return blob.Data, nil
		}
	}
	return nil, fmt.Errorf("image model response contained no image data")
}
