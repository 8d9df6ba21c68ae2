package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tomashavel/faceforge/internal/config"
)

const OpenAIImageModel = openai.ImageModelGPTImage1

// OpenAIGenerator is the alternative generation backend. It is prompt-only:
// reference images cannot be attached, so identity constraints arrive purely
// through the profile-derived prompt text.
type OpenAIGenerator struct {
	client  *openai.Client
	usage   Usage
	pricing config.ModelPricing
}

func NewOpenAIGenerator(apiKey string, pricing config.ModelPricing) *OpenAIGenerator {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIGenerator{
		client:  &client,
		pricing: pricing,
	}
}

func (g *OpenAIGenerator) Name() string {
	return OpenAIImageModel
}

func (g *OpenAIGenerator) GetUsage() *Usage {
	return &g.usage
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	size := openai.ImageGenerateParamsSize1024x1024
	switch req.Resolution {
	case "1024x1536":
		size = openai.ImageGenerateParamsSize1024x1536
	case "1536x1024":
		size = openai.ImageGenerateParamsSize1536x1024
	}

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  OpenAIImageModel,
		Prompt: req.Prompt,
		N:      openai.Int(1),
		Size:   size,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no image in OpenAI response")
	}

	imageBytes, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}

	g.usage.Images++
	g.usage.TotalCost += g.pricing.Image

	return &GenerateResult{
		ImageBytes: imageBytes,
		MIMEType:   "image/png",
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return Transient(fmt.Errorf("OpenAI API error: %w", err))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(fmt.Errorf("OpenAI API timeout: %w", err))
	}
	return fmt.Errorf("OpenAI API error: %w", err)
}
