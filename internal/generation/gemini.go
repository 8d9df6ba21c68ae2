package generation

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/tomashavel/faceforge/internal/config"
	"github.com/tomashavel/faceforge/internal/constants"
	"github.com/tomashavel/faceforge/internal/profile"
)

//go:embed prompts/analyze_image.txt
var analyzeImagePrompt string

//go:embed prompts/validate_output.txt
var validateOutputPrompt string

// Model identifiers double as pricing lookup keys.
const (
	GeminiTextModel  = "gemini-2.5-flash"
	GeminiImageModel = "gemini-2.5-flash-image-preview"
)

// GeminiClient implements Analyzer, Generator and Validator on top of the
// Gemini API. Analysis and validation run on the text model, generation on
// the image model.
type GeminiClient struct {
	client       *genai.Client
	usage        Usage
	textPricing  config.RequestPricing
	imagePricing config.ModelPricing
}

func NewGeminiClient(ctx context.Context, apiKey string, textPricing config.RequestPricing, imagePricing config.ModelPricing) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:       client,
		textPricing:  textPricing,
		imagePricing: imagePricing,
	}, nil
}

func (c *GeminiClient) Name() string {
	return GeminiImageModel
}

func (c *GeminiClient) GetUsage() *Usage {
	return &c.usage
}

func (c *GeminiClient) trackTokens(inputTokens, outputTokens int32, pricing config.RequestPricing) {
	c.usage.InputTokens += int(inputTokens)
	c.usage.OutputTokens += int(outputTokens)
	c.usage.TotalCost += float64(inputTokens) / 1_000_000 * pricing.Input
	c.usage.TotalCost += float64(outputTokens) / 1_000_000 * pricing.Output
}

// AnalyzeImage extracts an appearance analysis from one reference image.
// The model responds in JSON mode; a malformed payload is fed back once for
// self-correction before giving up.
func (c *GeminiClient) AnalyzeImage(ctx context.Context, imageData []byte, imageURL string) (*profile.Analysis, error) {
	const maxRetries = 3

	resizedData, err := ResizeImage(imageData, constants.MaxReferenceImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: analyzeImagePrompt},
				{InlineData: &genai.Blob{Data: resizedData, MIMEType: "image/jpeg"}},
			},
		},
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		result, err := c.client.Models.GenerateContent(ctx, GeminiTextModel, contents, genConfig)
		if err != nil {
			return nil, classifyGeminiError(err)
		}

		if result.UsageMetadata != nil {
			c.trackTokens(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount, c.textPricing)
		}

		content := result.Text()
		if content == "" {
			return nil, errors.New("no response from Gemini")
		}
		lastResponse = content

		var analysis profile.Analysis
		if err := json.Unmarshal([]byte(content), &analysis); err != nil {
			lastError = err
			contents = append(contents,
				&genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: content}},
				},
				&genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again.", err)}},
				},
			)
			continue
		}

		analysis.ImageURL = imageURL
		return &analysis, nil
	}

	return nil, fmt.Errorf("failed to parse analysis JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}

// Generate produces one candidate image from the prompt and references.
func (c *GeminiClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	parts := []*genai.Part{{Text: buildGeminiGenerationText(req)}}
	for _, ref := range req.References {
		if len(ref.Data) == 0 {
			continue
		}
		resized, err := ResizeImage(ref.Data, constants.MaxReferenceImageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to resize reference %s: %w", ref.URL, err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"},
		})
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	genConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	result, err := c.client.Models.GenerateContent(ctx, GeminiImageModel, contents, genConfig)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if result.UsageMetadata != nil {
		c.trackTokens(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount, c.imagePricing.Standard)
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				c.usage.Images++
				c.usage.TotalCost += c.imagePricing.Image
				return &GenerateResult{
					ImageBytes: part.InlineData.Data,
					MIMEType:   part.InlineData.MIMEType,
				}, nil
			}
		}
	}

	return nil, errors.New("no image in Gemini response")
}

// buildGeminiGenerationText renders the generation instruction, describing
// each reference so the model knows its role and weight.
func buildGeminiGenerationText(req *GenerateRequest) string {
	var b strings.Builder
	b.WriteString(req.Prompt)
	if len(req.References) > 0 {
		b.WriteString("\n\nReference images of the person follow, in order:")
		for i, ref := range req.References {
			fmt.Fprintf(&b, "\n%d. %s reference (weight %.2f)", i+1, ref.Type, ref.Weight)
		}
	}
	if req.AspectRatio != "" {
		fmt.Fprintf(&b, "\n\nAspect ratio: %s.", req.AspectRatio)
	}
	if req.Resolution != "" {
		fmt.Fprintf(&b, " Target resolution: %s.", req.Resolution)
	}
	return b.String()
}

// Score judges a candidate output against the identity profile. The profile
// text plus the best reference image give the judge its evidence.
func (c *GeminiClient) Score(ctx context.Context, candidate []byte, p *profile.AggregatedProfile, threshold float64) (*ScoreResult, error) {
	resized, err := ResizeImage(candidate, constants.MaxReferenceImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize candidate: %w", err)
	}

	profileJSON, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}

	userText := fmt.Sprintf("Acceptance threshold: %.2f\n\nIdentity profile:\n%s", threshold, profileJSON)
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: validateOutputPrompt + "\n\n" + userText},
				{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}},
			},
		},
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := c.client.Models.GenerateContent(ctx, GeminiTextModel, contents, genConfig)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if result.UsageMetadata != nil {
		c.trackTokens(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount, c.textPricing)
	}

	content := result.Text()
	if content == "" {
		return nil, errors.New("no response from Gemini")
	}

	var score ScoreResult
	if err := json.Unmarshal([]byte(content), &score); err != nil {
		return nil, fmt.Errorf("failed to parse score JSON: %w (response: %s)", err, content)
	}
	return &score, nil
}

// classifyGeminiError tags rate limits and server-side failures as
// transient so the orchestrator retries them.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return Transient(fmt.Errorf("gemini API error: %w", err))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(fmt.Errorf("gemini API timeout: %w", err))
	}
	return fmt.Errorf("gemini API error: %w", err)
}
