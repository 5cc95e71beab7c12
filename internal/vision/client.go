package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/majicagent/photo-pipeline/internal/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const (
	classifyModelName = "gemini-1.5-flash"
	enhanceModelName  = "gemini-2.5-flash-image-preview"
)

// Client wraps the Gemini API for the two vision operations the pipeline
// needs: free scene classification and paid image enhancement.
type Client struct {
	client *genai.Client
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Classify labels a real-estate image as exterior, empty_interior, or
// cluttered_interior. Errors and unrecognized labels are reported to the
// caller; the pipeline applies the exterior fallback explicitly so the
// fallback path stays visible.
func (c *Client) Classify(ctx context.Context, imageData []byte) (string, error) {
	model := c.client.GenerativeModel(classifyModelName)

	resp, err := model.GenerateContent(ctx,
		genai.Text(classificationPrompt),
		genai.ImageData("jpeg", imageData),
	)
	if err != nil {
		return "", fmt.Errorf("failed to classify image: %w", wrapAPIError(err))
	}

	text := firstText(resp)
	classification := strings.Trim(strings.ToLower(strings.TrimSpace(text)), `'"`)
	if !models.ValidClassification(classification) {
		return "", fmt.Errorf("unrecognized classification %q", classification)
	}

	log.Debug().Str("classification", classification).Msg("Image classified")
	return classification, nil
}

// Enhance generates the staged/enhanced version of an image. This is the
// paid call: every invocation counts against the photo's attempt budget.
func (c *Client) Enhance(ctx context.Context, imageData []byte, classification, roomHint, customPrompt string) ([]byte, error) {
	model := c.client.GenerativeModel(enhanceModelName)
	prompt := enhancementPrompt(classification, roomHint, customPrompt)

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.ImageData("jpeg", imageData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enhance image: %w", wrapAPIError(err))
	}

	if enhanced := firstImage(resp); enhanced != nil {
		return enhanced, nil
	}

	if text := firstText(resp); text != "" {
		log.Debug().Str("response_text", truncate(text, 100)).Msg("Enhancement returned text instead of image")
	}
	return nil, ErrNoImage
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				return string(text)
			}
		}
	}
	return ""
}

func firstImage(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
				return blob.Data
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
