package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

const decisionPrompt = `You are looking at a screenshot of the action area of a LinkedIn profile page.
Identify the connection degree badge (1st, 2nd, 3rd, out_of_network) and every actionable control.
Return ONLY a JSON object with this shape:
{
  "degree": "1st|2nd|3rd|out_of_network|unknown",
  "invite_pending": bool,
  "modal_open": bool,
  "controls": [
    {"label": "...", "kind": "connect|follow|message|pending|more|other", "x": <center x px>, "y": <center y px>, "confidence": 0.0-1.0, "in_overflow": bool}
  ],
  "recommended_action": "connect|follow|message|none"
}
Coordinates are viewport pixels of each control's center. A button reading "Pending" means an invite is already outstanding.`

// USD per 1M tokens, input/output. Unknown models are metered at zero cost.
var modelPricing = map[string][2]float64{
	"gemini-2.0-flash":      {0.10, 0.40},
	"gemini-1.5-flash":      {0.075, 0.30},
	"gemini-1.5-pro":        {1.25, 5.00},
	"gemini-2.5-flash":      {0.30, 2.50},
	"gemini-2.0-flash-lite": {0.075, 0.30},
}

// UsageRecorder persists one metering row per model call.
type UsageRecorder interface {
	RecordUsage(usage *models.AIUsageLog)
}

// Client asks a vision model to read a profile's action area. A failed call
// on the primary model is retried once on the fallback model.
type Client struct {
	genai    *genai.Client
	model    string
	fallback string
	usage    UsageRecorder
}

// NewClient creates the vision client.
func NewClient(ctx context.Context, apiKey, model, fallback string, usage UsageRecorder) (*Client, error) {
	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &Client{genai: gc, model: model, fallback: fallback, usage: usage}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.genai.Close()
}

// Decide sends the screenshot to the model and returns the sanitized
// decision. Every call is metered, including failures.
func (c *Client) Decide(ctx context.Context, screenshot []byte) (*Decision, error) {
	d, err := c.decideWith(ctx, c.model, screenshot)
	if err == nil {
		return d, nil
	}
	if c.fallback == "" || c.fallback == c.model {
		return nil, err
	}
	logrus.Warnf("Vision model %s failed (%v), retrying on %s", c.model, err, c.fallback)
	return c.decideWith(ctx, c.fallback, screenshot)
}

func (c *Client) decideWith(ctx context.Context, modelName string, screenshot []byte) (*Decision, error) {
	model := c.genai.GenerativeModel(modelName)
	model.GenerationConfig.ResponseMIMEType = "application/json"
	temp := float32(0.1)
	model.GenerationConfig.Temperature = &temp

	resp, err := model.GenerateContent(ctx,
		genai.ImageData("png", screenshot),
		genai.Text(decisionPrompt),
	)
	c.recordUsage(modelName, resp, err)
	if err != nil {
		return nil, fmt.Errorf("vision call on %s failed: %w", modelName, err)
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, fmt.Errorf("vision call on %s returned no text: %w", modelName, err)
	}
	return parseDecision([]byte(cleanJSONBlock(text)))
}

func (c *Client) recordUsage(modelName string, resp *genai.GenerateContentResponse, callErr error) {
	if c.usage == nil {
		return
	}
	usage := &models.AIUsageLog{
		Model:   modelName,
		Purpose: "profile_decision",
		Success: callErr == nil,
	}
	if callErr != nil {
		usage.Error = callErr.Error()
	}
	if resp != nil && resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		if price, ok := modelPricing[modelName]; ok {
			usage.CostUSD = float64(usage.PromptTokens)/1e6*price[0] +
				float64(usage.OutputTokens)/1e6*price[1]
		}
	}
	c.usage.RecordUsage(usage)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return b.String(), nil
}

// cleanJSONBlock strips markdown code fences the model sometimes wraps JSON
// in despite the response MIME type.
func cleanJSONBlock(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
