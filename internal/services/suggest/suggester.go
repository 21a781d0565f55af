// Package suggest proposes repairs for addresses the normalizer could
// not parse, using the Gemini API. Suggestions are advisory only; a user
// has to accept one before anything is written back.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/scoutdesk/scoutdesk/internal/models"
)

// Suggestion is one proposed structured reading of a raw address
type Suggestion struct {
	models.StructuredAddress
	Confidence string `json:"confidence"` // high, medium, low
	Note       string `json:"note,omitempty"`
}

// Suggester wraps a Gemini model configured for address repair
type Suggester struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// New creates a Gemini-backed suggester
func New(ctx context.Context, apiKey, modelName string) (*Suggester, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if modelName == "" {
		modelName = "gemini-3-flash-preview"
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"

	return &Suggester{client: client, model: model}, nil
}

// Close closes the underlying client connection
func (s *Suggester) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

const promptTemplate = `You are an address normalization assistant for a film production
location database. Parse the raw address below into a JSON array of up to
3 candidate readings, best first. Each element must have exactly these
keys: address1, address2, city, state, zip, country, confidence, note.
Use 2-letter US state codes and ISO-3166-1 alpha-2 country codes.
confidence is one of "high", "medium", "low". Leave unknown fields as
empty strings. Do not invent house numbers or zip codes.

Raw address:
%s`

// Repair asks the model for candidate structured readings of a raw
// address string
func (s *Suggester) Repair(ctx context.Context, raw string) ([]Suggestion, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("raw address is empty")
	}

	resp, err := s.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(promptTemplate, raw)))
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text += string(txt)
		}
	}

	var out []Suggestion
	if err := json.Unmarshal([]byte(stripFences(text)), &out); err != nil {
		return nil, fmt.Errorf("unparseable suggestion payload: %w", err)
	}
	return out, nil
}

// stripFences removes a markdown code fence the model sometimes wraps
// JSON in despite the response MIME type
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
