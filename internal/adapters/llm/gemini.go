package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/wallybot/wally-agent/internal/domain"
)

// GeminiClient implements both domain.IntentModel and domain.Transcriber on
// top of Vertex AI (Gemini) via the genai SDK. One multimodal model covers
// the structured-intent call and the speech-to-text call.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

type GeminiConfig struct {
	ProjectID string
	Location  string
	ModelName string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("gemini client needs a GCP project and location")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: cfg.ModelName,
	}, nil
}

// ClassifyIntent implements domain.IntentModel. Errors here are expected to
// be absorbed by the resolver's fallback, never surfaced to the user.
func (g *GeminiClient) ClassifyIntent(ctx context.Context, command string) (domain.Intent, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(command, genai.RoleUser),
	}

	temp := float32(0.3)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(intentInstruction, genai.RoleUser),
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return domain.Intent{}, fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return domain.Intent{}, fmt.Errorf("gemini returned empty text")
	}

	return parseIntentResponse(text)
}

// Transcribe implements domain.Transcriber. The audio format is whatever the
// client recorded; the model negotiates it from the MIME type.
func (g *GeminiClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (domain.Transcript, error) {
	if len(audio) == 0 {
		return domain.Transcript{}, &domain.TranscriptionError{Err: fmt.Errorf("empty audio payload")}
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(transcribeInstruction),
		genai.NewPartFromBytes(audio, mimeType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return domain.Transcript{}, &domain.TranscriptionError{Err: err}
	}

	tr, err := parseTranscriptResponse(res.Text())
	if err != nil {
		return domain.Transcript{}, &domain.TranscriptionError{Err: err}
	}
	return tr, nil
}
