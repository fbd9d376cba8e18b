package summarize

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// PlatformEngine is the platform-AI tier, backed by Gemini.
type PlatformEngine struct {
	apiKey string
	model  string
}

// NewPlatformEngine creates the platform tier. An empty API key leaves the
// tier unavailable.
func NewPlatformEngine(apiKey, modelName string) *PlatformEngine {
	return &PlatformEngine{apiKey: apiKey, model: modelName}
}

func (e *PlatformEngine) Tier() model.EngineTier { return model.TierPlatform }
func (e *PlatformEngine) Name() string           { return "gemini:" + e.model }

func (e *PlatformEngine) Phase() string {
	return "Asking platform intelligence for a summary"
}

func (e *PlatformEngine) Available(ctx context.Context) bool {
	return e.apiKey != ""
}

func (e *PlatformEngine) Summarize(ctx context.Context, t *model.Transcript, lang string, onProgress ProgressFunc) (*model.SummaryResult, error) {
	report(onProgress, 0.1)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, model.NewSummarizationFailed(model.TierPlatform, "create client", err)
	}
	report(onProgress, 0.2)

	prompt := systemPrompt + "\n\n" + buildPrompt(lang, t.Text)
	result, err := client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.NewCancelled(model.StateSummarizing)
		}
		return nil, model.NewSummarizationFailed(model.TierPlatform, "generate content", err)
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, model.NewSummarizationFailed(model.TierPlatform, "empty response", errors.New("no candidates"))
	}
	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	report(onProgress, 0.95)

	return &model.SummaryResult{
		Text:               text,
		Tier:               model.TierPlatform,
		Engine:             e.Name(),
		SourceTranscriptID: t.ID,
		GeneratedAt:        time.Now().UTC(),
	}, nil
}
