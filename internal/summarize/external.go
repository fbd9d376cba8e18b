package summarize

import (
	"context"
	"time"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// ExternalEngine is the user-selected external provider tier over an
// OpenAI-compatible API. Every call runs under a hard deadline: this is the
// only network-dependent tier the user pays per-request for, so it must never
// hang indefinitely.
type ExternalEngine struct {
	provider string
	chat     *chatClient
	timeout  time.Duration
}

// NewExternalEngine creates the external tier. provider is the user-selected
// provider name from configuration; empty provider or key leaves the tier
// unavailable.
func NewExternalEngine(provider, baseURL, apiKey, modelName string, timeout time.Duration) *ExternalEngine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ExternalEngine{
		provider: provider,
		chat:     newChatClient(baseURL, apiKey, modelName, timeout),
		timeout:  timeout,
	}
}

func (e *ExternalEngine) Tier() model.EngineTier { return model.TierExternal }
func (e *ExternalEngine) Name() string           { return e.provider }

func (e *ExternalEngine) Phase() string {
	return "Summarizing with " + e.provider + " (sent over the network, may take a moment)"
}

func (e *ExternalEngine) Available(ctx context.Context) bool {
	return e.provider != "" && e.chat.apiKey != ""
}

func (e *ExternalEngine) Summarize(ctx context.Context, t *model.Transcript, lang string, onProgress ProgressFunc) (*model.SummaryResult, error) {
	report(onProgress, 0.1)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, usage, err := e.chat.complete(ctx, systemPrompt, buildPrompt(lang, t.Text))
	if err != nil {
		if context.Cause(ctx) == context.Canceled {
			return nil, model.NewCancelled(model.StateSummarizing)
		}
		return nil, model.NewSummarizationFailed(model.TierExternal, e.provider, err)
	}
	report(onProgress, 0.95)

	return &model.SummaryResult{
		Text:               text,
		Tier:               model.TierExternal,
		Engine:             e.Name(),
		SourceTranscriptID: t.ID,
		GeneratedAt:        time.Now().UTC(),
		Usage:              usage,
	}, nil
}
