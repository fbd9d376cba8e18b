package summarize

import (
	"context"
	"time"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// LocalEngine summarizes with a self-hosted model behind an OpenAI-compatible
// endpoint (ollama, llama.cpp server). Nothing leaves the machine.
type LocalEngine struct {
	chat  *chatClient
	model string
}

// NewLocalEngine creates the local-model tier. baseURL empty means the tier
// is not configured and Available reports false.
func NewLocalEngine(baseURL, modelName string, timeout time.Duration) *LocalEngine {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LocalEngine{
		chat:  newChatClient(baseURL, "", modelName, timeout),
		model: modelName,
	}
}

func (e *LocalEngine) Tier() model.EngineTier { return model.TierLocal }
func (e *LocalEngine) Name() string           { return "local:" + e.model }

func (e *LocalEngine) Phase() string {
	return "Summarizing with the on-device model (this can take a little while)"
}

func (e *LocalEngine) Available(ctx context.Context) bool {
	if e.chat.baseURL == "" {
		return false
	}
	return e.chat.reachable(ctx)
}

func (e *LocalEngine) Summarize(ctx context.Context, t *model.Transcript, lang string, onProgress ProgressFunc) (*model.SummaryResult, error) {
	report(onProgress, 0.1)

	text, usage, err := e.chat.complete(ctx, systemPrompt, buildPrompt(lang, t.Text))
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.NewCancelled(model.StateSummarizing)
		}
		return nil, model.NewSummarizationFailed(model.TierLocal, "local model", err)
	}
	report(onProgress, 0.95)

	return &model.SummaryResult{
		Text:               text,
		Tier:               model.TierLocal,
		Engine:             e.Name(),
		SourceTranscriptID: t.ID,
		GeneratedAt:        time.Now().UTC(),
		Usage:              usage,
	}, nil
}
