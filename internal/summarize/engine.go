package summarize

import (
	"context"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// ProgressFunc receives fractional summarization progress in [0,1].
type ProgressFunc func(fraction float64)

// Engine is the capability interface implemented once per tier. Engines are
// selected at runtime by the tier-selection policy, never chained.
type Engine interface {
	Tier() model.EngineTier
	Name() string

	// Available reports whether the engine can currently serve requests
	// (configured, reachable). The basic engine always returns true.
	Available(ctx context.Context) bool

	// Phase is the stage wording the app shows while this engine runs.
	// Non-basic tiers explain why the wait may be longer.
	Phase() string

	// Summarize produces a summary of the transcript in the detected
	// language. Implementations must honor ctx cancellation at every
	// network suspension point.
	Summarize(ctx context.Context, t *model.Transcript, lang string, onProgress ProgressFunc) (*model.SummaryResult, error)
}

func report(onProgress ProgressFunc, fraction float64) {
	if onProgress != nil {
		onProgress(fraction)
	}
}
