package model

import (
	"encoding/json"
	"time"
)

// EngineTier identifies a summarization strategy, ordered by capability and
// cost. Selection between tiers is policy-driven, never a plain ordinal walk.
type EngineTier string

const (
	// TierBasic is local extractive summarization with no external
	// dependency. It is the universal fallback and is always applicable.
	TierBasic EngineTier = "basic"
	// TierLocal is a self-hosted model behind an OpenAI-compatible endpoint
	// (ollama, llama.cpp server).
	TierLocal EngineTier = "local"
	// TierPlatform is the platform AI capability (Gemini).
	TierPlatform EngineTier = "platform"
	// TierExternal is a user-selected external provider API.
	TierExternal EngineTier = "external"
)

// Valid reports whether t is one of the four known tiers.
func (t EngineTier) Valid() bool {
	switch t {
	case TierBasic, TierLocal, TierPlatform, TierExternal:
		return true
	}
	return false
}

// Segment is one recognized span of speech within a transcript.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the immutable output of the transcription service.
// Language is filled in by the detector after recognition; the recognizer
// may pre-populate it when the backend reports one.
type Transcript struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Segments  []Segment `json:"segments,omitempty"`
	Language  string    `json:"language,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
	Model     string    `json:"model,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WordCount counts whitespace-separated tokens in the transcript text.
func (t *Transcript) WordCount() int {
	n := 0
	inWord := false
	for _, r := range t.Text {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				n++
			}
			inWord = true
		}
	}
	return n
}

// SummaryResult is the immutable output of a summarization run.
type SummaryResult struct {
	Text               string          `json:"text"`
	Highlights         []string        `json:"highlights,omitempty"`
	Tier               EngineTier      `json:"tier"`
	Engine             string          `json:"engine,omitempty"`
	SourceTranscriptID string          `json:"source_transcript_id"`
	GeneratedAt        time.Time       `json:"generated_at"`
	Usage              json.RawMessage `json:"usage,omitempty"`
}

// RunState is a pipeline state machine state.
type RunState string

const (
	StateIdle              RunState = "idle"
	StateCheckingCache     RunState = "checking_cache"
	StateSelectingTier     RunState = "selecting_tier"
	StateTranscribing      RunState = "transcribing"
	StateDetectingLanguage RunState = "detecting_language"
	StateSummarizing       RunState = "summarizing"
	StateCompleted         RunState = "completed"
	StateFailed            RunState = "failed"
	StateCancelled         RunState = "cancelled"
)

// Terminal reports whether s ends a run.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// ProgressState is one progress emission during a run. Fraction is in [0,1]
// and monotonically non-decreasing within a single run. Phase is the
// human-readable stage label the app shows during the run.
type ProgressState struct {
	SessionID string     `json:"session_id"`
	State     RunState   `json:"state"`
	Phase     string     `json:"phase"`
	Fraction  float64    `json:"fraction"`
	Tier      EngineTier `json:"tier,omitempty"`
}
