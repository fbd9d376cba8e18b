package transcribe

import (
	"context"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// ProgressFunc receives fractional recognition progress in [0,1]. Partial is
// the partial transcript when the backend supports it, "" otherwise.
type ProgressFunc func(fraction float64, partial string)

// Opts are per-request recognition options.
type Opts struct {
	Language    string  // BCP-47 / ISO 639-1 hint, "" = backend default
	Temperature float64 // decoding temperature
	Prompt      string  // domain vocabulary hint
}

// Recognizer is the capability interface for speech-to-text backends.
// Transcribe borrows the audio file read-only; re-invoking with the same file
// is safe and yields a structurally stable (not byte-identical) transcript.
type Recognizer interface {
	// Authorized reports whether the backend will accept requests with the
	// configured credentials.
	Authorized(ctx context.Context) bool

	// Transcribe converts the audio file at audioPath into a transcript,
	// emitting zero or more progress notifications before the final result.
	Transcribe(ctx context.Context, audioPath string, opts Opts, onProgress ProgressFunc) (*model.Transcript, error)

	Name() string  // "whisper", "stub"
	Model() string // model identifier for storage/logs
}
