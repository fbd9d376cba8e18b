package model

import (
	"errors"
	"fmt"
)

// ErrKind tags every failure the pipeline can surface. Each kind renders a
// distinct human-readable description; callers use the kind (via errors.As)
// to decide whether to retry, switch tier, or abort.
type ErrKind int

const (
	ErrNotAuthorized ErrKind = iota + 1
	ErrNotAvailable
	ErrRecognizerSetupFailed
	ErrRecognitionFailed
	ErrAudioFileNotFound
	ErrInvalidAudioFormat
	ErrCancelled
	ErrSummarizationFailed
	ErrStorageFailed
)

// String returns the stable machine-readable name of the kind.
func (k ErrKind) String() string {
	switch k {
	case ErrNotAuthorized:
		return "not_authorized"
	case ErrNotAvailable:
		return "not_available"
	case ErrRecognizerSetupFailed:
		return "recognizer_setup_failed"
	case ErrRecognitionFailed:
		return "recognition_failed"
	case ErrAudioFileNotFound:
		return "audio_file_not_found"
	case ErrInvalidAudioFormat:
		return "invalid_audio_format"
	case ErrCancelled:
		return "cancelled"
	case ErrSummarizationFailed:
		return "summarization_failed"
	case ErrStorageFailed:
		return "storage_failed"
	}
	return "unknown"
}

// Error is the tagged error type used across the pipeline. Stage identifies
// where the failure originated so downstream consumers never have to parse
// message text.
type Error struct {
	Kind   ErrKind
	Stage  RunState   // state the pipeline was in when the failure happened
	Tier   EngineTier // set for SummarizationFailed
	Path   string     // set for AudioFileNotFound
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrNotAuthorized:
		return "speech recognition is not authorized"
	case ErrNotAvailable:
		return "no speech recognizer is available" + suffix(e.Reason)
	case ErrRecognizerSetupFailed:
		return "recognizer setup failed" + suffix(e.Reason)
	case ErrRecognitionFailed:
		return "recognition failed" + suffix(e.Reason)
	case ErrAudioFileNotFound:
		return fmt.Sprintf("audio file not found: %s", e.Path)
	case ErrInvalidAudioFormat:
		return "invalid audio format" + suffix(e.Reason)
	case ErrCancelled:
		return "run cancelled"
	case ErrSummarizationFailed:
		return fmt.Sprintf("summarization failed on %s tier%s", e.Tier, suffix(e.Reason))
	case ErrStorageFailed:
		return "session storage failed" + suffix(e.Reason)
	}
	return "unknown pipeline error"
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match against a bare &Error{Kind: ...} target.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func suffix(reason string) string {
	if reason == "" {
		return ""
	}
	return ": " + reason
}

// KindOf extracts the ErrKind from err, or 0 if err is not a pipeline Error.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func NewNotAuthorized(stage RunState) *Error {
	return &Error{Kind: ErrNotAuthorized, Stage: stage}
}

func NewNotAvailable(stage RunState, reason string) *Error {
	return &Error{Kind: ErrNotAvailable, Stage: stage, Reason: reason}
}

func NewRecognizerSetupFailed(reason string, err error) *Error {
	return &Error{Kind: ErrRecognizerSetupFailed, Stage: StateTranscribing, Reason: reason, Err: err}
}

func NewRecognitionFailed(reason string, err error) *Error {
	return &Error{Kind: ErrRecognitionFailed, Stage: StateTranscribing, Reason: reason, Err: err}
}

func NewAudioFileNotFound(path string) *Error {
	return &Error{Kind: ErrAudioFileNotFound, Stage: StateTranscribing, Path: path}
}

func NewInvalidAudioFormat(reason string) *Error {
	return &Error{Kind: ErrInvalidAudioFormat, Stage: StateTranscribing, Reason: reason}
}

func NewCancelled(stage RunState) *Error {
	return &Error{Kind: ErrCancelled, Stage: stage}
}

func NewSummarizationFailed(tier EngineTier, reason string, err error) *Error {
	return &Error{Kind: ErrSummarizationFailed, Stage: StateSummarizing, Tier: tier, Reason: reason, Err: err}
}

func NewStorageFailed(reason string, err error) *Error {
	return &Error{Kind: ErrStorageFailed, Stage: StateCheckingCache, Reason: reason, Err: err}
}
