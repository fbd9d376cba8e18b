package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifewrapped/lw-engine/internal/audio"
	"github.com/lifewrapped/lw-engine/internal/model"
)

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint.
// Works with speaches, a local whisper server, or the hosted API.
type WhisperClient struct {
	url     string
	model   string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// whisperResponse is the verbose_json response body.
type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// NewWhisperClient creates a Whisper HTTP recognizer. apiKey may be empty for
// unauthenticated local servers.
func NewWhisperClient(url, model, apiKey string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:     url,
		model:   model,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (wc *WhisperClient) Name() string  { return "whisper" }
func (wc *WhisperClient) Model() string { return wc.model }

// Authorized reports whether the endpoint is configured. Credential
// rejections surface as NotAuthorized from Transcribe itself, since only the
// server knows whether the key is valid.
func (wc *WhisperClient) Authorized(ctx context.Context) bool {
	return wc.url != ""
}

// Transcribe sends the audio file to the Whisper API. The input file is only
// ever read. Multipart form with verbose_json so segment timing comes back.
func (wc *WhisperClient) Transcribe(ctx context.Context, audioPath string, opts Opts, onProgress ProgressFunc) (*model.Transcript, error) {
	if wc.url == "" {
		return nil, model.NewNotAvailable(model.StateTranscribing, "no recognizer endpoint configured")
	}
	if err := audio.Validate(audioPath); err != nil {
		return nil, err
	}
	emit(onProgress, 0.05, "")

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, model.NewAudioFileNotFound(audioPath)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, model.NewRecognizerSetupFailed("create form file", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, model.NewRecognizerSetupFailed("copy audio data", err)
	}

	if wc.model != "" {
		w.WriteField("model", wc.model)
	}
	if opts.Language != "" {
		w.WriteField("language", opts.Language)
	}
	if opts.Prompt != "" {
		w.WriteField("prompt", opts.Prompt)
	}
	w.WriteField("temperature", fmt.Sprintf("%.2f", opts.Temperature))
	w.WriteField("response_format", "verbose_json")
	w.WriteField("timestamp_granularities[]", "segment")
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, &buf)
	if err != nil {
		return nil, model.NewRecognizerSetupFailed("create request", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if wc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+wc.apiKey)
	}

	emit(onProgress, 0.15, "")
	resp, err := wc.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, model.NewCancelled(model.StateTranscribing)
		}
		return nil, model.NewRecognitionFailed("whisper request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewRecognitionFailed("read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, model.NewNotAuthorized(model.StateTranscribing)
	case resp.StatusCode == http.StatusNotFound:
		return nil, model.NewNotAvailable(model.StateTranscribing,
			fmt.Sprintf("endpoint returned 404 for model %q", wc.model))
	case resp.StatusCode != http.StatusOK:
		return nil, model.NewRecognitionFailed(
			fmt.Sprintf("whisper API status %d: %s", resp.StatusCode, truncate(string(body), 200)), nil)
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, model.NewRecognitionFailed("decode response", err)
	}
	emit(onProgress, 0.9, result.Text)

	segments := make([]model.Segment, 0, len(result.Segments))
	for _, s := range result.Segments {
		segments = append(segments, model.Segment{
			Start:      s.Start,
			End:        s.End,
			Text:       strings.TrimSpace(s.Text),
			Confidence: segmentConfidence(s),
		})
	}

	return &model.Transcript{
		ID:        uuid.NewString(),
		Text:      strings.TrimSpace(result.Text),
		Segments:  segments,
		Language:  strings.ToLower(result.Language),
		Duration:  result.Duration,
		Model:     wc.model,
		Provider:  wc.Name(),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// segmentConfidence maps whisper's avg_logprob into [0,1], discounted by the
// no-speech probability.
func segmentConfidence(s whisperSegment) float64 {
	c := math.Exp(s.AvgLogprob) * (1 - s.NoSpeechProb)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func emit(onProgress ProgressFunc, fraction float64, partial string) {
	if onProgress != nil {
		onProgress(fraction, partial)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
