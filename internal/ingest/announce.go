package ingest

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lifewrapped/lw-engine/internal/metrics"
	"github.com/lifewrapped/lw-engine/internal/model"
	"github.com/lifewrapped/lw-engine/internal/pipeline"
)

// Runner starts pipeline runs for announced sessions.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Announcement is the payload published to lifewrapped/sessions/{id}/recorded
// when the app finishes a recording.
type Announcement struct {
	SessionID string `json:"session_id"`
	AudioKey  string `json:"audio_key"`
	AudioPath string `json:"audio_path"`
	Language  string `json:"language"`
	Tier      string `json:"tier"`
}

// Announcer consumes recording announcements from MQTT and kicks off
// pipeline runs for them.
type Announcer struct {
	ctx    context.Context
	runner Runner
	log    zerolog.Logger
}

func NewAnnouncer(ctx context.Context, runner Runner, log zerolog.Logger) *Announcer {
	return &Announcer{
		ctx:    ctx,
		runner: runner,
		log:    log.With().Str("component", "ingest").Logger(),
	}
}

// HandleMessage is the MQTT message handler. Malformed announcements are
// logged and dropped; the broker redelivers nothing, so there is no point
// returning an error upstream.
func (a *Announcer) HandleMessage(topic string, payload []byte) {
	metrics.IngestMessagesTotal.WithLabelValues("mqtt").Inc()

	req, err := parseAnnouncement(topic, payload)
	if err != nil {
		a.log.Warn().Err(err).Str("topic", topic).Msg("dropping malformed announcement")
		return
	}

	a.log.Info().
		Str("session_id", req.SessionID).
		Str("audio_key", req.AudioKey).
		Msg("session announced")

	go func() {
		if _, err := a.runner.Run(a.ctx, req); err != nil {
			a.log.Error().Err(err).
				Str("session_id", req.SessionID).
				Msg("announced session run failed")
		}
	}()
}

// parseAnnouncement builds a pipeline request from an announcement. The
// session id comes from the payload, falling back to the topic segment so a
// bare retained message with an empty body still identifies the session.
func parseAnnouncement(topic string, payload []byte) (pipeline.Request, error) {
	var ann Announcement
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ann); err != nil {
			return pipeline.Request{}, err
		}
	}

	if ann.SessionID == "" {
		ann.SessionID = sessionFromTopic(topic)
	}
	if ann.SessionID == "" {
		return pipeline.Request{}, errNoSession
	}

	return pipeline.Request{
		SessionID: ann.SessionID,
		AudioKey:  ann.AudioKey,
		AudioPath: ann.AudioPath,
		Language:  ann.Language,
		ForceTier: model.EngineTier(ann.Tier),
	}, nil
}

// sessionFromTopic extracts {id} from lifewrapped/sessions/{id}/recorded.
func sessionFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 4 && parts[0] == "lifewrapped" && parts[1] == "sessions" && parts[3] == "recorded" {
		return parts[2]
	}
	return ""
}

type announceError string

func (e announceError) Error() string { return string(e) }

const errNoSession = announceError("announcement carries no session id")
