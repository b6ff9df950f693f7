// Package server - ingest.go accepts frame envelopes over websocket.
//
// DESIGN: A remote pipeline streams one JSON envelope per observed frame:
//
//	{"type": "TranscriptionFrame", "direction": "downstream",
//	 "source": "stt", "destination": "llm",
//	 "observed_at": "2026-01-02T15:04:05.999Z", "payload": "<base64>"}
//
// The payload carries the frame's opaque serialized bytes; the observer's
// background path decodes them. A malformed envelope is dropped with a
// warning - ingest must never take down the connection over one bad frame.
package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/voxlab/pipescope/internal/frames"
	"github.com/voxlab/pipescope/internal/monitoring"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ingest: websocket accept failed")
		return
	}
	defer c.CloseNow()

	ctx := r.Context()
	runID := monitoring.RunIDFromContext(ctx)
	log.Info().Str("remote", r.RemoteAddr).Str("run_id", runID).Msg("ingest: pipeline connected")

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, ctx.Err()) {
				log.Info().Str("remote", r.RemoteAddr).Str("run_id", runID).Msg("ingest: pipeline disconnected")
			} else {
				log.Warn().Err(err).Msg("ingest: read failed")
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		s.ingestEnvelope(data)
	}
}

// ingestEnvelope converts one envelope into an OnFrame notification.
func (s *Server) ingestEnvelope(data []byte) {
	if !gjson.ValidBytes(data) {
		log.Warn().Msg("ingest: dropping invalid envelope")
		return
	}
	doc := gjson.ParseBytes(data)

	typeKey := doc.Get("type").String()
	if typeKey == "" {
		log.Warn().Msg("ingest: dropping envelope without frame type")
		return
	}

	observedAt := time.Now()
	if ts := doc.Get("observed_at").String(); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			observedAt = parsed
		}
	}

	var payload []byte
	if p := doc.Get("payload").String(); p != "" {
		decoded, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			// Count the frame anyway; only the decode summary is lost.
			log.Warn().Str("type", typeKey).Msg("ingest: undecodable payload encoding")
		} else {
			payload = decoded
		}
	}

	f := &frames.Frame{
		Type:        frames.Type(typeKey),
		Source:      doc.Get("source").String(),
		Destination: doc.Get("destination").String(),
		Payload:     payload,
	}

	s.obs.OnFrame(f, parseDirection(doc.Get("direction").String()), observedAt)
}

func parseDirection(s string) frames.Direction {
	switch s {
	case "downstream":
		return frames.DirectionDownstream
	case "upstream":
		return frames.DirectionUpstream
	default:
		return frames.DirectionControl
	}
}
