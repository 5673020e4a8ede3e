package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/dd0wney/cluso-fraudgraph/pkg/engine"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
	"github.com/dd0wney/cluso-fraudgraph/pkg/pools"
)

var streamTopics = map[string]bool{
	engine.TopicFrame:       true,
	engine.TopicRefresh:     true,
	engine.TopicInteraction: true,
}

// handleStream sends views as server-sent events. ?topic= picks frame
// (every animation frame), refresh (default, one per applied snapshot) or
// interaction. The current view is sent first.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = engine.TopicRefresh
	}
	if !streamTopics[topic] {
		s.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown topic %q", topic))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	sub, err := s.engine.Subscribe(ctx, topic)
	if err != nil {
		s.respondError(w, r, http.StatusServiceUnavailable, "engine stopped")
		return
	}
	defer sub.Unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, topic, s.engine.View()); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(s.cfg.KeepAlive)
	defer keepAlive.Stop()

	s.logger.Debug("stream opened", logging.String("topic", topic))
	defer s.logger.Debug("stream closed", logging.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case view, ok := <-sub.Channel():
			if !ok {
				return
			}
			if err := writeEvent(w, topic, view); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, view engine.View) error {
	buf := pools.GetBuffer()
	defer pools.PutBuffer(buf)

	fmt.Fprintf(buf, "event: %s\ndata: ", event)
	// Encode terminates the line; one more blank line ends the event.
	if err := json.NewEncoder(buf).Encode(view); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
