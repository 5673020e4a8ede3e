package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-fraudgraph/pkg/engine"
	"github.com/dd0wney/cluso-fraudgraph/pkg/feed"
	"github.com/dd0wney/cluso-fraudgraph/pkg/interaction"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
	"github.com/dd0wney/cluso-fraudgraph/pkg/pools"
	"github.com/dd0wney/cluso-fraudgraph/pkg/visualization"
)

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.View())
}

func (s *Server) handleFrameSVG(w http.ResponseWriter, r *http.Request) {
	buf := pools.GetBuffer()
	defer pools.PutBuffer(buf)
	if err := visualization.RenderSVG(buf, s.engine.View().Scene()); err != nil {
		s.internalError(w, r, "render frame", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	resp := StatusResponse{
		Running:             st.Running,
		Source:              string(st.Source),
		Animator:            st.Animator.String(),
		Progress:            st.Progress,
		Tick:                st.Tick,
		RefreshInterval:     st.Interval.String(),
		ConsecutiveFailures: st.Feed.ConsecutiveFailures,
		LastError:           st.LastError,
	}
	if !st.Feed.LastSuccess.IsZero() {
		resp.LastSuccess = st.Feed.LastSuccess.UTC().Format(time.RFC3339Nano)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleRefresh fetches outside the timer. A failed fetch still answers
// 200: the fallback policy decided what is displayed and the body says so.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.RefreshNow(r.Context())
	switch {
	case errors.Is(err, feed.ErrFetchInFlight):
		s.respondError(w, r, http.StatusConflict, "a fetch is already in flight")
		return
	case errors.Is(err, engine.ErrStopped):
		s.respondError(w, r, http.StatusServiceUnavailable, "engine stopped")
		return
	}

	resp := RefreshResponse{Outcome: out.Kind.String()}
	if out.Snapshot != nil {
		resp.Nodes = len(out.Snapshot.Nodes)
	}
	if err != nil {
		resp.Error = err.Error()
		s.logger.Info("manual refresh fell back",
			logging.Outcome(resp.Outcome),
			logging.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request) {
	id, ok := s.nodeID(w, r)
	if !ok {
		return
	}
	if err := s.engine.Hover(id); err != nil {
		s.interactionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUnhover clears the hover. With an id it only clears when that node
// is the one hovered, so a late leave event cannot undo a newer hover.
func (s *Server) handleUnhover(w http.ResponseWriter, r *http.Request) {
	if id := r.PathValue("id"); id != "" {
		if s.engine.Interaction().Hovered != id {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	s.engine.Unhover()
	w.WriteHeader(http.StatusNoContent)
}

// handleSelect starts an explanation lookup and answers 202 with its token.
// The result arrives on /graph/selection and the interaction stream.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.nodeID(w, r)
	if !ok {
		return
	}
	token, err := s.engine.Select(id)
	if err != nil {
		s.interactionError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, SelectResponse{NodeID: id, Token: token})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.View().Selection)
}

func (s *Server) handleGetRelax(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, RelaxResponse{Enabled: s.engine.Relaxation()})
}

func (s *Server) handleSetRelax(w http.ResponseWriter, r *http.Request) {
	enabled, ok := s.boolQuery(w, r, "enabled")
	if !ok {
		return
	}
	s.engine.SetRelaxation(enabled)
	s.respondJSON(w, http.StatusOK, RelaxResponse{Enabled: s.engine.Relaxation()})
}

func (s *Server) interactionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, interaction.ErrNodeNotDisplayed):
		s.respondError(w, r, http.StatusNotFound, "node is not displayed")
	case errors.Is(err, interaction.ErrClosed), errors.Is(err, engine.ErrStopped):
		s.respondError(w, r, http.StatusServiceUnavailable, "engine stopped")
	default:
		s.internalError(w, r, "interaction", err)
	}
}
