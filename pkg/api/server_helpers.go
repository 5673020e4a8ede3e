package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/dd0wney/cluso-fraudgraph/pkg/api/middleware"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encoding JSON response failed", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      status,
		RequestID: middleware.GetRequestID(r),
	})
}

// internalError logs err in full and answers with a generic message.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	s.logger.Error(operation+" failed",
		logging.String("request_id", middleware.GetRequestID(r)),
		logging.Error(err))
	s.respondError(w, r, http.StatusInternalServerError, operation+" failed")
}
