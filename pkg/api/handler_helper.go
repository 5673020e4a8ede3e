package api

import (
	"net/http"
	"strconv"

	"github.com/dd0wney/cluso-fraudgraph/pkg/validation"
)

// nodeID reads and validates the {id} path value. On failure it has
// already answered 400.
func (s *Server) nodeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if err := validation.ValidateNodeID(id); err != nil {
		s.respondError(w, r, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

// boolQuery parses a required boolean query parameter.
func (s *Server) boolQuery(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		s.respondError(w, r, http.StatusBadRequest, "missing query parameter "+name)
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "query parameter "+name+" must be a boolean")
		return false, false
	}
	return v, true
}
