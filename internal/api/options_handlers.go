package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/wordpress-node/internal/wordpress"
)

// ListResourceOptions serves the resource dropdown for a credential. Without a
// usable base URL only the base options are returned.
func (s *Server) ListResourceOptions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cred := s.Credentials.Get(id)
	if cred == nil {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	t, err := s.transportFor(cred)
	if err != nil {
		s.Logger.Warn("resource options without discovery", "credential", cred.Name, "error", err)
	}
	writeJSON(w, http.StatusOK, s.Options.ResourceOptions(r.Context(), id, t))
}

func (s *Server) ListACFFieldKeys(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.Credentials.Get(id) == nil {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	writeJSON(w, http.StatusOK, wordpress.ACFFieldKeys(r.URL.Query().Get("resource")))
}
