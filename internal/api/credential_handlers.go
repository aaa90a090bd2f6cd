package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/wordpress-node/internal/models"
	"github.com/rflorenc/wordpress-node/internal/wordpress"
)

func (s *Server) GetCredentialSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wordpress.CredentialDescriptor())
}

func (s *Server) GetNodeSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wordpress.NodeDescriptor())
}

func (s *Server) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var cred models.Credential
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if cred.Authentication == "" {
		cred.Authentication = models.AuthBasic
	}
	if err := cred.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Credentials.Create(&cred); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, cred.Masked())
}

func (s *Server) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds := s.Credentials.List()
	out := make([]models.Credential, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.Masked())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetCredential(w http.ResponseWriter, r *http.Request) {
	cred := s.Credentials.Get(chi.URLParam(r, "id"))
	if cred == nil {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	writeJSON(w, http.StatusOK, cred.Masked())
}

// UpdateCredential replaces a credential's settings. Secrets sent back empty
// or still masked keep their stored value.
func (s *Server) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing := s.Credentials.Get(id)
	if existing == nil {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	var cred models.Credential
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	cred.ID = id
	masked := existing.Masked()
	if cred.Password == "" || cred.Password == masked.Password {
		cred.Password = existing.Password
	}
	if cred.ClientSecret == "" || cred.ClientSecret == masked.ClientSecret {
		cred.ClientSecret = existing.ClientSecret
	}
	if cred.Authentication == "" {
		cred.Authentication = models.AuthBasic
	}
	if err := cred.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.Credentials.Update(&cred)
	if !ok {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// the site may have changed
	s.Options.Invalidate(id)
	writeJSON(w, http.StatusOK, cred.Masked())
}

func (s *Server) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.Credentials.Delete(id)
	if !ok {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Options.Invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}

// healthChecker is implemented by transports that can probe a live site.
type healthChecker interface {
	Ping(ctx context.Context) error
	CheckAuth(ctx context.Context) error
	BasicAuth() bool
}

// TestCredential checks that the site answers on /wp-json/ and, when basic
// auth is configured, that users/me accepts the credentials.
func (s *Server) TestCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cred := s.Credentials.Get(id)
	if cred == nil {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	result := s.checkCredential(r.Context(), cred)
	writeJSON(w, http.StatusOK, result)
}

// HealthResult is the outcome of a credential check.
type HealthResult struct {
	OK         bool   `json:"ok"`
	PingStatus string `json:"ping_status"`
	PingError  string `json:"ping_error,omitempty"`
	AuthStatus string `json:"auth_status"`
	AuthError  string `json:"auth_error,omitempty"`
}

func (s *Server) checkCredential(ctx context.Context, cred *models.Credential) HealthResult {
	res := HealthResult{PingStatus: "unknown", AuthStatus: "unknown"}
	defer func() {
		s.Credentials.SetHealth(cred.ID, res.PingStatus, res.PingError, res.AuthStatus, res.AuthError)
	}()

	t, err := s.transportFor(cred)
	if err != nil {
		res.PingStatus, res.PingError = "error", err.Error()
		return res
	}
	hc, ok := t.(healthChecker)
	if !ok {
		res.OK = true
		return res
	}
	if err := hc.Ping(ctx); err != nil {
		res.PingStatus, res.PingError = "error", err.Error()
		return res
	}
	res.PingStatus = "ok"
	if !hc.BasicAuth() {
		res.AuthStatus = "skipped"
		res.OK = true
		return res
	}
	if err := hc.CheckAuth(ctx); err != nil {
		res.AuthStatus, res.AuthError = "error", err.Error()
		return res
	}
	res.AuthStatus = "ok"
	res.OK = true
	return res
}

// CheckCredential runs the same checks as the test endpoint. Used at startup.
func (s *Server) CheckCredential(ctx context.Context, cred *models.Credential) HealthResult {
	return s.checkCredential(ctx, cred)
}
