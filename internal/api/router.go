package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rflorenc/wordpress-node/internal/metrics"
	"github.com/rflorenc/wordpress-node/internal/models"
	"github.com/rflorenc/wordpress-node/internal/wordpress"
)

// TransportFactory builds the transport used for one credential.
type TransportFactory func(cred *models.Credential) (wordpress.Transport, error)

// Server holds shared state for all API handlers.
type Server struct {
	Credentials *models.CredentialStore
	Executions  *models.ExecutionStore
	Options     *wordpress.OptionCache
	Metrics     *metrics.Collector // optional
	Logger      *slog.Logger

	ResolveRESTBase bool
	ContinueOnFail  bool // default when a request does not say
	Timeout         time.Duration

	// NewTransport overrides the HTTP transport, e.g. in tests.
	NewTransport TransportFactory
}

// NewRouter builds the chi router with all API routes.
func NewRouter(s *Server) http.Handler {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.Options == nil {
		s.Options = wordpress.NewOptionCache(5*time.Minute, nil)
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Descriptors
		r.Get("/schema/credential", s.GetCredentialSchema)
		r.Get("/schema/node", s.GetNodeSchema)

		// Credentials
		r.Post("/credentials", s.CreateCredential)
		r.Get("/credentials", s.ListCredentials)
		r.Get("/credentials/{id}", s.GetCredential)
		r.Put("/credentials/{id}", s.UpdateCredential)
		r.Delete("/credentials/{id}", s.DeleteCredential)
		r.Post("/credentials/{id}/test", s.TestCredential)

		// Dynamic dropdowns
		r.Get("/credentials/{id}/options/resources", s.ListResourceOptions)
		r.Get("/credentials/{id}/options/acf-fields", s.ListACFFieldKeys)

		// Node execution
		r.Post("/credentials/{id}/execute", s.ExecuteBatch)
		r.Post("/credentials/{id}/executions", s.StartExecution)

		// Executions
		r.Get("/executions", s.ListExecutions)
		r.Get("/executions/{id}", s.GetExecution)
		r.Post("/executions/{id}/cancel", s.CancelExecution)
	})

	// WebSocket (outside /api to avoid JSON content-type assumptions)
	r.Get("/ws/executions/{id}/logs", s.StreamExecutionLogs)

	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// transportFor builds the transport for a credential, reporting calls to the
// metrics collector when one is configured.
func (s *Server) transportFor(cred *models.Credential) (wordpress.Transport, error) {
	if s.NewTransport != nil {
		return s.NewTransport(cred)
	}
	opts := []wordpress.TransportOption{wordpress.WithTimeout(s.Timeout)}
	if s.Metrics != nil {
		opts = append(opts, wordpress.WithObserver(s.Metrics))
	}
	t, err := wordpress.NewHTTPTransport(cred, opts...)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// dispatcherFor wires a dispatcher for one credential. progress may be nil.
// With rest_base resolution on, the site's types are discovered first unless
// a fresh listing is cached.
func (s *Server) dispatcherFor(ctx context.Context, cred *models.Credential, progress func(string)) (*wordpress.Dispatcher, error) {
	t, err := s.transportFor(cred)
	if err != nil {
		return nil, err
	}
	if s.ResolveRESTBase && !s.Options.Fresh(cred.ID) {
		if _, err := s.Options.Refresh(ctx, cred.ID, t); err != nil {
			s.Logger.Warn("type discovery failed, using known types", "credential", cred.Name, "error", err)
		}
	}
	opts := []wordpress.DispatcherOption{
		wordpress.WithOptionCache(s.Options, cred.ID),
		wordpress.WithRESTBaseResolution(s.ResolveRESTBase),
		wordpress.WithLogger(s.Logger.With("credential", cred.Name)),
	}
	if s.Metrics != nil {
		opts = append(opts, wordpress.WithItemObserver(s.Metrics))
	}
	if progress != nil {
		opts = append(opts, wordpress.WithProgress(progress))
	}
	return wordpress.NewDispatcher(t, opts...), nil
}
