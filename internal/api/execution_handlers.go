package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/wordpress-node/internal/models"
	"github.com/rflorenc/wordpress-node/internal/wordpress"
)

func (s *Server) decodeBatch(r *http.Request) (wordpress.Batch, error) {
	return wordpress.DecodeBatch(r.Body, s.ContinueOnFail)
}

// ExecuteBatch runs a batch synchronously and returns its records. An aborted
// batch answers 422 with the failing item index.
func (s *Server) ExecuteBatch(w http.ResponseWriter, r *http.Request) {
	cred := s.Credentials.Get(chi.URLParam(r, "id"))
	if cred == nil {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	batch, err := s.decodeBatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.dispatcherFor(r.Context(), cred, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := d.Execute(r.Context(), batch)
	if err != nil {
		var itemErr *wordpress.ItemError
		if errors.As(err, &itemErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      itemErr.Err.Error(),
				"item_index": itemErr.Index,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// StartExecution runs a batch in the background as a cancellable execution
// whose progress is streamed over WebSocket.
func (s *Server) StartExecution(w http.ResponseWriter, r *http.Request) {
	cred := s.Credentials.Get(chi.URLParam(r, "id"))
	if cred == nil {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	batch, err := s.decodeBatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resource := batch.Parameters.String("resource", "post")
	operation := batch.Parameters.String("operation", string(wordpress.OpCreate))
	exec := s.Executions.Create(cred.ID, resource, operation)

	d, err := s.dispatcherFor(r.Context(), cred, exec.AppendLog)
	if err != nil {
		exec.AppendLog("ERROR: " + err.Error())
		exec.Fail(err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	exec.Bind(cancel)

	go func() {
		defer cancel()
		exec.AppendLog(fmt.Sprintf("Running %s on %s against %s (%d item(s))",
			operation, resource, cred.BaseURL, len(batch.Items)))
		records, err := d.Execute(ctx, batch)
		switch {
		case errors.Is(err, context.Canceled):
			// status already set by CancelExecution
		case err != nil:
			exec.AppendLog("ERROR: " + err.Error())
			exec.Fail(err.Error())
		default:
			exec.AppendLog(fmt.Sprintf("Completed: %d record(s)", len(records)))
			exec.Complete(records)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"execution_id": exec.ID})
}

func (s *Server) ListExecutions(w http.ResponseWriter, r *http.Request) {
	execs := s.Executions.List()
	out := make([]*models.Execution, 0, len(execs))
	for _, e := range execs {
		out = append(out, e.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetExecution(w http.ResponseWriter, r *http.Request) {
	exec := s.Executions.Get(chi.URLParam(r, "id"))
	if exec == nil {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, exec.Snapshot())
}

// CancelExecution cancels a running execution before its next item.
func (s *Server) CancelExecution(w http.ResponseWriter, r *http.Request) {
	exec := s.Executions.Get(chi.URLParam(r, "id"))
	if exec == nil {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	if !exec.Cancel() {
		writeError(w, http.StatusConflict, "execution is not running")
		return
	}
	exec.AppendLog("CANCELLED: execution stopped by user")
	writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusCancelled})
}
