package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skillcoder/sandboxd/internal/logic/instance"
	"github.com/skillcoder/sandboxd/internal/logic/principal"
)

type createInstanceRequest struct {
	TemplateID string `json:"templateId"`
}

type issueAccessRequest struct {
	DurationHours int `json:"durationHours"`
}

type authenticateRequest struct {
	Login  string `json:"login"`
	Secret string `json:"secret"`
}

type authenticateResponse struct {
	Authenticated bool `json:"authenticated"`
}

type logsResponse struct {
	Logs string `json:"logs"`
}

type usageResponse struct {
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

type sweepResponse struct {
	Swept int `json:"swept"`
}

// decodeBody fills out from the JSON request body. An empty body is allowed
// and leaves out at its zero value, so optional-payload endpoints work
// without one.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(out)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request body: %s", err))

		return false
	}

	return true
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.templates.ListTemplatesQuery(r.Context()))
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "templateId is required")

		return
	}

	inst, err := s.instances.Create(r.Context(), principalFrom(r.Context()), req.TemplateID)
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, inst)
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	list, err := s.instances.List(r.Context(), principalFrom(r.Context()))
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) handleInstanceLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.instances.Logs(
		r.Context(),
		principalFrom(r.Context()),
		chi.URLParam(r, "name"),
	)
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, logsResponse{Logs: logs})
}

func (s *Server) handleInstanceUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.instances.Usage(
		r.Context(),
		principalFrom(r.Context()),
		chi.URLParam(r, "name"),
	)
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, toUsageResponse(usage))
}

func (s *Server) handleStopInstance(w http.ResponseWriter, r *http.Request) {
	err := s.instances.Stop(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	err := s.instances.Delete(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIssueAccess(w http.ResponseWriter, r *http.Request) {
	var req issueAccessRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	conn, err := s.grants.Issue(
		r.Context(),
		principalFrom(r.Context()),
		chi.URLParam(r, "name"),
		time.Duration(req.DurationHours)*time.Hour,
	)
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, conn)
}

func (s *Server) handleListAccess(w http.ResponseWriter, r *http.Request) {
	list, err := s.grants.List(r.Context(), principalFrom(r.Context()))
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ok, err := s.grants.Authenticate(r.Context(), req.Login, req.Secret)
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, authenticateResponse{Authenticated: ok})
}

func (s *Server) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	err := s.grants.Revoke(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "login"))
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReconcileAll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.instances.ReconcileAll(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleSweepExpired(w http.ResponseWriter, r *http.Request) {
	swept, err := s.grants.SweepExpired(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, sweepResponse{Swept: swept})
}

// handleDeleteOwner cascades an owner's grants, instances and namespace, in
// that order: revoking grants first so no credential outlives its exposure.
func (s *Server) handleDeleteOwner(w http.ResponseWriter, r *http.Request) {
	owner := principal.Owner{
		ID:     chi.URLParam(r, "ownerID"),
		Handle: r.URL.Query().Get("handle"),
	}

	if owner.Handle == "" {
		writeError(w, http.StatusBadRequest, "handle query parameter is required")

		return
	}

	if err := s.grants.RevokeAllForOwner(r.Context(), owner); err != nil {
		s.writeFailure(w, r, err)

		return
	}

	if err := s.instances.DeleteOwner(r.Context(), owner); err != nil {
		s.writeFailure(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.pingers {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed",
				"component", p.Name(),
				"reason", err,
			)
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

func toUsageResponse(usage *instance.Usage) usageResponse {
	out := usageResponse{}

	if usage.CPU != nil {
		out.CPU = usage.CPU.String()
	}

	if usage.Memory != nil {
		out.Memory = usage.Memory.String()
	}

	return out
}
