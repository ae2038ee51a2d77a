package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tablewright/tablewright/internal/discovery"
	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/migration"
)

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Describe(r.Context(), r.PathValue("name"))
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// handleDrop drops a table. With ?dry_run=true it only returns the plan.
func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if r.URL.Query().Get("dry_run") == "true" {
		plan, err := s.engine.PlanDropTable(r.Context(), name)
		if err != nil {
			errorResponse(w, statusFor(err), err.Error())
			return
		}
		jsonResponse(w, http.StatusOK, plan)
		return
	}
	result, err := s.engine.DropTable(r.Context(), name)
	s.finish(w, result, err)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !decodeTable(w, r, &req) {
		return
	}
	plan, err := s.engine.Plan(r.Context(), &req.Table, req.options())
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, plan)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !decodeTable(w, r, &req) {
		return
	}
	result, err := s.engine.Apply(r.Context(), &req.Table, req.options())
	s.finish(w, result, err)
}

func (s *Server) handleAlter(w http.ResponseWriter, r *http.Request) {
	var req engine.AlterTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Table == "" {
		errorResponse(w, http.StatusBadRequest, "table is required")
		return
	}
	result, err := s.engine.AlterTable(r.Context(), req)
	s.finish(w, result, err)
}

func (s *Server) handleIndexes(w http.ResponseWriter, r *http.Request) {
	var req IndexesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Table == "" || len(req.Ops) == 0 {
		errorResponse(w, http.StatusBadRequest, "table and ops are required")
		return
	}
	result, err := s.engine.AlterIndexes(r.Context(), req.Table, req.Ops)
	s.finish(w, result, err)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Table == "" {
		errorResponse(w, http.StatusBadRequest, "table is required")
		return
	}
	result, err := s.engine.VerifyRowCount(r.Context(), req.Table, req.Expected)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.broadcastValidation(result)
	jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Status()
	if status == nil {
		errorResponse(w, http.StatusNotFound, "no alteration has run")
		return
	}
	jsonResponse(w, http.StatusOK, status)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rpt := s.engine.LastReport()
	if rpt == nil {
		errorResponse(w, http.StatusNotFound, "no alteration has run")
		return
	}
	jsonResponse(w, http.StatusOK, rpt)
}

// finish records and answers the outcome of an alteration. A rejected
// statement still returns the result so callers see what was applied.
func (s *Server) finish(w http.ResponseWriter, result *engine.Result, err error) {
	s.metrics.observe(result, err)
	if result != nil {
		s.broadcastValidation(result.Validation)
		if s.hub != nil {
			if rpt := s.engine.LastReport(); rpt != nil {
				s.hub.BroadcastComplete(rpt)
			}
		}
	}
	if err == nil {
		jsonResponse(w, http.StatusOK, RunResponse{Result: result})
		return
	}
	if s.hub != nil {
		s.hub.BroadcastError(err.Error())
	}
	if result == nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusUnprocessableEntity, RunResponse{
		Result:    result,
		Error:     err.Error(),
		ErrorKind: string(migration.Kind(err)),
	})
}

func decodeTable(w http.ResponseWriter, r *http.Request, req *PlanRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := req.Table.Validate(); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	var notFound *discovery.TableNotFoundError
	switch {
	case errors.Is(err, engine.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
