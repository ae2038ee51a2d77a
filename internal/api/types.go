package api

import (
	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/schema"
)

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
	Busy   bool   `json:"busy"`
}

// PlanRequest is the request body for POST /api/plan and POST /api/apply.
type PlanRequest struct {
	Table schema.Table `json:"table"`
	// From names the existing table when Table renames it.
	From        string   `json:"from,omitempty"`
	DropIndexes []string `json:"drop_indexes,omitempty"`
}

func (r PlanRequest) options() engine.PlanOptions {
	return engine.PlanOptions{From: r.From, DropIndexes: r.DropIndexes}
}

// IndexesRequest is the request body for POST /api/indexes.
type IndexesRequest struct {
	Table string            `json:"table"`
	Ops   []dialect.IndexOp `json:"ops"`
}

// VerifyRequest is the request body for POST /api/verify.
type VerifyRequest struct {
	Table    string `json:"table"`
	Expected int64  `json:"expected"`
}

// RunResponse is the response of an alteration, successful or not.
type RunResponse struct {
	Result    *engine.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
}
