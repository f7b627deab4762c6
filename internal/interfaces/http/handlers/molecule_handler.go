package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/molsearch/internal/domain/codebook"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

// Indexer is the write surface the handlers need.
type Indexer interface {
	Add(ctx context.Context, id, name string, graph molecule.Graph, fields map[string]string) error
	Remove(ctx context.Context, id string) error
	BulkRemove(ctx context.Context, ids []string) error
	Commit(ctx context.Context) error
	Recount(ctx context.Context) error
	Records() []codebook.Record
}

// MoleculeHandler serves document writes and index maintenance.
type MoleculeHandler struct {
	indexer Indexer
	logger  logging.Logger
}

func NewMoleculeHandler(indexer Indexer, logger logging.Logger) *MoleculeHandler {
	return &MoleculeHandler{indexer: indexer, logger: logger}
}

// CreateMoleculeRequest adds or replaces one molecule.
type CreateMoleculeRequest struct {
	ID     string                  `json:"id"`
	Name   string                  `json:"name,omitempty"`
	Graph  *molecule.GraphDocument `json:"graph"`
	Fields map[string]string       `json:"fields,omitempty"`
	Commit bool                    `json:"commit,omitempty"`
}

// BulkDeleteRequest removes many molecules at once.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// WriteResponse acknowledges a write.
type WriteResponse struct {
	ID        string `json:"id,omitempty"`
	Count     int    `json:"count,omitempty"`
	Committed bool   `json:"committed"`
}

// CodebookSummary describes one codebook without its full count table.
type CodebookSummary struct {
	ID         string `json:"id"`
	Dictionary []int  `json:"dictionary"`
	Documents  int64  `json:"documents"`
	UsedCodes  int    `json:"used_codes"`
}

// Create handles POST /api/v1/molecules.
func (h *MoleculeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMoleculeRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Graph == nil {
		writeAppError(w, errors.New(errors.CodeInvalidParam, "graph is required"))
		return
	}
	g, err := req.Graph.Graph()
	if err != nil {
		writeAppError(w, err)
		return
	}
	name := req.Name
	if name == "" {
		name = req.Graph.Name
	}
	if err := h.indexer.Add(r.Context(), req.ID, name, g, req.Fields); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Commit {
		if err := h.indexer.Commit(r.Context()); err != nil {
			writeAppError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, WriteResponse{ID: req.ID, Committed: req.Commit})
}

// Delete handles DELETE /api/v1/molecules/{id}.
func (h *MoleculeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.indexer.Remove(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	if r.URL.Query().Get("commit") == "true" {
		if err := h.indexer.Commit(r.Context()); err != nil {
			writeAppError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete handles POST /api/v1/molecules/bulk-delete.  The codebooks are
// recounted in the background afterwards.
func (h *MoleculeHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if len(req.IDs) == 0 {
		writeAppError(w, errors.New(errors.CodeInvalidParam, "ids are required"))
		return
	}
	if err := h.indexer.BulkRemove(r.Context(), req.IDs); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, WriteResponse{Count: len(req.IDs), Committed: true})
}

// Commit handles POST /api/v1/index/commit.
func (h *MoleculeHandler) Commit(w http.ResponseWriter, r *http.Request) {
	if err := h.indexer.Commit(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WriteResponse{Committed: true})
}

// Recount handles POST /api/v1/index/recount.
func (h *MoleculeHandler) Recount(w http.ResponseWriter, r *http.Request) {
	if err := h.indexer.Recount(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Codebooks handles GET /api/v1/index/codebooks.
func (h *MoleculeHandler) Codebooks(w http.ResponseWriter, r *http.Request) {
	records := h.indexer.Records()
	out := make([]CodebookSummary, len(records))
	for i, rec := range records {
		out[i] = Summarize(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

// Summarize condenses a codebook record.
func Summarize(rec codebook.Record) CodebookSummary {
	s := CodebookSummary{ID: rec.ID, Dictionary: rec.Dictionary}
	for _, n := range rec.Counts {
		s.Documents += n
		if n > 0 {
			s.UsedCodes++
		}
	}
	return s
}
