package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/turtacn/molsearch/internal/application/search"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

const contentTypeNDJSON = "application/x-ndjson"

// SearchHandler streams query results as newline-delimited JSON.
type SearchHandler struct {
	searcher   search.Searcher
	workers    int
	maxResults int
	logger     logging.Logger
}

// NewSearchHandler uses workers and maxResults when a request leaves them
// unset.
func NewSearchHandler(searcher search.Searcher, workers, maxResults int, logger logging.Logger) *SearchHandler {
	if workers < 1 {
		workers = 1
	}
	return &SearchHandler{searcher: searcher, workers: workers, maxResults: maxResults, logger: logger}
}

// SearchRequest is the body of both search endpoints.  Threshold is only
// read by similarity search.
type SearchRequest struct {
	Query      *molecule.GraphDocument `json:"query"`
	Threshold  *float64                `json:"threshold,omitempty"`
	MaxResults *int                    `json:"max_results,omitempty"`
	Workers    int                     `json:"workers,omitempty"`
	Annotate   bool                    `json:"annotate,omitempty"`
}

// Hit is one line of a search response.
type Hit struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Size         int               `json:"size"`
	Similarity   *float64          `json:"similarity,omitempty"`
	Mapping      []int             `json:"mapping,omitempty"`
	MatchedAtoms []int             `json:"matched_atoms,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
}

func (h *SearchHandler) parse(r *http.Request) (*SearchRequest, molecule.Graph, error) {
	var req SearchRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, nil, err
	}
	if req.Query == nil {
		return nil, nil, errors.New(errors.CodeInvalidParam, "query is required")
	}
	g, err := req.Query.Graph()
	if err != nil {
		return nil, nil, err
	}
	if req.Workers == 0 {
		req.Workers = h.workers
	}
	if req.MaxResults == nil {
		req.MaxResults = &h.maxResults
	}
	return &req, g, nil
}

// Substructure handles POST /api/v1/search/substructure.
func (h *SearchHandler) Substructure(w http.ResponseWriter, r *http.Request) {
	req, g, err := h.parse(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	stream, err := h.searcher.Substructure(r.Context(), g, *req.MaxResults, req.Workers)
	if err != nil {
		writeAppError(w, err)
		return
	}
	h.write(w, r, stream, req.Annotate)
}

// Similarity handles POST /api/v1/search/similarity.
func (h *SearchHandler) Similarity(w http.ResponseWriter, r *http.Request) {
	req, g, err := h.parse(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if req.Threshold == nil {
		writeAppError(w, errors.New(errors.CodeInvalidThreshold, "threshold is required"))
		return
	}
	stream, err := h.searcher.Similarity(r.Context(), g, *req.Threshold, *req.MaxResults, req.Workers)
	if err != nil {
		writeAppError(w, err)
		return
	}
	h.write(w, r, stream, req.Annotate)
}

func (h *SearchHandler) write(w http.ResponseWriter, r *http.Request, stream *search.Stream, annotate bool) {
	defer stream.Close()
	w.Header().Set("Content-Type", contentTypeNDJSON)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	n := 0
	for stream.HasNext() {
		res := stream.Next()
		hit := ToHit(res)
		if annotate && res.Mapping != nil {
			if ann, err := res.Annotated(r.Context()); err == nil {
				hit.MatchedAtoms = ann.MatchedAtoms()
			} else {
				h.logger.Warn("annotation failed", logging.String("id", res.ID), logging.Err(err))
			}
		}
		if err := enc.Encode(hit); err != nil {
			h.logger.Warn("client went away", logging.Int("written", n), logging.Err(err))
			return
		}
		n++
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// ToHit flattens a result for the wire.
func ToHit(res *search.Result) Hit {
	hit := Hit{ID: res.ID, Similarity: res.Similarity, Mapping: res.Mapping}
	if res.Record != nil {
		hit.Name = res.Record.Name
		hit.Size = res.Record.Size
		hit.Fields = res.Record.Fields
	}
	return hit
}
