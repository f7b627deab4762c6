// Package molecule defines the public wire types of the molsearch HTTP API.
// No domain logic lives here, only plain data types that client code can
// import without pulling in the server.
package molecule

import (
	"fmt"
	"math"
)

// Bond orders as they appear on the wire.  OrderAny is only meaningful in
// queries.
const (
	OrderAny = iota
	OrderSingle
	OrderDouble
	OrderTriple
	OrderAromatic
)

// Atom is one graph node.
type Atom struct {
	Element  string `json:"element"`
	Charge   int    `json:"charge,omitempty"`
	Aromatic bool   `json:"aromatic,omitempty"`
}

// Bond joins atoms From and To.
type Bond struct {
	From  int `json:"from"`
	To    int `json:"to"`
	Order int `json:"order"`
}

// Molecule is the JSON interchange form of a molecular graph.
type Molecule struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Atoms []Atom `json:"atoms"`
	Bonds []Bond `json:"bonds"`
}

// Validate checks what a client can check without the server: at least one
// atom, bond endpoints in range, known orders.
func (m *Molecule) Validate() error {
	if m == nil || len(m.Atoms) == 0 {
		return fmt.Errorf("molecule has no atoms")
	}
	for i, b := range m.Bonds {
		if b.From < 0 || b.From >= len(m.Atoms) || b.To < 0 || b.To >= len(m.Atoms) {
			return fmt.Errorf("bond %d references an atom out of range", i)
		}
		if b.From == b.To {
			return fmt.Errorf("bond %d is a self loop", i)
		}
		if b.Order < OrderAny || b.Order > OrderAromatic {
			return fmt.Errorf("bond %d has unknown order %d", i, b.Order)
		}
	}
	return nil
}

// CreateRequest adds or replaces one molecule.
type CreateRequest struct {
	ID     string            `json:"id"`
	Name   string            `json:"name,omitempty"`
	Graph  *Molecule         `json:"graph"`
	Fields map[string]string `json:"fields,omitempty"`
	Commit bool              `json:"commit,omitempty"`
}

// BulkDeleteRequest removes many molecules and recounts afterwards.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// WriteResponse acknowledges a write.
type WriteResponse struct {
	ID        string `json:"id,omitempty"`
	Count     int    `json:"count,omitempty"`
	Committed bool   `json:"committed"`
}

// SearchRequest is the body of both search endpoints.  Nil MaxResults
// means the server default; 0 means unlimited.
type SearchRequest struct {
	Query      *Molecule `json:"query"`
	Threshold  *float64  `json:"threshold,omitempty"`
	MaxResults *int      `json:"max_results,omitempty"`
	Workers    int       `json:"workers,omitempty"`
	Annotate   bool      `json:"annotate,omitempty"`
}

// Validate checks the request.  similarity requires a threshold in [0, 1].
func (r *SearchRequest) Validate(similarity bool) error {
	if err := r.Query.Validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if r.MaxResults != nil && *r.MaxResults < 0 {
		return fmt.Errorf("max_results must not be negative")
	}
	if r.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if similarity {
		if r.Threshold == nil {
			return fmt.Errorf("threshold is required")
		}
		if math.IsNaN(*r.Threshold) || *r.Threshold < 0 || *r.Threshold > 1 {
			return fmt.Errorf("threshold %v is outside [0, 1]", *r.Threshold)
		}
	}
	return nil
}

// Hit is one line of the NDJSON search response.
type Hit struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Size         int               `json:"size"`
	Similarity   *float64          `json:"similarity,omitempty"`
	Mapping      []int             `json:"mapping,omitempty"`
	MatchedAtoms []int             `json:"matched_atoms,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
}

// CodebookSummary describes one screening codebook.
type CodebookSummary struct {
	ID         string `json:"id"`
	Dictionary []int  `json:"dictionary"`
	Documents  int64  `json:"documents"`
	UsedCodes  int    `json:"used_codes"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
