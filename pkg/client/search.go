package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/turtacn/molsearch/pkg/types/molecule"
)

const contentTypeNDJSON = "application/x-ndjson"

// SearchClient runs substructure and similarity queries.
type SearchClient struct {
	client *Client
}

// Substructure streams documents containing the query.
func (s *SearchClient) Substructure(ctx context.Context, req *molecule.SearchRequest) (*HitStream, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", ErrInvalidConfig)
	}
	if err := req.Validate(false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return s.open(ctx, "/api/v1/search/substructure", req)
}

// Similarity streams documents at or above req.Threshold, best first.
func (s *SearchClient) Similarity(ctx context.Context, req *molecule.SearchRequest) (*HitStream, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", ErrInvalidConfig)
	}
	if err := req.Validate(true); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return s.open(ctx, "/api/v1/search/similarity", req)
}

func (s *SearchClient) open(ctx context.Context, path string, req *molecule.SearchRequest) (*HitStream, error) {
	resp, err := s.client.send(ctx, http.MethodPost, path, req, contentTypeNDJSON)
	if err != nil {
		return nil, err
	}
	return &HitStream{body: resp.Body, dec: json.NewDecoder(bufio.NewReader(resp.Body))}, nil
}

// HitStream reads the NDJSON response one hit at a time.  It is not safe
// for concurrent use.  Always Close it.
type HitStream struct {
	body io.ReadCloser
	dec  *json.Decoder
	cur  molecule.Hit
	err  error
	done bool
}

// Next advances to the next hit.  It returns false at the end of the
// stream or on error; check Err afterwards.
func (h *HitStream) Next() bool {
	if h.done {
		return false
	}
	var hit molecule.Hit
	if err := h.dec.Decode(&hit); err != nil {
		h.done = true
		if err != io.EOF {
			h.err = fmt.Errorf("decode hit: %w", err)
		}
		return false
	}
	h.cur = hit
	return true
}

// Hit returns the hit Next advanced to.
func (h *HitStream) Hit() molecule.Hit {
	return h.cur
}

func (h *HitStream) Err() error {
	return h.err
}

// Close releases the connection.  Closing early cancels the server-side
// search.
func (h *HitStream) Close() error {
	h.done = true
	return h.body.Close()
}

// All drains the stream into a slice and closes it.
func (h *HitStream) All() ([]molecule.Hit, error) {
	defer h.Close()
	var hits []molecule.Hit
	for h.Next() {
		hits = append(hits, h.Hit())
	}
	return hits, h.Err()
}
