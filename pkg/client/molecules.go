package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/turtacn/molsearch/pkg/types/molecule"
)

// MoleculesClient covers document writes and index maintenance.
type MoleculesClient struct {
	client *Client
}

// Add adds or replaces one molecule.  Set req.Commit to make it visible
// to searches immediately.
func (m *MoleculesClient) Add(ctx context.Context, req *molecule.CreateRequest) (*molecule.WriteResponse, error) {
	if req == nil || req.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if err := req.Graph.Validate(); err != nil {
		return nil, fmt.Errorf("%w: graph: %v", ErrInvalidConfig, err)
	}
	var resp molecule.WriteResponse
	if err := m.client.post(ctx, "/api/v1/molecules", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes one molecule.
func (m *MoleculesClient) Delete(ctx context.Context, id string, commit bool) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	path := "/api/v1/molecules/" + url.PathEscape(id)
	if commit {
		path += "?commit=true"
	}
	return m.client.delete(ctx, path)
}

// BulkDelete removes many molecules.  The server commits and recounts the
// codebooks in the background.
func (m *MoleculesClient) BulkDelete(ctx context.Context, ids []string) (*molecule.WriteResponse, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids are required", ErrInvalidConfig)
	}
	var resp molecule.WriteResponse
	if err := m.client.post(ctx, "/api/v1/molecules/bulk-delete", molecule.BulkDeleteRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Commit makes pending writes visible.
func (m *MoleculesClient) Commit(ctx context.Context) error {
	return m.client.post(ctx, "/api/v1/index/commit", nil, nil)
}

// Recount recomputes every codebook count from the stored documents.
func (m *MoleculesClient) Recount(ctx context.Context) error {
	return m.client.do(ctx, http.MethodPost, "/api/v1/index/recount", nil, nil)
}

// Codebooks lists the screening codebooks.
func (m *MoleculesClient) Codebooks(ctx context.Context) ([]molecule.CodebookSummary, error) {
	var out []molecule.CodebookSummary
	if err := m.client.get(ctx, "/api/v1/index/codebooks", &out); err != nil {
		return nil, err
	}
	return out, nil
}
