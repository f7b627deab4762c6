package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

// SearcherConfig holds configuration for the Searcher.
type SearcherConfig struct {
	ScrollSize      int
	ScrollKeepAlive time.Duration
}

// Searcher runs read requests against an index.
type Searcher struct {
	client *Client
	config SearcherConfig
	logger logging.Logger
}

// NewSearcher creates a new Searcher.
func NewSearcher(client *Client, cfg SearcherConfig, logger logging.Logger) *Searcher {
	if cfg.ScrollSize <= 0 {
		cfg.ScrollSize = 1000
	}
	if cfg.ScrollKeepAlive <= 0 {
		cfg.ScrollKeepAlive = time.Minute
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Searcher{client: client, config: cfg, logger: logger}
}

// MatchAll is the match_all query.
func MatchAll() map[string]interface{} {
	return map[string]interface{}{"match_all": map[string]interface{}{}}
}

// TermsQuery matches documents whose field holds any of values.
func TermsQuery(field string, values []string) map[string]interface{} {
	return map[string]interface{}{"terms": map[string]interface{}{field: values}}
}

// TermQuery matches documents whose field holds value.
func TermQuery(field, value string) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

// Get fetches the _source of one document.  found is false for unknown ids.
func (s *Searcher) Get(ctx context.Context, indexName, id string, out interface{}) (bool, error) {
	req := opensearchapi.GetRequest{Index: indexName, DocumentID: id}
	resp, err := req.Do(ctx, s.client.GetClient())
	if err != nil {
		return false, errors.Wrap(err, errors.CodeStoreError, "get request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, handleErrorResponse(resp, errors.New(errors.CodeStoreError, "get failed"))
	}

	var body struct {
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, errors.Wrap(err, errors.CodeSerialization, "failed to decode get response")
	}
	if !body.Found {
		return false, nil
	}
	if err := json.Unmarshal(body.Source, out); err != nil {
		return false, errors.Wrap(err, errors.CodeSerialization, "failed to decode document source")
	}
	return true, nil
}

// Count returns the number of documents matching query.
func (s *Searcher) Count(ctx context.Context, indexName string, query map[string]interface{}) (int64, error) {
	body, err := json.Marshal(map[string]interface{}{"query": query})
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeSerialization, "failed to marshal count query")
	}
	req := opensearchapi.CountRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, s.client.GetClient())
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeStoreError, "count request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return 0, handleErrorResponse(resp, errors.New(errors.CodeStoreError, "count failed"))
	}
	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&countResp); err != nil {
		return 0, errors.Wrap(err, errors.CodeSerialization, "failed to decode count response")
	}
	return countResp.Count, nil
}

type scrollPage struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// ScrollIDs returns the ids of every document matching query, paging with
// the scroll API.
func (s *Searcher) ScrollIDs(ctx context.Context, indexName string, query map[string]interface{}) ([]string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query":   query,
		"size":    s.config.ScrollSize,
		"_source": false,
		"sort":    []string{"_doc"},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to marshal scroll query")
	}

	req := opensearchapi.SearchRequest{
		Index:  []string{indexName},
		Body:   bytes.NewReader(body),
		Scroll: s.config.ScrollKeepAlive,
	}
	resp, err := req.Do(ctx, s.client.GetClient())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "initial scroll request failed")
	}
	page, err := decodeScrollPage(resp)
	if err != nil {
		return nil, err
	}

	var ids []string
	scrollID := page.ScrollID
	defer s.clearScroll(ctx, &scrollID)

	for len(page.Hits.Hits) > 0 {
		for _, h := range page.Hits.Hits {
			ids = append(ids, h.ID)
		}
		if scrollID == "" {
			break
		}
		next := opensearchapi.ScrollRequest{ScrollID: scrollID, Scroll: s.config.ScrollKeepAlive}
		resp, err := next.Do(ctx, s.client.GetClient())
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreError, "scroll request failed")
		}
		if page, err = decodeScrollPage(resp); err != nil {
			return nil, err
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}
	return ids, nil
}

func decodeScrollPage(resp *opensearchapi.Response) (*scrollPage, error) {
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, handleErrorResponse(resp, errors.New(errors.CodeStoreError, "scroll failed"))
	}
	var page scrollPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to decode scroll response")
	}
	return &page, nil
}

func (s *Searcher) clearScroll(ctx context.Context, scrollID *string) {
	if *scrollID == "" {
		return
	}
	req := opensearchapi.ClearScrollRequest{ScrollID: []string{*scrollID}}
	resp, err := req.Do(ctx, s.client.GetClient())
	if err != nil {
		s.logger.Warn("clear scroll failed", logging.Err(err))
		return
	}
	resp.Body.Close()
}
