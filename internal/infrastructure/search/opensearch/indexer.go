package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

var (
	ErrIndexCreationFailed = errors.New(errors.CodeStoreError, "index creation failed")
	ErrBulkFailed          = errors.New(errors.CodeStoreError, "bulk request failed")
)

// BulkAction is the kind of a bulk operation.
type BulkAction string

const (
	BulkIndex  BulkAction = "index"
	BulkDelete BulkAction = "delete"
)

// BulkOp is one bulk operation.  Doc is ignored for deletes.
type BulkOp struct {
	Action BulkAction
	ID     string
	Doc    interface{}
}

// BulkItemError describes a failed bulk item.
type BulkItemError struct {
	DocID     string
	ErrorType string
	Reason    string
}

// BulkResult summarises a bulk call.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// IndexerConfig holds configuration for the Indexer.
type IndexerConfig struct {
	BulkBatchSize int
	// RefreshPolicy is passed to bulk requests; "true" makes writes
	// searchable as soon as the request returns.
	RefreshPolicy string
}

// Indexer manages the molecule index and document ingestion.
type Indexer struct {
	client *Client
	config IndexerConfig
	logger logging.Logger
}

// NewIndexer creates a new Indexer.
func NewIndexer(client *Client, cfg IndexerConfig, logger logging.Logger) *Indexer {
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 500
	}
	if cfg.RefreshPolicy == "" {
		cfg.RefreshPolicy = "true"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Indexer{client: client, config: cfg, logger: logger}
}

// MoleculeIndexMapping is the mapping of the molecule index.  Terms are
// exact-match keywords; graph and fingerprint are opaque binaries.
func MoleculeIndexMapping() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]interface{}{
			"dynamic": "strict",
			"properties": map[string]interface{}{
				"id":          map[string]interface{}{"type": "keyword"},
				"name":        map[string]interface{}{"type": "keyword"},
				"size":        map[string]interface{}{"type": "integer"},
				"graph":       map[string]interface{}{"type": "binary"},
				"fingerprint": map[string]interface{}{"type": "binary"},
				"terms":       map[string]interface{}{"type": "keyword"},
				"fields":      map[string]interface{}{"type": "object", "enabled": false},
			},
		},
	}
}

// EnsureIndex creates indexName with the molecule mapping unless it exists.
func (i *Indexer) EnsureIndex(ctx context.Context, indexName string) error {
	exists, err := i.IndexExists(ctx, indexName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body, err := json.Marshal(MoleculeIndexMapping())
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to marshal index mapping")
	}
	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to create index request")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return handleErrorResponse(resp, ErrIndexCreationFailed)
	}
	i.logger.Info("Index created", logging.String("index", indexName))
	return nil
}

// IndexExists checks if an index exists.
func (i *Indexer) IndexExists(ctx context.Context, indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{indexName}}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return false, errors.Wrap(err, errors.CodeStoreError, "failed to check index existence")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, handleErrorResponse(resp, errors.New(errors.CodeStoreError, "check index existence failed"))
}

// Bulk applies ops in order, in batches of BulkBatchSize.
func (i *Indexer) Bulk(ctx context.Context, indexName string, ops []BulkOp) (*BulkResult, error) {
	result := &BulkResult{}
	for start := 0; start < len(ops); start += i.config.BulkBatchSize {
		end := start + i.config.BulkBatchSize
		if end > len(ops) {
			end = len(ops)
		}
		if err := i.bulkBatch(ctx, indexName, ops[start:end], result); err != nil {
			return result, err
		}
	}
	if len(ops) > 0 {
		i.logger.Debug("Bulk completed",
			logging.Int("total", len(ops)),
			logging.Int("succeeded", result.Succeeded),
			logging.Int("failed", result.Failed))
	}
	return result, nil
}

func (i *Indexer) bulkBatch(ctx context.Context, indexName string, ops []BulkOp, result *BulkResult) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, op := range ops {
		meta := map[string]map[string]string{
			string(op.Action): {"_index": indexName, "_id": op.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return errors.Wrap(err, errors.CodeSerialization, "failed to encode bulk metadata")
		}
		if op.Action == BulkIndex {
			if err := enc.Encode(op.Doc); err != nil {
				return errors.Wrapf(err, errors.CodeSerialization, "failed to encode document %s", op.ID)
			}
		}
	}

	req := opensearchapi.BulkRequest{
		Body:    bytes.NewReader(buf.Bytes()),
		Refresh: i.config.RefreshPolicy,
	}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "bulk request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return handleErrorResponse(resp, ErrBulkFailed)
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to decode bulk response")
	}
	if !bulkResp.Errors {
		result.Succeeded += len(bulkResp.Items)
		return nil
	}
	for _, item := range bulkResp.Items {
		for action, info := range item {
			// deleting a missing document is not a failure
			ok := info.Status >= 200 && info.Status < 300 ||
				(action == string(BulkDelete) && info.Status == http.StatusNotFound)
			if ok {
				result.Succeeded++
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, BulkItemError{
				DocID:     info.ID,
				ErrorType: info.Error.Type,
				Reason:    info.Error.Reason,
			})
		}
	}
	return nil
}

func handleErrorResponse(resp *opensearchapi.Response, defaultErr error) error {
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(bodyBytes, &errResp); err == nil && errResp.Error.Reason != "" {
		return errors.Wrapf(defaultErr, errors.CodeStoreError, "OpenSearch error: %s - %s", errResp.Error.Type, errResp.Error.Reason)
	}
	return errors.Wrapf(defaultErr, errors.CodeStoreError, "OpenSearch error status: %d", resp.StatusCode)
}
