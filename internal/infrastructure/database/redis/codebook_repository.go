package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/molsearch/internal/domain/codebook"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

// CodebookRepository stores the codebook ensemble as one JSON document.
// Saves are serialised across processes with a Mutex and bump a version
// counter so readers can tell snapshots apart.
type CodebookRepository struct {
	client     *Client
	key        string
	versionKey string
	lockOpts   []LockOption
	logger     logging.Logger
}

func NewCodebookRepository(client *Client, log logging.Logger, lockOpts ...LockOption) *CodebookRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CodebookRepository{
		client:     client,
		key:        client.KeyPrefix() + "codebooks",
		versionKey: client.KeyPrefix() + "codebooks:version",
		lockOpts:   lockOpts,
		logger:     log,
	}
}

func (r *CodebookRepository) Load(ctx context.Context) ([]codebook.Record, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return []codebook.Record{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "failed to load codebooks")
	}
	var records []codebook.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to decode codebooks")
	}
	return records, nil
}

func (r *CodebookRepository) Save(ctx context.Context, records []codebook.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to encode codebooks")
	}

	mu := NewMutex(r.client, "codebooks", r.logger, r.lockOpts...)
	if err := mu.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if uerr := mu.Unlock(ctx); uerr != nil {
			r.logger.Warn("failed to release codebook lock", logging.Err(uerr))
		}
	}()

	if err := r.client.Set(ctx, r.key, string(data), 0).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to save codebooks")
	}
	version, err := r.client.Incr(ctx, r.versionKey).Result()
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to bump codebook version")
	}
	r.logger.Debug("codebooks saved",
		logging.Int("count", len(records)),
		logging.Int64("version", version))
	return nil
}

var _ codebook.Repository = (*CodebookRepository)(nil)
