package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"

	"github.com/turtacn/molsearch/internal/domain/codebook"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

const (
	contentTypeZstd = "application/zstd"
	metaCount       = "Codebooks"
)

// CodebookRepository keeps the ensemble as a single zstd-compressed JSON
// object.  The previous snapshot is overwritten.
type CodebookRepository struct {
	client *MinIOClient
	logger logging.Logger
}

func NewCodebookRepository(client *MinIOClient, log logging.Logger) *CodebookRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CodebookRepository{client: client, logger: log}
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

func (r *CodebookRepository) Load(ctx context.Context) ([]codebook.Record, error) {
	api := r.client.GetClient()
	if api == nil {
		return nil, ErrClientClosed
	}
	bucket, key := r.client.Bucket(), r.client.ObjectKey()

	if _, err := api.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return []codebook.Record{}, nil
		}
		return nil, errors.Wrap(err, errors.CodeStorage, "failed to stat codebook snapshot")
	}

	obj, err := api.Fetch(ctx, bucket, key)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "failed to download codebook snapshot")
	}
	defer obj.Close()

	dec, err := zstd.NewReader(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to open codebook snapshot")
	}
	defer dec.Close()

	var records []codebook.Record
	if err := json.NewDecoder(dec).Decode(&records); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to decode codebook snapshot")
	}
	if records == nil {
		records = []codebook.Record{}
	}
	return records, nil
}

func (r *CodebookRepository) Save(ctx context.Context, records []codebook.Record) error {
	api := r.client.GetClient()
	if api == nil {
		return ErrClientClosed
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to create compressor")
	}
	if err := json.NewEncoder(enc).Encode(records); err != nil {
		enc.Close()
		return errors.Wrap(err, errors.CodeSerialization, "failed to encode codebooks")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to compress codebooks")
	}

	opts := minio.PutObjectOptions{
		ContentType:  contentTypeZstd,
		UserMetadata: map[string]string{metaCount: strconv.Itoa(len(records))},
	}
	size := int64(buf.Len())
	info, err := api.PutObject(ctx, r.client.Bucket(), r.client.ObjectKey(), io.Reader(&buf), size, opts)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "failed to upload codebook snapshot")
	}
	r.logger.Debug("codebook snapshot uploaded",
		logging.String("key", r.client.ObjectKey()),
		logging.Int64("size", size),
		logging.String("etag", info.ETag))
	return nil
}

var _ codebook.Repository = (*CodebookRepository)(nil)
