package search

import (
	"context"
	"time"

	"github.com/turtacn/molsearch/internal/domain/match"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molsearch/pkg/errors"
)

// verifier decides one candidate.  A nil result with a nil error means the
// candidate was rejected.
type verifier interface {
	Verify(ctx context.Context, p *Payload) (*Result, error)
}

type verifierFunc func(ctx context.Context, p *Payload) (*Result, error)

func (f verifierFunc) Verify(ctx context.Context, p *Payload) (*Result, error) { return f(ctx, p) }

type similarityVerifier struct {
	query     *molecule.Fingerprint
	threshold float64
}

func (v *similarityVerifier) Verify(ctx context.Context, p *Payload) (*Result, error) {
	fp, err := p.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	sim := v.query.Tanimoto(fp)
	if sim < v.threshold {
		return nil, nil
	}
	rec, err := p.Record(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{ID: p.ID, Record: rec, Similarity: &sim, payload: p}, nil
}

type substructureVerifier struct {
	query   molecule.Graph
	fp      *molecule.Fingerprint
	opts    []match.Option
	timeout time.Duration
}

func (v *substructureVerifier) Verify(ctx context.Context, p *Payload) (*Result, error) {
	fp, err := p.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	if !fp.Contains(v.fp) {
		return nil, nil
	}
	g, err := p.Graph(ctx)
	if err != nil {
		return nil, err
	}
	mctx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	mapping, ok, err := match.FindEmbedding(mctx, v.query, g, v.opts...)
	if err != nil || !ok {
		return nil, err
	}
	rec, err := p.Record(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{ID: p.ID, Record: rec, Mapping: mapping, payload: p}, nil
}

type worker struct {
	id      int
	kind    string
	in      *candidateQueue
	out     *ResultQueue
	verify  verifier
	max     int
	logger  logging.Logger
	metrics *prometheus.SearchMetrics
}

// run pulls candidates until it sees PoisonPayload, the soft cap is reached
// or ctx ends.  Candidate errors are logged and skipped; a panic ends the
// worker with an error.
func (w *worker) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.CodeInternal, "worker %d panicked: %v", w.id, r)
		}
	}()
	for {
		if ctx.Err() != nil {
			return nil
		}
		// Soft cap: workers check independently and may overshoot max.
		if w.max > 0 && w.out.Len() >= w.max {
			return nil
		}
		p := w.in.Take()
		if p.IsPoison() {
			return nil
		}
		w.metrics.CandidatesScreened.WithLabelValues(w.kind).Inc()
		res, verr := w.verify.Verify(ctx, p)
		if verr != nil {
			w.skip(ctx, p, verr)
			continue
		}
		if res == nil {
			continue
		}
		w.metrics.CandidatesVerified.WithLabelValues(w.kind).Inc()
		w.out.Put(res)
	}
}

func (w *worker) skip(ctx context.Context, p *Payload, err error) {
	if ctx.Err() != nil {
		return
	}
	if errors.IsCode(err, errors.CodeGraphDecodeFailed) || errors.IsCode(err, errors.CodeInvalidFingerprint) {
		w.metrics.DecodeFailures.WithLabelValues(w.kind).Inc()
	}
	w.logger.Warn("candidate skipped",
		logging.Int("worker", w.id),
		logging.String("id", p.ID),
		logging.Err(err))
}
