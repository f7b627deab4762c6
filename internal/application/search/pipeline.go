package search

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/prometheus"
)

type pipelineConfig struct {
	kind            string
	workers         int
	max             int
	bufferThreshold int
}

// startPipeline enqueues every candidate followed by one PoisonPayload per
// worker, starts the workers and their supervisor, and returns the stream
// reading the output queue.
func startPipeline(ctx context.Context, cfg pipelineConfig, candidates []*Payload, v verifier,
	logger logging.Logger, metrics *prometheus.SearchMetrics) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	in := newCandidateQueue()
	out := NewResultQueue(cfg.bufferThreshold)

	in.PutAll(candidates)
	poison := make([]*Payload, cfg.workers)
	for i := range poison {
		poison[i] = PoisonPayload
	}
	in.PutAll(poison)

	workers := make([]*worker, cfg.workers)
	for i := range workers {
		workers[i] = &worker{
			id:      i,
			kind:    cfg.kind,
			in:      in,
			out:     out,
			verify:  v,
			max:     cfg.max,
			logger:  logger,
			metrics: metrics,
		}
	}
	go supervise(ctx, workers, out, logger, metrics)

	return &Stream{
		ctx:     ctx,
		cancel:  cancel,
		out:     out,
		limit:   cfg.max,
		kind:    cfg.kind,
		started: time.Now(),
		logger:  logger,
		metrics: metrics,
	}
}

// supervise waits for every worker, logs each failure on its own and then
// always ends the output with PoisonResult.
func supervise(ctx context.Context, workers []*worker, out *ResultQueue,
	logger logging.Logger, metrics *prometheus.SearchMetrics) {
	errs := make([]error, len(workers))
	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.run(ctx)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err == nil {
			continue
		}
		metrics.WorkerFailures.WithLabelValues(workers[i].kind).Inc()
		logger.Error("search worker failed", logging.Int("worker", i), logging.Err(err))
	}
	out.Put(PoisonResult)
}

// Stream is the pull-based view of one query's results, best first.  A
// Stream is not safe for concurrent use.  Reading stops after the query's
// result limit, at the end of the results, or when taking from the queue
// fails; a failure is logged rather than returned.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	out    *ResultQueue

	next    *Result
	done    bool
	limit   int
	emitted int

	kind    string
	started time.Time
	logger  logging.Logger
	metrics *prometheus.SearchMetrics
}

// HasNext blocks until a result is available or the stream has ended.
func (s *Stream) HasNext() bool {
	if s.next != nil {
		return true
	}
	if s.done {
		return false
	}
	if s.limit > 0 && s.emitted >= s.limit {
		s.finish()
		return false
	}
	r, err := s.out.Take(s.ctx)
	if err != nil {
		s.logger.Error("result stream ended early", logging.String("kind", s.kind), logging.Err(err))
		s.finish()
		return false
	}
	if r.IsPoison() {
		s.finish()
		return false
	}
	s.next = r
	return true
}

// Next returns the next result, or nil once the stream has ended.
func (s *Stream) Next() *Result {
	if !s.HasNext() {
		return nil
	}
	r := s.next
	s.next = nil
	s.emitted++
	s.metrics.ResultsEmitted.WithLabelValues(s.kind).Inc()
	return r
}

// Close stops the workers and ends the stream.  It is safe to call more
// than once.
func (s *Stream) Close() {
	s.next = nil
	s.finish()
}

func (s *Stream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.cancel()
	s.metrics.QueryDuration.WithLabelValues(s.kind).Observe(time.Since(s.started).Seconds())
}

// Collect drains s into a slice and closes it.
func Collect(s *Stream) []*Result {
	defer s.Close()
	var out []*Result
	for s.HasNext() {
		out = append(out, s.Next())
	}
	return out
}
