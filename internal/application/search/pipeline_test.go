package search

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/prometheus"
)

func payloads(n int) []*Payload {
	out := make([]*Payload, n)
	for i := range out {
		out[i] = newPayload(fmt.Sprintf("c-%03d", i), nil)
	}
	return out
}

func acceptAll(_ context.Context, p *Payload) (*Result, error) {
	return &Result{ID: p.ID}, nil
}

func runPipeline(cfg pipelineConfig, n int, v verifier, logger logging.Logger) []*Result {
	s := startPipeline(context.Background(), cfg, payloads(n), v, logger, prometheus.NewNopSearchMetrics())
	return Collect(s)
}

func ids(rs []*Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestPipeline_DeliversAllInOrder(t *testing.T) {
	rs := runPipeline(pipelineConfig{kind: "test", workers: 4}, 50, verifierFunc(acceptAll), logging.NewNopLogger())
	require.Len(t, rs, 50)
	got := ids(rs)
	assert.True(t, slices.IsSorted(got))
}

func TestPipeline_RejectedAndFailingCandidatesAreSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	v := verifierFunc(func(_ context.Context, p *Payload) (*Result, error) {
		switch p.ID {
		case "c-001":
			return nil, nil
		case "c-002":
			return nil, fmt.Errorf("boom")
		}
		return &Result{ID: p.ID}, nil
	})
	rs := runPipeline(pipelineConfig{kind: "test", workers: 2}, 5, v, logging.NewLoggerFromCore(core))
	assert.Equal(t, []string{"c-000", "c-003", "c-004"}, ids(rs))
	assert.Equal(t, 1, logs.FilterMessage("candidate skipped").Len())
}

func TestPipeline_LivenessWhenWorkersPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	var panics atomic.Int32
	v := verifierFunc(func(_ context.Context, p *Payload) (*Result, error) {
		if p.ID == "c-010" || p.ID == "c-050" {
			panics.Add(1)
			panic("verification exploded")
		}
		return &Result{ID: p.ID}, nil
	})

	done := make(chan []*Result, 1)
	go func() {
		done <- runPipeline(pipelineConfig{kind: "test", workers: 4}, 100, v, logging.NewLoggerFromCore(core))
	}()

	var rs []*Result
	select {
	case rs = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never terminated")
	}
	assert.Equal(t, int32(2), panics.Load())
	assert.Len(t, rs, 98)
	assert.NotContains(t, ids(rs), "c-010")
	assert.NotContains(t, ids(rs), "c-050")
	assert.Equal(t, 2, logs.FilterMessage("search worker failed").Len())
}

func TestPipeline_AllWorkersFailStillTerminates(t *testing.T) {
	v := verifierFunc(func(context.Context, *Payload) (*Result, error) { panic("always") })
	done := make(chan []*Result, 1)
	go func() {
		done <- runPipeline(pipelineConfig{kind: "test", workers: 3}, 10, v, logging.NewNopLogger())
	}()
	select {
	case rs := <-done:
		assert.Empty(t, rs)
	case <-time.After(5 * time.Second):
		t.Fatal("stream never terminated")
	}
}

func TestPipeline_SoftCapStopsWorker(t *testing.T) {
	var calls atomic.Int32
	v := verifierFunc(func(ctx context.Context, p *Payload) (*Result, error) {
		calls.Add(1)
		return acceptAll(ctx, p)
	})
	rs := runPipeline(pipelineConfig{kind: "test", workers: 1, max: 10}, 100, v, logging.NewNopLogger())
	assert.Len(t, rs, 10)
	assert.Equal(t, int32(10), calls.Load())
}

func TestPipeline_SoftCapWithManyWorkersLimitsStream(t *testing.T) {
	rs := runPipeline(pipelineConfig{kind: "test", workers: 8, max: 5}, 200, verifierFunc(acceptAll), logging.NewNopLogger())
	assert.Len(t, rs, 5)
}

func TestStream_CloseStopsWorkers(t *testing.T) {
	started := make(chan struct{}, 1)
	v := verifierFunc(func(ctx context.Context, p *Payload) (*Result, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := startPipeline(context.Background(), pipelineConfig{kind: "test", workers: 2}, payloads(10), v,
		logging.NewNopLogger(), prometheus.NewNopSearchMetrics())
	<-started
	s.Close()
	assert.False(t, s.HasNext())
	assert.Nil(t, s.Next())
	require.Eventually(t, func() bool { return s.out.Len() == 1 }, time.Second, 10*time.Millisecond)
}
