package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molsearch/internal/application/search"
	"github.com/turtacn/molsearch/internal/config"
	"github.com/turtacn/molsearch/internal/domain/codebook"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/infrastructure/store/memstore"
	"github.com/turtacn/molsearch/internal/testutil"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Fingerprint.Bits = 256
	cfg.Fingerprint.MaxPathLength = 5
	cfg.Codebook.Count = 8
	cfg.Codebook.Seed = 7
	cfg.Metrics.Enabled = true
	config.ApplyDefaults(cfg)
	return cfg
}

func benzene() molecule.Graph {
	return testutil.MustGraph(testutil.Benzene("benzene"))
}

func TestNew_MemoryBackends(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), logging.NewNopLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.Indexer.Records(), 8)
	assert.NotNil(t, a.MetricsHandler())
	require.Len(t, a.Checkers, 1)
	assert.Equal(t, "store", a.Checkers[0].Name())
	assert.NoError(t, a.Checkers[0].Check(ctx))

	require.NoError(t, a.Indexer.Add(ctx, "benzene", "benzene", benzene(), nil))
	require.NoError(t, a.Indexer.Commit(ctx))

	stream, err := a.Engine.Substructure(ctx, benzene(), 0, 2)
	require.NoError(t, err)
	results := search.Collect(stream)
	require.Len(t, results, 1)
	assert.Equal(t, "benzene", results[0].ID)
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.MetricsHandler())
	assert.NotNil(t, a.Metrics)
}

func TestNew_ReopensPersistedCodebooks(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(nil)
	repo := codebook.NewMemoryRepository()

	first, err := New(ctx, testConfig(), nil, WithStore(store), WithRepository(repo))
	require.NoError(t, err)
	require.NoError(t, first.Indexer.Add(ctx, "benzene", "", benzene(), nil))
	require.NoError(t, first.Indexer.Commit(ctx))
	want := first.Indexer.Records()
	require.NoError(t, first.Close())

	// A different seed must not matter once codebooks are persisted.
	cfg := testConfig()
	cfg.Codebook.Seed = 99
	second, err := New(ctx, cfg, nil, WithStore(store), WithRepository(repo))
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, want, second.Indexer.Records())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Fingerprint.MaxPathLength = -1
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestKafkaDisabled(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.NoError(t, a.StartIndexConsumer(context.Background()))
	_, _, err = a.NewEventPublisher()
	assert.Error(t, err)
}
