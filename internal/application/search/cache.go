package search

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/prometheus"
)

type cachedGraph struct {
	sum   uint64
	graph *molecule.MolGraph
}

// GraphCache memoises decoded graphs across queries, keyed by document id.
// Entries also carry a checksum of the encoded graph so a record replaced
// behind the cache's back is decoded afresh.
type GraphCache struct {
	lru     *lru.Cache[string, cachedGraph]
	metrics *prometheus.SearchMetrics
}

// NewGraphCache returns a cache of size entries; size <= 0 disables caching.
func NewGraphCache(size int, metrics *prometheus.SearchMetrics) *GraphCache {
	if metrics == nil {
		metrics = prometheus.NewNopSearchMetrics()
	}
	c := &GraphCache{metrics: metrics}
	if size > 0 {
		// only fails for non-positive sizes
		c.lru, _ = lru.New[string, cachedGraph](size)
	}
	return c
}

// Get returns the decoded graph of document id whose encoded form is data.
func (c *GraphCache) Get(id string, data []byte) (*molecule.MolGraph, error) {
	if c == nil || c.lru == nil {
		return molecule.DecodeGraph(data)
	}
	sum := xxhash.Sum64(data)
	if e, ok := c.lru.Get(id); ok && e.sum == sum {
		c.metrics.GraphCacheHits.WithLabelValues().Inc()
		return e.graph, nil
	}
	c.metrics.GraphCacheMisses.WithLabelValues().Inc()
	g, err := molecule.DecodeGraph(data)
	if err != nil {
		return nil, err
	}
	c.lru.Add(id, cachedGraph{sum: sum, graph: g})
	return g, nil
}

// Invalidate drops the entry of id.
func (c *GraphCache) Invalidate(id string) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Remove(id)
}

// Purge drops every entry.
func (c *GraphCache) Purge() {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Purge()
}

func (c *GraphCache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
