package search

import (
	"context"
	"fmt"
	"time"

	"github.com/ivfgo/ivfgo/pkg/codec"
	"github.com/ivfgo/ivfgo/pkg/index/flat"
	"github.com/ivfgo/ivfgo/pkg/index/hnsw"
	"github.com/ivfgo/ivfgo/pkg/index/ivf"
	"github.com/ivfgo/ivfgo/pkg/index/ivfpq"
	"github.com/ivfgo/ivfgo/pkg/index/pq"
	"github.com/ivfgo/ivfgo/pkg/index/stats"
	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// Searcher provides a unified interface for all index types
type Searcher struct {
	idx        interface{}
	indexType  string
	searchOpts SearchOptions
}

// SearchOptions holds search parameters
type SearchOptions struct {
	K           int                    // number of results
	Nprobe      int                    // for IVF-based indexes
	EfSearch    int                    // for HNSW
	ExtraParams map[string]interface{} // additional parameters
}

// DefaultSearchOptions returns default search options
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		K:           10,
		Nprobe:      10,
		EfSearch:    50,
		ExtraParams: make(map[string]interface{}),
	}
}

// NewSearcher creates a new searcher for any index type
func NewSearcher(idx interface{}, opts SearchOptions) (*Searcher, error) {
	indexType, err := detectIndexType(idx)
	if err != nil {
		return nil, err
	}

	return &Searcher{
		idx:        idx,
		indexType:  indexType,
		searchOpts: opts,
	}, nil
}

// Search performs a search with the configured options
func (s *Searcher) Search(query []float32) ([]vector.SearchResult, error) {
	return s.SearchWithK(query, s.searchOpts.K)
}

// SearchWithK performs a search for k results
func (s *Searcher) SearchWithK(query []float32, k int) ([]vector.SearchResult, error) {
	switch v := s.idx.(type) {
	case *flat.Index:
		return v.Search(query, k)
	case *hnsw.Index:
		return v.Search(query, k)
	case *pq.Index:
		return v.Search(query, k)
	case *ivf.Index:
		return v.Search(context.Background(), query, k)
	case *ivfpq.Index:
		return v.Search(query, k, s.searchOpts.Nprobe)
	default:
		return nil, fmt.Errorf("unsupported index type")
	}
}

// BatchSearch performs batch search
func (s *Searcher) BatchSearch(queries [][]float32) ([][]vector.SearchResult, error) {
	return s.BatchSearchWithK(queries, s.searchOpts.K)
}

// BatchSearchWithK performs batch search for k results
func (s *Searcher) BatchSearchWithK(queries [][]float32, k int) ([][]vector.SearchResult, error) {
	switch v := s.idx.(type) {
	case *flat.Index:
		return v.BatchSearch(queries, k)
	case *hnsw.Index:
		return v.BatchSearch(queries, k)
	case *pq.Index:
		return v.BatchSearch(queries, k)
	case *ivf.Index:
		return v.BatchSearch(context.Background(), queries, k)
	case *ivfpq.Index:
		return v.BatchSearch(queries, k, s.searchOpts.Nprobe)
	default:
		return nil, fmt.Errorf("unsupported index type")
	}
}

// UpdateOptions updates search options
func (s *Searcher) UpdateOptions(opts SearchOptions) {
	s.searchOpts = opts

	switch v := s.idx.(type) {
	case *hnsw.Index:
		v.SetEfSearch(opts.EfSearch)
	case *ivf.Index:
		v.SetNprobe(opts.Nprobe)
	}
}

// Stats returns index statistics
func (s *Searcher) Stats() stats.Stats {
	switch v := s.idx.(type) {
	case *flat.Index:
		return v.Stats()
	case *hnsw.Index:
		return v.Stats()
	case *pq.Index:
		return v.Stats()
	case *ivf.Index:
		return v.Stats()
	case *ivfpq.Index:
		return v.Stats()
	default:
		return stats.Stats{}
	}
}

// SearchResultWithMetadata wraps results with metadata
type SearchResultWithMetadata struct {
	Results   []vector.SearchResult
	QueryTime time.Duration
	IndexType string
}

// SearchWithMetadata performs search and returns timing information
func (s *Searcher) SearchWithMetadata(query []float32) (*SearchResultWithMetadata, error) {
	start := time.Now()
	results, err := s.Search(query)
	if err != nil {
		return nil, err
	}

	return &SearchResultWithMetadata{
		Results:   results,
		QueryTime: time.Since(start),
		IndexType: s.indexType,
	}, nil
}

// RangeSearch finds all vectors within a distance threshold. The ivf.Index
// case delegates to its own radius-aware RangeSearch; every other index
// type falls back to searching with a widened k and filtering by radius.
func (s *Searcher) RangeSearch(query []float32, threshold float32, maxResults int) ([]vector.SearchResult, error) {
	if ivfIdx, ok := s.idx.(*ivf.Index); ok {
		res, err := ivfIdx.RangeSearch(context.Background(), [][]float32{query}, threshold)
		if err != nil {
			return nil, err
		}
		out := make([]vector.SearchResult, len(res[0].IDs))
		for i, id := range res[0].IDs {
			out[i] = vector.SearchResult{ID: id, Distance: res[0].Distances[i]}
		}
		if maxResults > 0 && len(out) > maxResults {
			out = out[:maxResults]
		}
		return out, nil
	}

	k := s.searchOpts.K * 10
	if maxResults > 0 && k > maxResults {
		k = maxResults
	}

	results, err := s.SearchWithK(query, k)
	if err != nil {
		return nil, err
	}

	filtered := make([]vector.SearchResult, 0)
	for _, r := range results {
		if r.Distance <= threshold {
			filtered = append(filtered, r)
			if maxResults > 0 && len(filtered) >= maxResults {
				break
			}
		}
	}

	return filtered, nil
}

// Helper functions

func detectIndexType(idx interface{}) (string, error) {
	switch idx.(type) {
	case *flat.Index:
		return "flat", nil
	case *hnsw.Index:
		return "hnsw", nil
	case *pq.Index:
		return "pq", nil
	case *ivf.Index:
		return "ivf", nil
	case *ivfpq.Index:
		return "ivfpq", nil
	default:
		return "", fmt.Errorf("unknown index type")
	}
}

// Builder provides a fluent API for creating searchers
type Builder struct {
	indexType  string
	dimension  int
	metric     string
	indexOpts  map[string]interface{}
	searchOpts SearchOptions
}

// NewBuilder creates a new search builder
func NewBuilder() *Builder {
	return &Builder{
		indexType:  "hnsw",
		dimension:  128,
		metric:     "l2",
		indexOpts:  make(map[string]interface{}),
		searchOpts: DefaultSearchOptions(),
	}
}

// WithIndexType sets the index type
func (b *Builder) WithIndexType(indexType string) *Builder {
	b.indexType = indexType
	return b
}

// WithDimension sets the vector dimension
func (b *Builder) WithDimension(dim int) *Builder {
	b.dimension = dim
	return b
}

// WithMetric sets the distance metric
func (b *Builder) WithMetric(metric string) *Builder {
	b.metric = metric
	return b
}

// WithIndexOption sets an index-specific option
func (b *Builder) WithIndexOption(key string, value interface{}) *Builder {
	b.indexOpts[key] = value
	return b
}

// WithSearchOptions sets search options
func (b *Builder) WithSearchOptions(opts SearchOptions) *Builder {
	b.searchOpts = opts
	return b
}

// Build creates the index and searcher
func (b *Builder) Build() (*Searcher, error) {
	var idx interface{}
	var err error

	switch b.indexType {
	case "flat":
		idx, err = flat.New(b.dimension, b.metric)

	case "hnsw":
		config := hnsw.Config{
			Metric:         b.metric,
			M:              getIntOpt(b.indexOpts, "M", 16),
			EfConstruction: getIntOpt(b.indexOpts, "efConstruction", 200),
			EfSearch:       getIntOpt(b.indexOpts, "efSearch", 50),
		}
		idx, err = hnsw.New(b.dimension, b.metric, config)

	case "pq":
		config := pq.Config{
			M:     getIntOpt(b.indexOpts, "M", 8),
			Nbits: getIntOpt(b.indexOpts, "nbits", 8),
		}
		idx, err = pq.NewIndex(b.dimension, config)

	case "ivf":
		idx, err = b.buildIVF()

	case "ivfpq":
		config := ivfpq.Config{
			Metric: b.metric,
			Nlist:  getIntOpt(b.indexOpts, "nlist", 100),
			M:      getIntOpt(b.indexOpts, "M", 8),
			Nbits:  getIntOpt(b.indexOpts, "nbits", 8),
		}
		idx, err = ivfpq.New(b.dimension, b.metric, config)

	default:
		return nil, fmt.Errorf("unknown index type: %s", b.indexType)
	}

	if err != nil {
		return nil, err
	}

	return NewSearcher(idx, b.searchOpts)
}

// buildIVF wires a flat coarse quantizer with a flat (uncompressed) codec,
// the "IVF-Flat" configuration — full-precision codes routed through
// coarse posting lists, as opposed to ivfpq's compressed codes.
func (b *Builder) buildIVF() (*ivf.Index, error) {
	m, err := metric.New(metric.Type(b.metric))
	if err != nil {
		return nil, err
	}
	quantizer := flat.NewQuantizer(b.dimension, m)
	codecImpl := codec.NewFlatCodec(b.dimension, m)
	cfg := ivf.Config{
		Metric:       b.metric,
		Nlist:        getIntOpt(b.indexOpts, "nlist", 100),
		Nprobe:       b.searchOpts.Nprobe,
		ParallelMode: ivf.ParallelByQuery,
		DirectMap:    ivf.DirectMapHash,
	}
	return ivf.New(b.dimension, quantizer, codecImpl, cfg, ivf.TrainsAloneDefault)
}

func getIntOpt(opts map[string]interface{}, key string, defaultVal int) int {
	if v, ok := opts[key]; ok {
		if intVal, ok := v.(int); ok {
			return intVal
		}
	}
	return defaultVal
}
