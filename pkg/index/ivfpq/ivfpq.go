// Package ivfpq composes the inverted-file core with product quantization:
// coarse routing narrows a search to a handful of posting lists, and a
// product-quantized code keeps each list's entries small. It is a thin
// wrapper over ivf.Index, rather than a standalone implementation — all
// clustering, probing, and posting-list management is delegated to the
// core and the only local state is the configuration needed to
// reconstruct that wiring on Load.
package ivfpq

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ivfgo/ivfgo/pkg/index/flat"
	"github.com/ivfgo/ivfgo/pkg/index/ivf"
	"github.com/ivfgo/ivfgo/pkg/index/pq"
	"github.com/ivfgo/ivfgo/pkg/index/stats"
	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/storage"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// Config holds IVFPQ configuration.
type Config struct {
	Metric string
	Nlist  int // number of IVF clusters
	M      int // number of PQ subquantizers
	Nbits  int // bits per PQ code
}

// DefaultConfig returns default IVFPQ configuration sized to numVectors
// and dim.
func DefaultConfig(numVectors, dim int) Config {
	nlist := int(math.Sqrt(float64(numVectors)))
	if nlist < 10 {
		nlist = 10
	}
	if nlist > 65536 {
		nlist = 65536
	}

	m := 8
	if dim%m != 0 {
		for m = 8; m <= 32; m++ {
			if dim%m == 0 {
				break
			}
		}
		if dim%m != 0 {
			m = 4
		}
	}

	return Config{
		Metric: "l2",
		Nlist:  nlist,
		M:      m,
		Nbits:  8,
	}
}

// Index implements IVF+PQ by pairing a flat coarse quantizer with a
// product-quantizer codec over an ivf.Index core.
type Index struct {
	mu sync.RWMutex

	dim        int
	metricType string
	nlist      int
	m          int
	nbits      int
	ksub       int

	quantizer *flat.Quantizer
	codec     *pq.ProductQuantizer
	core      *ivf.Index
}

// New creates a new IVFPQ index.
func New(dim int, metricType string, config Config) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}
	if config.Nlist <= 0 {
		return nil, fmt.Errorf("nlist must be positive")
	}
	if config.M <= 0 {
		return nil, fmt.Errorf("M must be positive")
	}
	if dim%config.M != 0 {
		return nil, fmt.Errorf("dimension %d must be divisible by M %d", dim, config.M)
	}
	if config.Nbits <= 0 || config.Nbits > 16 {
		return nil, fmt.Errorf("nbits must be in [1,16]")
	}

	m, err := metric.New(metric.Type(metricType))
	if err != nil {
		return nil, err
	}

	q := flat.NewQuantizer(dim, m)
	codec, err := pq.NewProductQuantizer(dim, config.M, config.Nbits, m)
	if err != nil {
		return nil, err
	}

	cfg := ivf.Config{
		Metric:       metricType,
		Nlist:        config.Nlist,
		Nprobe:       1,
		ParallelMode: ivf.ParallelByQuery,
		DirectMap:    ivf.DirectMapHash,
	}
	core, err := ivf.New(dim, q, codec, cfg, ivf.TrainsAloneDefault)
	if err != nil {
		return nil, err
	}

	return &Index{
		dim:        dim,
		metricType: metricType,
		nlist:      config.Nlist,
		m:          config.M,
		nbits:      config.Nbits,
		ksub:       1 << config.Nbits,
		quantizer:  q,
		codec:      codec,
		core:       core,
	}, nil
}

// Train trains the IVFPQ index: coarse clustering, then per-subspace PQ
// codebooks fit against the residual.
func (idx *Index) Train(vectors []vector.Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(vectors) < idx.nlist*10 {
		return fmt.Errorf("need at least %d vectors for training", idx.nlist*10)
	}
	return idx.core.Train(vectors)
}

// IsTrained returns whether the index is trained.
func (idx *Index) IsTrained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.core.IsTrained()
}

// Add adds vectors to the index. The index must be trained first.
func (idx *Index) Add(vectors []vector.Vector) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.core.Add(vectors)
}

// Search finds k nearest neighbors, probing nprobe lists.
func (idx *Index) Search(query []float32, k int, nprobe int) ([]vector.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out, err := idx.core.SearchN(context.Background(), [][]float32{query}, k, nprobe)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// BatchSearch performs batch search.
func (idx *Index) BatchSearch(queries [][]float32, k int, nprobe int) ([][]vector.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.core.SearchN(context.Background(), queries, k, nprobe)
}

// Remove deletes the vectors stored under ids.
func (idx *Index) Remove(id int64) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	removed, err := idx.core.RemoveIDs([]int64{id})
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("id %d not found", id)
	}
	return nil
}

// Size returns total number of vectors.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.core.Ntotal())
}

// Dimension returns vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// Stats returns index statistics.
func (idx *Index) Stats() stats.Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	coreStats := idx.core.Stats()
	codeSize := idx.m // CodeSize() == m for nbits<=8; close enough for the ratio below when nbits>8
	if idx.nbits > 8 {
		codeSize = idx.m * 2
	}
	originalSize := int(idx.core.Ntotal()) * idx.dim * 4
	compressedSize := int(idx.core.Ntotal()) * codeSize
	compressionRatio := 1.0
	if compressedSize > 0 {
		compressionRatio = float64(originalSize) / float64(compressedSize)
	}

	coreStats.IndexType = "IVFPQ"
	coreStats.ExtraInfo["M"] = idx.m
	coreStats.ExtraInfo["Nbits"] = idx.nbits
	coreStats.ExtraInfo["Ksub"] = idx.ksub
	coreStats.ExtraInfo["compressionRatio"] = compressionRatio
	return coreStats
}

// Save serializes the IVFPQ index: its configuration, the coarse
// quantizer's centroids, the PQ codec's codebooks, and the ivf.Index core.
func (idx *Index) Save(w storage.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := w.Encode(idx.dim); err != nil {
		return err
	}
	if err := w.Encode(idx.metricType); err != nil {
		return err
	}
	if err := w.Encode(idx.nlist); err != nil {
		return err
	}
	if err := w.Encode(idx.m); err != nil {
		return err
	}
	if err := w.Encode(idx.nbits); err != nil {
		return err
	}
	if err := w.Encode(idx.quantizer.Centroids()); err != nil {
		return err
	}
	if err := w.Encode(idx.codec.Codebooks()); err != nil {
		return err
	}
	return idx.core.Save(w)
}

// Load deserializes the IVFPQ index, reconstructing the coarse quantizer
// and codec before restoring the core's posting lists.
func (idx *Index) Load(r storage.Reader) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var dim, nlist, m, nbits int
	var metricType string
	if err := r.Decode(&dim); err != nil {
		return err
	}
	if err := r.Decode(&metricType); err != nil {
		return err
	}
	if err := r.Decode(&nlist); err != nil {
		return err
	}
	if err := r.Decode(&m); err != nil {
		return err
	}
	if err := r.Decode(&nbits); err != nil {
		return err
	}

	var centroids []vector.Vector
	if err := r.Decode(&centroids); err != nil {
		return err
	}
	var codebooks [][]float32
	if err := r.Decode(&codebooks); err != nil {
		return err
	}

	fresh, err := New(dim, metricType, Config{Metric: metricType, Nlist: nlist, M: m, Nbits: nbits})
	if err != nil {
		return err
	}
	fresh.quantizer.LoadCentroids(centroids)
	fresh.codec.LoadCodebooks(codebooks)
	if err := fresh.core.Load(r); err != nil {
		return err
	}

	idx.dim = fresh.dim
	idx.metricType = fresh.metricType
	idx.nlist = fresh.nlist
	idx.m = fresh.m
	idx.nbits = fresh.nbits
	idx.ksub = fresh.ksub
	idx.quantizer = fresh.quantizer
	idx.codec = fresh.codec
	idx.core = fresh.core
	return nil
}
