package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ivfgo/ivfgo/pkg/codec"
	"github.com/ivfgo/ivfgo/pkg/index/flat"
	"github.com/ivfgo/ivfgo/pkg/index/hnsw"
	"github.com/ivfgo/ivfgo/pkg/index/ivf"
	"github.com/ivfgo/ivfgo/pkg/index/ivfpq"
	"github.com/ivfgo/ivfgo/pkg/index/pq"
	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

func main() {
	// Define commands
	benchCmd := flag.NewFlagSet("bench", flag.ExitOnError)
	buildCmd := flag.NewFlagSet("build", flag.ExitOnError)
	searchCmd := flag.NewFlagSet("search", flag.ExitOnError)
	mergeCmd := flag.NewFlagSet("merge", flag.ExitOnError)
	subsetCmd := flag.NewFlagSet("subset", flag.ExitOnError)

	// Benchmark flags
	benchType := benchCmd.String("type", "hnsw", "Index type (flat, hnsw, pq, ivf, ivf-hnsw, ivfpq)")
	benchVectors := benchCmd.Int("vectors", 10000, "Number of vectors")
	benchDim := benchCmd.Int("dim", 128, "Vector dimension")
	benchQueries := benchCmd.Int("queries", 100, "Number of queries")
	benchNlist := benchCmd.Int("nlist", 100, "Number of IVF posting lists (ivf, ivfpq)")
	benchNprobe := benchCmd.Int("nprobe", 8, "Number of IVF lists probed per query (ivf, ivfpq)")

	// Build flags
	buildType := buildCmd.String("type", "hnsw", "Index type")
	buildInput := buildCmd.String("input", "", "Input vectors file")
	buildOutput := buildCmd.String("output", "index.faiss", "Output index file")
	buildDim := buildCmd.Int("dim", 128, "Vector dimension")

	// Search flags
	searchIndex := searchCmd.String("index", "index.faiss", "Index file")
	searchQuery := searchCmd.String("query", "", "Query vector file")
	searchK := searchCmd.Int("k", 10, "Number of results")

	// Merge flags: merges two freshly built synthetic IVF indexes, to
	// exercise ivf.Index.MergeFrom end to end without needing a saved index
	// on disk.
	mergeDim := mergeCmd.Int("dim", 64, "Vector dimension")
	mergeNlist := mergeCmd.Int("nlist", 16, "Number of IVF posting lists")
	mergeVectorsA := mergeCmd.Int("vectors-a", 2000, "Vectors in the first shard")
	mergeVectorsB := mergeCmd.Int("vectors-b", 2000, "Vectors in the second shard")

	// Subset flags: copies a structural subset of a freshly built synthetic
	// IVF index into a second index, exercising ivf.Index.CopySubsetTo.
	subsetDim := subsetCmd.Int("dim", 64, "Vector dimension")
	subsetNlist := subsetCmd.Int("nlist", 16, "Number of IVF posting lists")
	subsetVectors := subsetCmd.Int("vectors", 4000, "Vectors in the source index")
	subsetType := subsetCmd.Int("type", 2, "Subset type: 0=id-range 1=id-modulo 2=sharding")
	subsetA1 := subsetCmd.Int64("a1", 0, "First subset parameter")
	subsetA2 := subsetCmd.Int64("a2", 2, "Second subset parameter")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "bench":
		benchCmd.Parse(os.Args[2:])
		runBenchmark(*benchType, *benchVectors, *benchDim, *benchQueries, *benchNlist, *benchNprobe)
	case "build":
		buildCmd.Parse(os.Args[2:])
		runBuild(*buildType, *buildInput, *buildOutput, *buildDim)
	case "search":
		searchCmd.Parse(os.Args[2:])
		runSearch(*searchIndex, *searchQuery, *searchK)
	case "merge":
		mergeCmd.Parse(os.Args[2:])
		runMerge(*mergeDim, *mergeNlist, *mergeVectorsA, *mergeVectorsB)
	case "subset":
		subsetCmd.Parse(os.Args[2:])
		runSubset(*subsetDim, *subsetNlist, *subsetVectors, *subsetType, *subsetA1, *subsetA2)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("GoFAISS CLI - Vector Similarity Search Tool")
	fmt.Println("\nUsage:")
	fmt.Println("  gofaiss-cli bench   - Run benchmarks")
	fmt.Println("  gofaiss-cli build   - Build an index")
	fmt.Println("  gofaiss-cli search  - Search an index")
	fmt.Println("  gofaiss-cli merge   - Merge two IVF shards into one")
	fmt.Println("  gofaiss-cli subset  - Copy a structural subset of an IVF index")
	fmt.Println("\nExamples:")
	fmt.Println("  gofaiss-cli bench -type hnsw -vectors 10000 -dim 128")
	fmt.Println("  gofaiss-cli bench -type ivf -vectors 10000 -dim 128 -nlist 100 -nprobe 8")
	fmt.Println("  gofaiss-cli bench -type ivf-hnsw -vectors 10000 -dim 128 -nlist 100 -nprobe 8")
	fmt.Println("  gofaiss-cli build -type hnsw -input vectors.bin -output index.faiss")
	fmt.Println("  gofaiss-cli search -index index.faiss -query query.bin -k 10")
	fmt.Println("  gofaiss-cli merge -dim 64 -nlist 16 -vectors-a 2000 -vectors-b 2000")
	fmt.Println("  gofaiss-cli subset -dim 64 -nlist 16 -vectors 4000 -type 2 -a1 0 -a2 2")
}

// buildIVFFlat constructs an IVF-Flat index: a flat coarse quantizer paired
// with an uncompressed flat codec.
func buildIVFFlat(dim, nlist, nprobe int) (*ivf.Index, error) {
	m, err := metric.New(metric.L2)
	if err != nil {
		return nil, err
	}
	quantizer := flat.NewQuantizer(dim, m)
	codecImpl := codec.NewFlatCodec(dim, m)
	cfg := ivf.Config{
		Metric:       "l2",
		Nlist:        nlist,
		Nprobe:       nprobe,
		ParallelMode: ivf.ParallelByQuery,
		DirectMap:    ivf.DirectMapHash,
	}
	return ivf.New(dim, quantizer, codecImpl, cfg, ivf.TrainsAloneDefault)
}

// buildIVFHNSW constructs an IVF-Flat index whose coarse routing is driven
// by an HNSW graph instead of brute-force nearest-centroid search — the
// same ivf.Index core, a different quantizer.CoarseQuantizer.
func buildIVFHNSW(dim, nlist, nprobe int) (*ivf.Index, error) {
	m, err := metric.New(metric.L2)
	if err != nil {
		return nil, err
	}
	quantizer, err := hnsw.NewQuantizer(dim, "l2", hnsw.DefaultConfig())
	if err != nil {
		return nil, err
	}
	codecImpl := codec.NewFlatCodec(dim, m)
	cfg := ivf.Config{
		Metric:       "l2",
		Nlist:        nlist,
		Nprobe:       nprobe,
		ParallelMode: ivf.ParallelByQuery,
		DirectMap:    ivf.DirectMapHash,
	}
	return ivf.New(dim, quantizer, codecImpl, cfg, ivf.TrainsAloneYes)
}

func runBenchmark(indexType string, numVectors, dim, numQueries, nlist, nprobe int) {
	fmt.Printf("Running benchmark: %s index, %d vectors, %d dimensions\n",
		indexType, numVectors, dim)

	// Generate synthetic data
	fmt.Println("Generating data...")
	vectors := vector.GenerateRandom(numVectors, dim, 42)
	queries := make([][]float32, numQueries)
	for i := 0; i < numQueries; i++ {
		queries[i] = vector.GenerateRandom(1, dim, int64(i+1000))[0].Data
	}

	var idx interface{}
	var buildTime time.Duration
	var err error

	// Build index
	fmt.Println("Building index...")
	buildStart := time.Now()

	switch indexType {
	case "flat":
		flatIdx, e := flat.New(dim, "l2")
		if e != nil {
			log.Fatal(e)
		}
		err = flatIdx.Add(vectors)
		idx = flatIdx

	case "hnsw":
		hnswIdx, e := hnsw.New(dim, "l2", hnsw.Config{
			M:              16,
			EfConstruction: 200,
			EfSearch:       50,
		})
		if e != nil {
			log.Fatal(e)
		}
		err = hnswIdx.Add(vectors)
		idx = hnswIdx

	case "pq":
		pqIdx, e := pq.NewIndex(dim, pq.Config{M: 16, Nbits: 8})
		if e != nil {
			log.Fatal(e)
		}
		trainSize := numVectors / 2
		if trainSize > 10000 {
			trainSize = 10000
		}
		if err = pqIdx.Train(vectors[:trainSize]); err != nil {
			log.Fatal(err)
		}
		err = pqIdx.Add(vectors)
		idx = pqIdx

	case "ivf":
		ivfIdx, e := buildIVFFlat(dim, nlist, nprobe)
		if e != nil {
			log.Fatal(e)
		}
		trainSize := numVectors / 2
		if trainSize > 10000 {
			trainSize = 10000
		}
		if trainSize < nlist*10 {
			trainSize = min(numVectors, nlist*10)
		}
		if err = ivfIdx.Train(vectors[:trainSize]); err != nil {
			log.Fatal(err)
		}
		err = ivfIdx.Add(vectors)
		idx = ivfIdx

	case "ivf-hnsw":
		ivfIdx, e := buildIVFHNSW(dim, nlist, nprobe)
		if e != nil {
			log.Fatal(e)
		}
		trainSize := numVectors
		if trainSize < nlist {
			log.Fatalf("need at least %d vectors to train nlist=%d", nlist, nlist)
		}
		if err = ivfIdx.Train(vectors[:trainSize]); err != nil {
			log.Fatal(err)
		}
		err = ivfIdx.Add(vectors)
		idx = ivfIdx

	case "ivfpq":
		config := ivfpq.DefaultConfig(numVectors, dim)
		config.Nlist = nlist
		ivfpqIdx, e := ivfpq.New(dim, "l2", config)
		if e != nil {
			log.Fatal(e)
		}
		trainSize := numVectors
		if trainSize < nlist*10 {
			log.Fatalf("need at least %d vectors to train nlist=%d", nlist*10, nlist)
		}
		if err = ivfpqIdx.Train(vectors[:trainSize]); err != nil {
			log.Fatal(err)
		}
		err = ivfpqIdx.Add(vectors)
		idx = ivfpqIdx

	default:
		log.Fatalf("Unknown index type: %s", indexType)
	}

	if err != nil {
		log.Fatal(err)
	}
	buildTime = time.Since(buildStart)

	// Warmup
	fmt.Println("Warming up...")
	for i := 0; i < 10 && i < len(queries); i++ {
		searchOne(idx, queries[i], 10, nprobe)
	}

	// Benchmark search
	fmt.Println("Benchmarking search...")
	searchStart := time.Now()
	for _, query := range queries {
		_, err := searchOne(idx, query, 10, nprobe)
		if err != nil {
			log.Fatal(err)
		}
	}
	searchTime := time.Since(searchStart)

	// Results
	fmt.Println("\n=== Benchmark Results ===")
	fmt.Printf("Index Type: %s\n", indexType)
	fmt.Printf("Vectors: %d, Dimension: %d\n", numVectors, dim)
	fmt.Printf("Build Time: %.2f ms\n", float64(buildTime.Milliseconds()))
	fmt.Printf("Search Time: %.2f ms total\n", float64(searchTime.Milliseconds()))
	fmt.Printf("Avg Query Time: %.4f ms\n",
		float64(searchTime.Milliseconds())/float64(numQueries))
	fmt.Printf("Queries Per Second: %.2f\n",
		float64(numQueries)/searchTime.Seconds())

	// Memory stats
	printStats(idx)
}

func runBuild(indexType, inputFile, outputFile string, dim int) {
	fmt.Printf("Building %s index from %s...\n", indexType, inputFile)
	// Implementation would load vectors from file and build index
	fmt.Println("Build not fully implemented - use as template")
}

func runSearch(indexFile, queryFile string, k int) {
	fmt.Printf("Searching index %s with query %s...\n", indexFile, queryFile)
	// Implementation would load index and perform search
	fmt.Println("Search not fully implemented - use as template")
}

// runMerge builds two independent IVF-Flat shards over the same trained
// quantizer and codec, then folds the second into the first via MergeFrom.
func runMerge(dim, nlist, vectorsA, vectorsB int) {
	fmt.Printf("Merging two IVF shards: dim=%d nlist=%d vectors-a=%d vectors-b=%d\n",
		dim, nlist, vectorsA, vectorsB)

	trainVectors := vector.GenerateRandom(max(vectorsA, nlist*50), dim, 1)

	shardA, err := buildIVFFlat(dim, nlist, 4)
	if err != nil {
		log.Fatal(err)
	}
	if err := shardA.Train(trainVectors); err != nil {
		log.Fatal(err)
	}
	dataA := vector.GenerateRandom(vectorsA, dim, 2)
	if err := shardA.Add(dataA); err != nil {
		log.Fatal(err)
	}

	shardB, err := buildIVFFlat(dim, nlist, 4)
	if err != nil {
		log.Fatal(err)
	}
	if err := shardB.Train(trainVectors); err != nil {
		log.Fatal(err)
	}
	dataB := vector.GenerateRandom(vectorsB, dim, 3)
	if err := shardB.Add(dataB); err != nil {
		log.Fatal(err)
	}

	// MergeFrom requires direct maps disabled on both sides.
	shardA.SetDirectMap(ivf.DirectMapNone)
	shardB.SetDirectMap(ivf.DirectMapNone)

	fmt.Printf("Before merge: shard A ntotal=%d, shard B ntotal=%d\n", shardA.Ntotal(), shardB.Ntotal())
	if err := shardA.MergeFrom(shardB, int64(vectorsA)); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("After merge: shard A ntotal=%d, shard B ntotal=%d\n", shardA.Ntotal(), shardB.Ntotal())
}

// runSubset builds one IVF-Flat index and copies a structural subset of it
// into a second, freshly trained index of identical shape.
func runSubset(dim, nlist, numVectors, subsetTypeFlag int, a1, a2 int64) {
	fmt.Printf("Copying subset: dim=%d nlist=%d vectors=%d type=%d a1=%d a2=%d\n",
		dim, nlist, numVectors, subsetTypeFlag, a1, a2)

	trainVectors := vector.GenerateRandom(max(numVectors, nlist*50), dim, 7)

	src, err := buildIVFFlat(dim, nlist, 4)
	if err != nil {
		log.Fatal(err)
	}
	if err := src.Train(trainVectors); err != nil {
		log.Fatal(err)
	}
	if err := src.Add(vector.GenerateRandom(numVectors, dim, 8)); err != nil {
		log.Fatal(err)
	}

	dst, err := buildIVFFlat(dim, nlist, 4)
	if err != nil {
		log.Fatal(err)
	}
	if err := dst.Train(trainVectors); err != nil {
		log.Fatal(err)
	}

	if err := src.CopySubsetTo(dst, ivf.SubsetType(subsetTypeFlag), a1, a2); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Source ntotal=%d, subset copied ntotal=%d\n", src.Ntotal(), dst.Ntotal())
}

func searchOne(idx interface{}, query []float32, k, nprobe int) ([]vector.SearchResult, error) {
	switch v := idx.(type) {
	case *flat.Index:
		return v.Search(query, k)
	case *hnsw.Index:
		return v.Search(query, k)
	case *pq.Index:
		return v.Search(query, k)
	case *ivf.Index:
		return v.Search(context.Background(), query, k)
	case *ivfpq.Index:
		return v.Search(query, k, nprobe)
	default:
		return nil, fmt.Errorf("unsupported index type")
	}
}

func printStats(idx interface{}) {
	var totalVecs int
	var memoryMB float64
	var extraInfo map[string]interface{}

	switch v := idx.(type) {
	case *flat.Index:
		stats := v.Stats()
		totalVecs = stats.TotalVectors
		memoryMB = stats.MemoryUsageMB
		extraInfo = stats.ExtraInfo
	case *hnsw.Index:
		stats := v.Stats()
		totalVecs = stats.TotalVectors
		memoryMB = stats.MemoryUsageMB
		extraInfo = stats.ExtraInfo
	case *pq.Index:
		stats := v.Stats()
		totalVecs = stats.TotalVectors
		memoryMB = stats.MemoryUsageMB
		extraInfo = stats.ExtraInfo
	case *ivf.Index:
		stats := v.Stats()
		totalVecs = stats.TotalVectors
		memoryMB = stats.MemoryUsageMB
		extraInfo = stats.ExtraInfo
	case *ivfpq.Index:
		stats := v.Stats()
		totalVecs = stats.TotalVectors
		memoryMB = stats.MemoryUsageMB
		extraInfo = stats.ExtraInfo
	}

	fmt.Printf("\n=== Index Statistics ===\n")
	fmt.Printf("Total Vectors: %d\n", totalVecs)
	fmt.Printf("Memory Usage: %.2f MB\n", memoryMB)
	if len(extraInfo) > 0 {
		fmt.Printf("Extra Info: %v\n", extraInfo)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
