package ivf

// ParallelMode selects how search_preassigned partitions work across
// goroutines.
type ParallelMode int

const (
	// ParallelByQuery partitions queries across goroutines; each goroutine
	// owns its heaps end-to-end. Supports max_codes early exit.
	ParallelByQuery ParallelMode = 0
	// ParallelByProbe processes queries sequentially but splits each
	// query's nprobe lists across goroutines, merging private heaps under a
	// barrier. max_codes is not enforceable in this mode.
	ParallelByProbe ParallelMode = 1
	// ParallelByQueryProbe is valid only for RangeSearch: it parallelizes
	// over the flat (query, probe) cartesian product.
	ParallelByQueryProbe ParallelMode = 2
)

// AddBlockSize is the chunking threshold above which Add recurses in
// blocks, matching the source's handling of very large batches.
const AddBlockSize = 65536

// Config configures a new Index.
type Config struct {
	Metric       string
	Nlist        int
	Nprobe       int
	ParallelMode ParallelMode
	MaxCodes     int // per-query early-exit bound, pmode 0 only; 0 = unbounded
	DirectMap    DirectMapMode
	NumWorkers   int // 0 = runtime.GOMAXPROCS(0)
}

// DefaultConfig returns sane defaults: nlist sized to the training set,
// nprobe=1 (spec default), pmode 0, no max_codes bound, no direct map.
func DefaultConfig(numVectors int) Config {
	nlist := numVectors / 50
	if nlist < 1 {
		nlist = 1
	}
	if nlist > 65536 {
		nlist = 65536
	}
	return Config{
		Metric:       "l2",
		Nlist:        nlist,
		Nprobe:       1,
		ParallelMode: ParallelByQuery,
		DirectMap:    DirectMapNone,
	}
}
