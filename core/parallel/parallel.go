package parallel

import (
	"math/rand"
	"runtime"
	"sync"
)

// Parallelize divides the specified total number (items) according to the
// number of CPU cores, and executes the specified function (fn) in parallel
// for each range (start, end). Workers write to disjoint output regions only;
// no synchronization beyond the final wait is provided.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// seededChunkSize fixes the chunk granularity of ParallelizeSeeded. The
// chunk layout must not depend on the worker count, otherwise the derived
// seeds, and every random draw made with them, would change with the
// machine.
const seededChunkSize = 64

// childSeed mixes the chunk index into the root seed. The multiplier is the
// 64-bit golden ratio, mixed in uint64 space to sidestep signed overflow.
func childSeed(rootSeed int64, chunk int) int64 {
	return int64(uint64(rootSeed) + uint64(chunk)*0x9E3779B97F4A7C15)
}

// ParallelizeSeeded behaves like Parallelize but splits the items into
// fixed-size chunks and hands every chunk its own random source, derived
// deterministically from the root seed and the chunk index. Results are
// therefore identical for a given root seed regardless of CPU count.
// Workers must not share generators, otherwise draws race and results depend
// on scheduling.
func ParallelizeSeeded(items int, rootSeed int64, fn func(start, end int, rng *rand.Rand)) {
	if items == 0 {
		return
	}

	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for chunk := 0; chunk*seededChunkSize < items; chunk++ {
		start := chunk * seededChunkSize
		end := start + seededChunkSize
		if end > items {
			end = items
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(s, e int, seed int64) {
			defer wg.Done()
			fn(s, e, rand.New(rand.NewSource(seed)))
			<-sem
		}(start, end, childSeed(rootSeed, chunk))
	}

	wg.Wait()
}
