// Package parallel splits table formatting work across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096, // Formatting a float literal is cheap.
	}
}

// Sequential returns a config that never starts goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// Chunks splits [0, n) into contiguous ranges for cfg. A disabled config or a
// small n yields a single range.
func Chunks(n int, cfg Config) [][2]int {
	if n <= 0 {
		return nil
	}
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < 2*cfg.MinChunkSize {
		return [][2]int{{0, n}}
	}
	size := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// Map runs f over every chunk of [0, n) and returns the results in chunk
// order, so callers can concatenate them into deterministic output.
func Map[T any](n int, f func(start, end int) T, cfg Config) []T {
	chunks := Chunks(n, cfg)
	out := make([]T, len(chunks))
	if len(chunks) == 1 {
		out[0] = f(chunks[0][0], chunks[0][1])
		return out
	}

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i, s, e int) {
			defer wg.Done()
			out[i] = f(s, e)
		}(i, c[0], c[1])
	}
	wg.Wait()
	return out
}
