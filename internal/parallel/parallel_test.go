package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForChunksCount(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16}

	var counter int64
	n := 1000

	ForChunks(n, func(start, end int) {
		atomic.AddInt64(&counter, int64(end-start))
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForChunksCoverage(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 8}

	n := 101
	hits := make([]int32, n)
	var chunks int64

	ForChunks(n, func(start, end int) {
		atomic.AddInt64(&chunks, 1)
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	}, cfg)

	for i, h := range hits {
		if h != 1 {
			t.Fatalf("index %d visited %d times", i, h)
		}
	}
	if chunks != 3 {
		t.Errorf("Expected 3 chunks, got %d", chunks)
	}
}

func TestForChunks_Sequential(t *testing.T) {
	cfg := Sequential()

	var chunks int
	ForChunks(100, func(start, end int) {
		chunks++
		if start != 0 || end != 100 {
			t.Errorf("Expected single chunk [0, 100), got [%d, %d)", start, end)
		}
	}, cfg)

	if chunks != 1 {
		t.Errorf("Expected 1 chunk, got %d", chunks)
	}
}

func TestForChunks_Empty(t *testing.T) {
	ForChunks(0, func(_, _ int) {
		t.Error("f must not be called for n == 0")
	}, DefaultConfig())
}

func BenchmarkForChunks(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	sum := func(start, end int) {
		var s int64
		for j := start; j < end; j++ {
			s += int64(j)
		}
		_ = s
	}

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ForChunks(n, sum, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ForChunks(n, sum, Sequential())
		}
	})
}
