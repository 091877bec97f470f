package util

import (
	"math"
	"sync"
	"testing"
)

// TestHashStringSeed tests that the seed changes the hash but equal inputs agree
func TestHashStringSeed(t *testing.T) {
	a := HashString("alice", 1)
	if a != HashString("alice", 1) {
		t.Fatal("HashString is not deterministic")
	}
	if a == HashString("alice", 2) {
		t.Error("different seeds produced the same hash")
	}
	if a == HashString("bob", 1) {
		t.Error("different keys produced the same hash")
	}

	// FNV-1a of the empty string with seed 0 is the offset basis
	if got := HashString("", 0); got != 14695981039346656037 {
		t.Errorf("unexpected hash of empty string: %d", got)
	}
}

// TestNewKeyHasher tests that the engine seed and the map seed are both mixed in
func TestNewKeyHasher(t *testing.T) {
	h1 := NewKeyHasher(10)
	h2 := NewKeyHasher(20)

	if h1("k", 1) == h2("k", 1) {
		t.Error("engine seed is ignored")
	}
	if h1("k", 1) == h1("k", 2) {
		t.Error("map seed is ignored")
	}
}

// TestNewStats tests summary statistics
func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 || s.Min != 2 || s.Max != 9 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if math.Abs(s.StdDeviation-2) > 1e-9 {
		t.Errorf("expected std deviation 2, got %f", s.StdDeviation)
	}

	if (NewStats(nil) != Stats{}) {
		t.Error("stats of no values must be zero")
	}
}

// TestDistributionQuality tests that an even spread scores 1
func TestDistributionQuality(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("even spread should have quality 1, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{1, 1, 100})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("skewed spread should score lower, got %f", skewed.DistributionQuality)
	}
}

// TestSizeHistogram tests sample counting and estimates
func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.AverageSize() != 0 || h.MedianEstimate() != 0 {
		t.Fatal("empty histogram must report zero")
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				h.AddSample(100)
			}
		}()
	}
	wg.Wait()

	if h.Count() != 1000 {
		t.Fatalf("expected 1000 samples, got %d", h.Count())
	}
	if h.AverageSize() != 100 {
		t.Errorf("expected average 100, got %d", h.AverageSize())
	}
	// 100 falls into the (64, 256] bucket
	if got := h.MedianEstimate(); got != 160 {
		t.Errorf("expected median estimate 160, got %d", got)
	}

	h.AddSample(1 << 33)
	if got := h.PercentileEstimate(100); got != 4294967296*2 {
		t.Errorf("expected overflow bucket estimate, got %d", got)
	}
	if h.PercentileEstimate(101) != 0 {
		t.Error("invalid percentile must report zero")
	}
}
