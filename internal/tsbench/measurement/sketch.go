package measurement

import (
	"math"
	"sync"
	"unsafe"

	"github.com/caio/go-tdigest/v4"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const sketchCompression = 100

// QuantileSketch is a t-digest of operation latencies in milliseconds, shared by all workers. Min and max are
// tracked exactly beside it.
type QuantileSketch struct {
	mu     sync.Mutex
	digest *tdigest.TDigest
	count  int64
	min    float64
	max    float64
}

func NewQuantileSketch() (*QuantileSketch, error) {
	digest, err := tdigest.New(tdigest.Compression(sketchCompression))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &QuantileSketch{digest: digest, min: math.Inf(1), max: math.Inf(-1)}, nil
}

func (s *QuantileSketch) Add(millis float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.digest.Add(millis); err != nil {
		return errors.WithStack(err)
	}
	s.count++
	s.min = math.Min(s.min, millis)
	s.max = math.Max(s.max, millis)
	return nil
}

// Quantile returns the estimated q-quantile, or 0 when nothing was added. The 0 and 1 quantiles are exact.
func (s *QuantileSketch) Quantile(q float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.count == 0:
		return 0
	case q <= 0:
		return s.min
	case q >= 1:
		return s.max
	default:
		return s.digest.Quantile(q)
	}
}

// Merge folds the observations of other into s. Both sketches are locked in address order so that
// concurrent a.Merge(b) and b.Merge(a) cannot deadlock.
func (s *QuantileSketch) Merge(other *QuantileSketch) error {
	if other == nil || other == s {
		return nil
	}
	first, second := s, other
	if uintptr(unsafe.Pointer(second)) < uintptr(unsafe.Pointer(first)) {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if other.count == 0 {
		return nil
	}
	if err := s.digest.Merge(other.digest); err != nil {
		return errors.WithStack(err)
	}
	s.count += other.count
	s.min = math.Min(s.min, other.min)
	s.max = math.Max(s.max, other.max)
	return nil
}

func (s *QuantileSketch) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Sketches holds one QuantileSketch per key. It is populated before workers start and never grows afterwards,
// so lookups need no locking.
type Sketches struct {
	sketches map[Key]*QuantileSketch
}

func NewSketches(keys []Key) (*Sketches, error) {
	sketches := make(map[Key]*QuantileSketch, len(keys))
	for _, key := range keys {
		sketch, err := NewQuantileSketch()
		if err != nil {
			return nil, err
		}
		sketches[key] = sketch
	}
	return &Sketches{sketches: sketches}, nil
}

// Get returns the sketch of key, or nil if key was not registered.
func (s *Sketches) Get(key Key) *QuantileSketch {
	return s.sketches[key]
}

// Keys returns the registered keys sorted by kind then variant.
func (s *Sketches) Keys() []Key {
	keys := maps.Keys(s.sketches)
	slices.SortFunc(keys, compareKeys)
	return keys
}
