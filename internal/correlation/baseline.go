package correlation

import (
	"math"
	"sync"
	"time"

	"CustodianSync/internal/domain/models"
)

// maxBaselineSamples bounds the history kept per metric pair; older
// observations rotate out first.
const maxBaselineSamples = 100

// Baseline is the rolling history of correlation coefficients observed
// for one metric pair, with moments recomputed on every update.
type Baseline struct {
	Samples []float64
	Mean    float64
	Stddev  float64
	Updated time.Time
}

// BaselineStore tracks correlation baselines keyed by profile and
// metric pair. Updates are serialized per key.
type BaselineStore struct {
	mu        sync.RWMutex
	baselines map[string]*Baseline
}

// NewBaselineStore creates an empty baseline store.
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{baselines: make(map[string]*Baseline)}
}

func pairKey(profileID string, a, b models.MetricType) string {
	// Pair key is order independent.
	if b < a {
		a, b = b, a
	}
	return profileID + "|" + string(a) + "|" + string(b)
}

// Observe appends a coefficient to the pair's history and recomputes
// mean and standard deviation over the retained window.
func (s *BaselineStore) Observe(profileID string, a, b models.MetricType, r float64) *Baseline {
	key := pairKey(profileID, a, b)

	s.mu.Lock()
	defer s.mu.Unlock()
	bl, ok := s.baselines[key]
	if !ok {
		bl = &Baseline{}
		s.baselines[key] = bl
	}

	bl.Samples = append(bl.Samples, r)
	if len(bl.Samples) > maxBaselineSamples {
		bl.Samples = bl.Samples[len(bl.Samples)-maxBaselineSamples:]
	}
	bl.Mean, bl.Stddev = meanStddev(bl.Samples)
	bl.Updated = time.Now().UTC()

	out := *bl
	out.Samples = append([]float64(nil), bl.Samples...)
	return &out
}

// Get returns a copy of the pair's baseline, nil if never observed.
func (s *BaselineStore) Get(profileID string, a, b models.MetricType) *Baseline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bl, ok := s.baselines[pairKey(profileID, a, b)]
	if !ok {
		return nil
	}
	out := *bl
	out.Samples = append([]float64(nil), bl.Samples...)
	return &out
}

// Deviation reports how many standard deviations r sits from the
// baseline mean. A flat baseline yields +Inf for any difference.
func (b *Baseline) Deviation(r float64) float64 {
	diff := math.Abs(r - b.Mean)
	if b.Stddev == 0 {
		if diff == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return diff / b.Stddev
}
