package collector

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBuffer implements an in-memory rollout buffer with capacity-bound
// eviction (oldest first).
type MemoryBuffer struct {
	mu        sync.RWMutex
	records   map[string]*Record // ID -> Record
	envIndex  map[string][]string
	timeIndex []string // record IDs sorted by CreatedAt
	maxSize   int      // 0 means unbounded
	rng       *rand.Rand
}

// NewMemoryBuffer creates a buffer holding at most maxSize rollouts.
func NewMemoryBuffer(maxSize int) *MemoryBuffer {
	return &MemoryBuffer{
		records:   make(map[string]*Record),
		envIndex:  make(map[string][]string),
		timeIndex: make([]string, 0),
		maxSize:   maxSize,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Store implements Backend.Store.
func (m *MemoryBuffer) Store(ctx context.Context, record *Record) error {
	if record.Trajectory == nil {
		return fmt.Errorf("record has no trajectory")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.Priority == 0 {
		record.Priority = 1.0
	}

	m.records[record.ID] = record
	if record.EnvID != "" {
		m.envIndex[record.EnvID] = append(m.envIndex[record.EnvID], record.ID)
	}
	m.insertInTimeIndex(record.ID, record.CreatedAt)
	m.evictIfNeeded()

	return nil
}

// StoreBatch implements Backend.StoreBatch.
func (m *MemoryBuffer) StoreBatch(ctx context.Context, records []*Record) ([]string, error) {
	ids := make([]string, len(records))
	for i, record := range records {
		if err := m.Store(ctx, record); err != nil {
			return ids[:i], err
		}
		ids[i] = record.ID
	}
	return ids, nil
}

// Sample implements Backend.Sample.
func (m *MemoryBuffer) Sample(ctx context.Context, config *SampleConfig) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := m.candidates(config.EnvID)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no rollouts available for sampling")
	}

	count := config.Count
	if count > len(candidates) {
		count = len(candidates)
	}

	if config.Prioritized {
		return m.prioritizedSample(candidates, count, config.PriorityAlpha), nil
	}
	return m.uniformSample(candidates, count), nil
}

// Stats implements Backend.Stats.
func (m *MemoryBuffer) Stats(ctx context.Context, envID string) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{
		TotalRollouts: uint64(len(m.records)),
		RolloutsByEnv: make(map[string]uint64),
	}

	for _, record := range m.records {
		stats.TotalTicks += uint64(record.Steps * record.Batch)
	}
	for env, ids := range m.envIndex {
		if envID == "" || env == envID {
			stats.RolloutsByEnv[env] = uint64(len(ids))
		}
	}
	if len(m.timeIndex) > 0 {
		oldest := m.records[m.timeIndex[0]].CreatedAt
		newest := m.records[m.timeIndex[len(m.timeIndex)-1]].CreatedAt
		stats.Oldest = &oldest
		stats.Newest = &newest
	}

	return stats, nil
}

// Close implements Backend.Close.
func (m *MemoryBuffer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
	m.envIndex = nil
	m.timeIndex = nil
	return nil
}

func (m *MemoryBuffer) insertInTimeIndex(id string, createdAt time.Time) {
	idx := sort.Search(len(m.timeIndex), func(i int) bool {
		return m.records[m.timeIndex[i]].CreatedAt.After(createdAt)
	})
	m.timeIndex = append(m.timeIndex, "")
	copy(m.timeIndex[idx+1:], m.timeIndex[idx:])
	m.timeIndex[idx] = id
}

func (m *MemoryBuffer) evictIfNeeded() {
	if m.maxSize <= 0 {
		return
	}
	for len(m.records) > m.maxSize && len(m.timeIndex) > 0 {
		m.deleteRecord(m.timeIndex[0])
	}
}

func (m *MemoryBuffer) deleteRecord(id string) {
	record, exists := m.records[id]
	if !exists {
		return
	}

	delete(m.records, id)
	if record.EnvID != "" {
		m.envIndex[record.EnvID] = removeString(m.envIndex[record.EnvID], id)
		if len(m.envIndex[record.EnvID]) == 0 {
			delete(m.envIndex, record.EnvID)
		}
	}
	m.timeIndex = removeString(m.timeIndex, id)
}

func (m *MemoryBuffer) candidates(envID string) []*Record {
	var ids []string
	if envID != "" {
		ids = m.envIndex[envID]
	} else {
		ids = m.timeIndex
	}

	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.records[id])
	}
	return out
}

func (m *MemoryBuffer) uniformSample(candidates []*Record, count int) []*Record {
	if count >= len(candidates) {
		out := make([]*Record, len(candidates))
		copy(out, candidates)
		return out
	}

	indices := m.rng.Perm(len(candidates))
	out := make([]*Record, count)
	for i := 0; i < count; i++ {
		out[i] = candidates[indices[i]]
	}
	return out
}

func (m *MemoryBuffer) prioritizedSample(candidates []*Record, count int, alpha float64) []*Record {
	if count >= len(candidates) {
		out := make([]*Record, len(candidates))
		copy(out, candidates)
		return out
	}

	priorities := make([]float64, len(candidates))
	total := 0.0
	for i, c := range candidates {
		p := c.Priority
		if alpha != 1.0 {
			p = math.Pow(p, alpha)
		}
		priorities[i] = p
		total += p
	}

	out := make([]*Record, 0, count)
	used := make(map[int]bool)
	for len(out) < count {
		target := m.rng.Float64() * total
		sum := 0.0
		for i, p := range priorities {
			if used[i] {
				continue
			}
			sum += p
			if sum >= target {
				out = append(out, candidates[i])
				used[i] = true
				total -= p
				break
			}
		}
	}
	return out
}

func removeString(slice []string, item string) []string {
	for i, s := range slice {
		if s == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
