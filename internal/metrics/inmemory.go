package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	NotesCreated         map[string]uint64
	NotesDeleted         uint64
	PipelineRejected     map[string]uint64
	PipelineFailed       map[string]uint64
	StageDurationCount   map[string]uint64
	StageDurationTotalNs map[string]int64
	CreditsDebited       uint64
	CreditResets         uint64
	CreditResetUsers     uint64
	CreditResetFailures  uint64
	AuthCacheHits        uint64
	AuthCacheMisses      uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint
// and doubles as an assertion target in tests.
type InMemoryRecorder struct {
	notesDeleted        uint64
	creditsDebited      uint64
	creditResets        uint64
	creditResetUsers    uint64
	creditResetFailures uint64
	authCacheHits       uint64
	authCacheMisses     uint64

	mu                   sync.Mutex
	notesCreated         map[string]uint64
	pipelineRejected     map[string]uint64
	pipelineFailed       map[string]uint64
	stageDurationCount   map[string]uint64
	stageDurationTotalNs map[string]int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		notesCreated:         make(map[string]uint64),
		pipelineRejected:     make(map[string]uint64),
		pipelineFailed:       make(map[string]uint64),
		stageDurationCount:   make(map[string]uint64),
		stageDurationTotalNs: make(map[string]int64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		NotesCreated:         copyCounts(m.notesCreated),
		NotesDeleted:         atomic.LoadUint64(&m.notesDeleted),
		PipelineRejected:     copyCounts(m.pipelineRejected),
		PipelineFailed:       copyCounts(m.pipelineFailed),
		StageDurationCount:   copyCounts(m.stageDurationCount),
		StageDurationTotalNs: copyCounts(m.stageDurationTotalNs),
		CreditsDebited:       atomic.LoadUint64(&m.creditsDebited),
		CreditResets:         atomic.LoadUint64(&m.creditResets),
		CreditResetUsers:     atomic.LoadUint64(&m.creditResetUsers),
		CreditResetFailures:  atomic.LoadUint64(&m.creditResetFailures),
		AuthCacheHits:        atomic.LoadUint64(&m.authCacheHits),
		AuthCacheMisses:      atomic.LoadUint64(&m.authCacheMisses),
	}
}

// IncNoteCreated increments the created counter for a note type.
func (m *InMemoryRecorder) IncNoteCreated(noteType string) {
	m.mu.Lock()
	m.notesCreated[noteType]++
	m.mu.Unlock()
}

// IncNoteDeleted increments note deleted counter.
func (m *InMemoryRecorder) IncNoteDeleted() {
	atomic.AddUint64(&m.notesDeleted, 1)
}

// IncPipelineRejected counts a request refused before any AI work.
func (m *InMemoryRecorder) IncPipelineRejected(reason string) {
	m.mu.Lock()
	m.pipelineRejected[reason]++
	m.mu.Unlock()
}

// IncPipelineFailed counts a pipeline failure at the given stage.
func (m *InMemoryRecorder) IncPipelineFailed(stage string) {
	m.mu.Lock()
	m.pipelineFailed[stage]++
	m.mu.Unlock()
}

// ObserveStageDuration records how long a pipeline stage took.
func (m *InMemoryRecorder) ObserveStageDuration(stage string, duration time.Duration) {
	m.mu.Lock()
	m.stageDurationCount[stage]++
	m.stageDurationTotalNs[stage] += duration.Nanoseconds()
	m.mu.Unlock()
}

// AddCreditsDebited adds to the total credits spent.
func (m *InMemoryRecorder) AddCreditsDebited(amount int) {
	if amount > 0 {
		atomic.AddUint64(&m.creditsDebited, uint64(amount))
	}
}

// IncCreditReset records a completed bulk reset.
func (m *InMemoryRecorder) IncCreditReset(users int64) {
	atomic.AddUint64(&m.creditResets, 1)
	if users > 0 {
		atomic.AddUint64(&m.creditResetUsers, uint64(users))
	}
}

// IncCreditResetFailure records a failed reset attempt.
func (m *InMemoryRecorder) IncCreditResetFailure() {
	atomic.AddUint64(&m.creditResetFailures, 1)
}

// IncAuthCacheHit increments auth cache hit counter.
func (m *InMemoryRecorder) IncAuthCacheHit() {
	atomic.AddUint64(&m.authCacheHits, 1)
}

// IncAuthCacheMiss increments auth cache miss counter.
func (m *InMemoryRecorder) IncAuthCacheMiss() {
	atomic.AddUint64(&m.authCacheMisses, 1)
}

func copyCounts[V uint64 | int64](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
