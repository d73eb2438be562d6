package pipeline

import (
	"sync"

	"github.com/avkatev/autocrawl/internal/store"
)

// DownloadTally splits asset fetches of one kind by outcome.
type DownloadTally struct {
	Downloaded int
	Cached     int
	Failed     int
}

// Stats accumulates run counters across worker goroutines. All methods are
// safe for concurrent use.
type Stats struct {
	mu              sync.Mutex
	upserts         map[string]store.Counts
	downloads       map[string]DownloadTally
	resolvedFound   int
	resolvedMissing int
	stageErrors     map[string]int
}

// NewStats returns an empty counter set.
func NewStats() *Stats {
	return &Stats{
		upserts:     make(map[string]store.Counts),
		downloads:   make(map[string]DownloadTally),
		stageErrors: make(map[string]int),
	}
}

// AddUpsert merges one upsert call's result for an entity.
func (s *Stats) AddUpsert(entity string, counts store.Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.upserts[entity]
	c.Add(counts)
	s.upserts[entity] = c
}

// AddDownloaded records one fetched asset of the given kind.
func (s *Stats) AddDownloaded(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.downloads[kind]
	t.Downloaded++
	s.downloads[kind] = t
}

// AddCached records one asset satisfied from disk.
func (s *Stats) AddCached(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.downloads[kind]
	t.Cached++
	s.downloads[kind] = t
}

// AddDownloadFailed records one failed fetch.
func (s *Stats) AddDownloadFailed(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.downloads[kind]
	t.Failed++
	s.downloads[kind] = t
}

// AddResolution records one ext-id resolution attempt.
func (s *Stats) AddResolution(found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if found {
		s.resolvedFound++
	} else {
		s.resolvedMissing++
	}
}

// AddStageError records one unit failure within a stage.
func (s *Stats) AddStageError(stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stageErrors[stage]++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Upserts         map[string]store.Counts
	Downloads       map[string]DownloadTally
	ResolvedFound   int
	ResolvedMissing int
	StageErrors     map[string]int
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Upserts:         make(map[string]store.Counts, len(s.upserts)),
		Downloads:       make(map[string]DownloadTally, len(s.downloads)),
		ResolvedFound:   s.resolvedFound,
		ResolvedMissing: s.resolvedMissing,
		StageErrors:     make(map[string]int, len(s.stageErrors)),
	}
	for k, v := range s.upserts {
		snap.Upserts[k] = v
	}
	for k, v := range s.downloads {
		snap.Downloads[k] = v
	}
	for k, v := range s.stageErrors {
		snap.StageErrors[k] = v
	}
	return snap
}
