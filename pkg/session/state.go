package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Phase is the compaction state of a session. It is transient and never
// persisted.
type Phase int32

const (
	// PhaseActive means the history is below the compaction threshold or
	// compaction is not running.
	PhaseActive Phase = iota

	// PhaseCompacting means the history is being written to memory.
	PhaseCompacting
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "ACTIVE"
	case PhaseCompacting:
		return "COMPACTING"
	default:
		return "UNKNOWN"
	}
}

// State is one live session. Callers hold Lock for the whole processing of
// a message so turns are handled strictly in arrival order.
type State struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	history    *History
	phase      atomic.Int32
	lastActive atomic.Int64
}

func newState(id string, now time.Time) *State {
	s := &State{
		ID:        id,
		CreatedAt: now,
		history:   NewHistory(),
	}
	s.lastActive.Store(now.UnixNano())
	return s
}

// Lock serializes processing for this session.
func (s *State) Lock() {
	s.mu.Lock()
}

// Unlock releases the processing lock.
func (s *State) Unlock() {
	s.mu.Unlock()
}

// TryLock attempts to take the processing lock without blocking.
func (s *State) TryLock() bool {
	return s.mu.TryLock()
}

// History returns the session's message log.
func (s *State) History() *History {
	return s.history
}

// Phase reports the current compaction phase.
func (s *State) Phase() Phase {
	return Phase(s.phase.Load())
}

// SetPhase records a compaction phase transition.
func (s *State) SetPhase(p Phase) {
	s.phase.Store(int32(p))
}

// Touch marks the session as used now.
func (s *State) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns when the session was last touched.
func (s *State) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Info is a read-only snapshot of a session for listing.
type Info struct {
	ID         string    `json:"session_id"`
	Messages   int       `json:"messages"`
	Phase      string    `json:"phase"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Info snapshots the session.
func (s *State) Info() Info {
	return Info{
		ID:         s.ID,
		Messages:   s.history.Len(),
		Phase:      s.Phase().String(),
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive(),
	}
}
