// Package queue provides the queue store: main queue, next queue, history
// and the flattened view used for index based lookups.
package queue

import (
	"math/rand/v2"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/upnext/internal/domain/track"
)

// ErrQueueEmpty is returned when a lookup is made against a store with no tracks.
var ErrQueueEmpty = errors.New("queue is empty")

// Option configures a Store.
type Option func(*Store)

// WithRand sets the random source used for shuffle selection.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) {
		s.rnd = r
	}
}

// Store owns the main queue, the next queue and the history.
//
// The flattened view is Next ++ Main and is always derived from the two
// source queues, so its length is len(next)+len(main) and the Next entries
// occupy its leading positions in next-queue order.
// Each public method runs as a single unit under the store mutex.
type Store struct {
	mu sync.RWMutex

	main    []track.Track // Normal tracks, position = playlist index
	next    []track.Track // Next tracks, front plays soonest, position = index
	history []track.Track // Tracks presented as current, append only

	rnd *rand.Rand
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		main:    make([]track.Track, 0),
		next:    make([]track.Track, 0),
		history: make([]track.Track, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMainQueue replaces the main queue and clears the next queue.
// Each track gets position = index. An empty slice yields an empty queue.
func (s *Store) SetMainQueue(tracks []track.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	main := make([]track.Track, len(tracks))
	for i, t := range tracks {
		t.EnsureID()
		t.Origin = track.OriginNormal
		t.Position = i
		t.Played = false
		main[i] = t
	}
	s.main = main
	s.next = make([]track.Track, 0)
}

// InsertNextTrack puts the track at the front of the next queue and returns
// its flattened index, which is always 0.
// Inserting the same identity twice creates two independent entries.
func (s *Store) InsertNextTrack(t track.Track) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.EnsureID()
	t.Origin = track.OriginNext
	t.Played = false
	t.Position = 0

	next := make([]track.Track, 0, len(s.next)+1)
	next = append(next, t)
	for _, n := range s.next {
		n.Position++
		next = append(next, n)
	}
	s.next = next
	return 0
}

// MarkNextTrackPlayed flags the Next entry whose position and identity match
// the given track. It returns false when no entry matches, which happens
// when the entry has already been pruned.
func (s *Store) MarkNextTrackPlayed(t track.Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !t.IsNext() || t.Position < 0 || t.Position >= len(s.next) {
		return false
	}
	entry := &s.next[t.Position]
	if !entry.SameAs(t) {
		return false
	}
	entry.Played = true
	return true
}

// PruneConsumedNextTracks removes every played Next entry and returns how
// many were removed. Survivors are renumbered so position = index again.
func (s *Store) PruneConsumedNextTracks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]track.Track, 0, len(s.next))
	for _, n := range s.next {
		if n.IsNext() && n.Played {
			continue
		}
		n.Position = len(kept)
		kept = append(kept, n)
	}
	removed := len(s.next) - len(kept)
	s.next = kept
	return removed
}

// ResolveTrack returns the track the engine should load for flatIndex.
// The index saturates into range. With shuffle off and a request that did
// not come from a user tap, a Next track at the front always wins.
func (s *Store) ResolveTrack(flatIndex int, shuffleEnabled, fromTouch bool) (track.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.totalLocked() == 0 {
		return track.Track{}, ErrQueueEmpty
	}
	if !shuffleEnabled && !fromTouch && len(s.next) > 0 {
		return s.next[0], nil
	}
	return s.atLocked(s.clampLocked(flatIndex)), nil
}

// SelectShuffleIndex picks a uniformly random unplayed flattened index and
// marks it played. When every entry is played the flags are reset and the
// selection is retried once.
func (s *Store) SelectShuffleIndex() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalLocked() == 0 {
		return 0, ErrQueueEmpty
	}

	idx, ok := s.pickUnplayedLocked()
	if !ok {
		s.resetPlayedLocked()
		idx, ok = s.pickUnplayedLocked()
		if !ok {
			return 0, ErrQueueEmpty
		}
	}
	s.ptrLocked(idx).Played = true
	return idx, nil
}

// IndexForMainPosition translates a main-queue index into flattened coordinates.
func (s *Store) IndexForMainPosition(mainIndex int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mainIndex + len(s.next)
}

// IndexForNextPosition drops the first nextIndex entries of the next queue,
// treating them as skipped, and returns flattened index 0.
func (s *Store) IndexForNextPosition(nextIndex int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nextIndex <= 0 {
		return 0
	}
	if nextIndex > len(s.next) {
		nextIndex = len(s.next)
	}
	rest := make([]track.Track, 0, len(s.next)-nextIndex)
	for _, n := range s.next[nextIndex:] {
		n.Position = len(rest)
		rest = append(rest, n)
	}
	s.next = rest
	return 0
}

// TrackAt returns the track at index, saturating out-of-range indices to the
// first or last track.
func (s *Store) TrackAt(index int) (track.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.totalLocked() == 0 {
		return track.Track{}, ErrQueueEmpty
	}
	return s.atLocked(s.clampLocked(index)), nil
}

// TotalTracks returns the length of the flattened view.
func (s *Store) TotalTracks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalLocked()
}

// NextCount returns the number of tracks in the next queue.
func (s *Store) NextCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.next)
}

// MainTracks returns a copy of the main queue.
func (s *Store) MainTracks() []track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTracks(s.main)
}

// NextTracks returns a copy of the next queue.
func (s *Store) NextTracks() []track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTracks(s.next)
}

// AllTracks returns a copy of the flattened view.
func (s *Store) AllTracks() []track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLocked()
}

// AppendHistory records a track that was presented as current.
func (s *Store) AppendHistory(t track.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, t)
}

// History returns a copy of the history.
func (s *Store) History() []track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTracks(s.history)
}

// ResetPlayed clears the played flag on every entry.
func (s *Store) ResetPlayed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetPlayedLocked()
}

// Snapshot is a consistent copy of the store collections.
type Snapshot struct {
	Main    []track.Track
	Next    []track.Track
	All     []track.Track
	History []track.Track
}

// Snapshot returns all collections taken under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Main:    cloneTracks(s.main),
		Next:    cloneTracks(s.next),
		All:     s.allLocked(),
		History: cloneTracks(s.history),
	}
}

func (s *Store) totalLocked() int {
	return len(s.next) + len(s.main)
}

func (s *Store) clampLocked(index int) int {
	if index < 0 {
		return 0
	}
	if last := s.totalLocked() - 1; index > last {
		return last
	}
	return index
}

// ptrLocked maps a flattened index onto the entry in its source queue.
func (s *Store) ptrLocked(index int) *track.Track {
	if index < len(s.next) {
		return &s.next[index]
	}
	return &s.main[index-len(s.next)]
}

func (s *Store) atLocked(index int) track.Track {
	return *s.ptrLocked(index)
}

func (s *Store) allLocked() []track.Track {
	all := make([]track.Track, 0, s.totalLocked())
	all = append(all, s.next...)
	all = append(all, s.main...)
	return all
}

func (s *Store) pickUnplayedLocked() (int, bool) {
	candidates := make([]int, 0, s.totalLocked())
	for i := 0; i < s.totalLocked(); i++ {
		if !s.ptrLocked(i).Played {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[s.intN(len(candidates))], true
}

func (s *Store) intN(n int) int {
	if s.rnd != nil {
		return s.rnd.IntN(n)
	}
	return rand.IntN(n)
}

func (s *Store) resetPlayedLocked() {
	for i := range s.next {
		s.next[i].Played = false
	}
	for i := range s.main {
		s.main[i].Played = false
	}
}

func cloneTracks(tracks []track.Track) []track.Track {
	result := make([]track.Track, len(tracks))
	copy(result, tracks)
	return result
}
