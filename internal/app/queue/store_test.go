package queue

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/upnext/internal/domain/track"
)

func newTrack(name string) track.Track {
	return track.New("file:///"+name+".mp3", name, "", "", "")
}

func names(tracks []track.Track) []string {
	result := make([]string, len(tracks))
	for i, t := range tracks {
		result[i] = t.Name
	}
	return result
}

func storeWith(t *testing.T, main ...string) *Store {
	t.Helper()
	s := NewStore(WithRand(rand.New(rand.NewPCG(1, 2))))
	tracks := make([]track.Track, len(main))
	for i, n := range main {
		tracks[i] = newTrack(n)
	}
	s.SetMainQueue(tracks)
	return s
}

func assertFlattenedLayout(t *testing.T, s *Store) {
	t.Helper()
	snap := s.Snapshot()
	if !assert.Len(t, snap.All, len(snap.Next)+len(snap.Main), "flattened length") {
		return
	}
	for i, n := range snap.Next {
		assert.Equal(t, track.OriginNext, snap.All[i].Origin, "next prefix origin at %d", i)
		assert.True(t, n.SameAs(snap.All[i]), "next prefix order at %d", i)
		assert.Equal(t, i, n.Position, "next position at %d", i)
	}
	for i, m := range snap.Main {
		assert.Equal(t, track.OriginNormal, snap.All[len(snap.Next)+i].Origin)
		assert.Equal(t, i, m.Position, "main position at %d", i)
	}
}

func TestStore_SetMainQueue(t *testing.T) {
	tests := []struct {
		name  string
		input []string
	}{
		{name: "empty", input: nil},
		{name: "single", input: []string{"A"}},
		{name: "several", input: []string{"A", "B", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := storeWith(t, tt.input...)

			assert.Equal(t, len(tt.input), s.TotalTracks())
			assert.Equal(t, 0, s.NextCount())
			for i, trk := range s.MainTracks() {
				assert.Equal(t, i, trk.Position)
				assert.Equal(t, track.OriginNormal, trk.Origin)
			}
			assertFlattenedLayout(t, s)
		})
	}
}

func TestStore_SetMainQueue_ClearsNextQueue(t *testing.T) {
	s := storeWith(t, "A", "B")
	s.InsertNextTrack(newTrack("X"))
	require.Equal(t, 1, s.NextCount())

	s.SetMainQueue([]track.Track{newTrack("D")})

	assert.Equal(t, 0, s.NextCount())
	assert.Equal(t, []string{"D"}, names(s.AllTracks()))
}

func TestStore_InsertNextTrack(t *testing.T) {
	s := storeWith(t, "A", "B", "C")

	for i, n := range []string{"X", "Y", "Z"} {
		idx := s.InsertNextTrack(newTrack(n))
		assert.Equal(t, 0, idx)

		next := s.NextTracks()
		require.Len(t, next, i+1)
		assert.Equal(t, n, next[0].Name, "newest insert plays first")
		assert.Equal(t, 0, next[0].Position)
		assert.Equal(t, n, s.AllTracks()[0].Name)
		assertFlattenedLayout(t, s)
	}

	assert.Equal(t, []string{"Z", "Y", "X", "A", "B", "C"}, names(s.AllTracks()))
}

func TestStore_InsertNextTrack_ShiftsPositionsByOne(t *testing.T) {
	s := storeWith(t, "A")
	s.InsertNextTrack(newTrack("X"))
	s.InsertNextTrack(newTrack("Y"))
	before := s.NextTracks()

	s.InsertNextTrack(newTrack("Z"))
	after := s.NextTracks()

	require.Len(t, after, len(before)+1)
	for i, b := range before {
		assert.True(t, b.SameAs(after[i+1]))
		assert.Equal(t, b.Position+1, after[i+1].Position)
	}
}

func TestStore_InsertNextTrack_DuplicateIdentity(t *testing.T) {
	s := storeWith(t, "A")
	x := newTrack("X")

	s.InsertNextTrack(x)
	s.InsertNextTrack(x)

	next := s.NextTracks()
	require.Len(t, next, 2)
	assert.True(t, next[0].SameAs(next[1]))
	assert.Equal(t, []int{0, 1}, []int{next[0].Position, next[1].Position})
	assertFlattenedLayout(t, s)
}

func TestStore_MarkNextTrackPlayed(t *testing.T) {
	s := storeWith(t, "A", "B")
	s.InsertNextTrack(newTrack("X"))
	s.InsertNextTrack(newTrack("Y"))

	x := s.NextTracks()[1]
	assert.True(t, s.MarkNextTrackPlayed(x))

	next := s.NextTracks()
	assert.False(t, next[0].Played)
	assert.True(t, next[1].Played)
	assert.True(t, s.AllTracks()[1].Played, "flattened view reflects the flag")
}

func TestStore_MarkNextTrackPlayed_StaleReference(t *testing.T) {
	s := storeWith(t, "A")
	s.InsertNextTrack(newTrack("X"))
	x := s.NextTracks()[0]

	require.True(t, s.MarkNextTrackPlayed(x))
	require.Equal(t, 1, s.PruneConsumedNextTracks())

	assert.False(t, s.MarkNextTrackPlayed(x), "pruned entry is a benign no-op")
	assert.False(t, s.MarkNextTrackPlayed(s.MainTracks()[0]), "normal tracks never match")
	assertFlattenedLayout(t, s)
}

func TestStore_PruneConsumedNextTracks(t *testing.T) {
	tests := []struct {
		name        string
		inserts     []string
		played      []string
		wantRemoved int
		wantAll     []string
	}{
		{
			name:        "nothing played",
			inserts:     []string{"X", "Y"},
			wantRemoved: 0,
			wantAll:     []string{"Y", "X", "A", "B"},
		},
		{
			name:        "front played",
			inserts:     []string{"X", "Y"},
			played:      []string{"Y"},
			wantRemoved: 1,
			wantAll:     []string{"X", "A", "B"},
		},
		{
			name:        "middle played",
			inserts:     []string{"X", "Y", "Z"},
			played:      []string{"Y"},
			wantRemoved: 1,
			wantAll:     []string{"Z", "X", "A", "B"},
		},
		{
			name:        "all played",
			inserts:     []string{"X", "Y", "Z"},
			played:      []string{"X", "Y", "Z"},
			wantRemoved: 3,
			wantAll:     []string{"A", "B"},
		},
		{
			name:        "empty next queue",
			wantRemoved: 0,
			wantAll:     []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := storeWith(t, "A", "B")
			for _, n := range tt.inserts {
				s.InsertNextTrack(newTrack(n))
			}
			for _, p := range tt.played {
				for _, n := range s.NextTracks() {
					if n.Name == p {
						require.True(t, s.MarkNextTrackPlayed(n))
					}
				}
			}

			assert.Equal(t, tt.wantRemoved, s.PruneConsumedNextTracks())
			assert.Equal(t, tt.wantAll, names(s.AllTracks()))
			assertFlattenedLayout(t, s)
		})
	}
}

func TestStore_PruneConsumedNextTracks_KeepsPlayedMainTracks(t *testing.T) {
	s := storeWith(t, "A", "B")
	_, err := s.SelectShuffleIndex()
	require.NoError(t, err)
	_, err = s.SelectShuffleIndex()
	require.NoError(t, err)

	assert.Equal(t, 0, s.PruneConsumedNextTracks())
	assert.Equal(t, 2, s.TotalTracks())
}

func TestStore_ResolveTrack(t *testing.T) {
	s := storeWith(t, "A", "B", "C")
	s.InsertNextTrack(newTrack("X"))

	tests := []struct {
		name      string
		index     int
		shuffle   bool
		fromTouch bool
		want      string
	}{
		{name: "engine advance preempted by next", index: 3, want: "X"},
		{name: "engine advance at zero", index: 0, want: "X"},
		{name: "engine out of range still preempted", index: 99, want: "X"},
		{name: "touch returns requested index", index: 2, fromTouch: true, want: "B"},
		{name: "touch clamps high", index: 4, fromTouch: true, want: "C"},
		{name: "touch clamps low", index: -1, fromTouch: true, want: "X"},
		{name: "shuffle returns requested index", index: 1, shuffle: true, want: "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ResolveTrack(tt.index, tt.shuffle, tt.fromTouch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestStore_ResolveTrack_WithoutNextQueue(t *testing.T) {
	s := storeWith(t, "A", "B", "C")

	got, err := s.ResolveTrack(1, false, false)
	require.NoError(t, err)
	assert.Equal(t, "B", got.Name)

	got, err = s.ResolveTrack(3, false, false)
	require.NoError(t, err)
	assert.Equal(t, "C", got.Name)
}

func TestStore_ResolveTrack_Empty(t *testing.T) {
	s := NewStore()
	_, err := s.ResolveTrack(0, false, false)
	assert.True(t, errors.Is(err, ErrQueueEmpty))
}

func TestStore_SelectShuffleIndex_VisitsEveryTrackOnce(t *testing.T) {
	s := storeWith(t, "A", "B", "C", "D", "E")
	s.InsertNextTrack(newTrack("X"))
	total := s.TotalTracks()

	seen := make(map[int]bool)
	for i := 0; i < total; i++ {
		idx, err := s.SelectShuffleIndex()
		require.NoError(t, err)
		assert.False(t, seen[idx], "index %d repeated before exhaustion", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, total)
	for _, trk := range s.AllTracks() {
		assert.True(t, trk.Played)
	}

	// exhausted: the next call resets and still returns an index
	idx, err := s.SelectShuffleIndex()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, total)

	played := 0
	for _, trk := range s.AllTracks() {
		if trk.Played {
			played++
		}
	}
	assert.Equal(t, 1, played, "only the fresh pick is marked after reset")
}

func TestStore_SelectShuffleIndex_Empty(t *testing.T) {
	s := NewStore()
	_, err := s.SelectShuffleIndex()
	assert.True(t, errors.Is(err, ErrQueueEmpty))
}

func TestStore_IndexForMainPosition(t *testing.T) {
	s := storeWith(t, "A", "B", "C")
	assert.Equal(t, 2, s.IndexForMainPosition(2))

	s.InsertNextTrack(newTrack("X"))
	s.InsertNextTrack(newTrack("Y"))
	assert.Equal(t, 2, s.IndexForMainPosition(0))
	assert.Equal(t, 4, s.IndexForMainPosition(2))

	trk, err := s.TrackAt(s.IndexForMainPosition(1))
	require.NoError(t, err)
	assert.Equal(t, "B", trk.Name)
}

func TestStore_IndexForNextPosition(t *testing.T) {
	tests := []struct {
		name      string
		nextIndex int
		wantNext  []string
	}{
		{name: "zero keeps everything", nextIndex: 0, wantNext: []string{"Z", "Y", "X"}},
		{name: "skip one", nextIndex: 1, wantNext: []string{"Y", "X"}},
		{name: "skip two", nextIndex: 2, wantNext: []string{"X"}},
		{name: "skip beyond length", nextIndex: 10, wantNext: []string{}},
		{name: "negative is ignored", nextIndex: -3, wantNext: []string{"Z", "Y", "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := storeWith(t, "A", "B")
			for _, n := range []string{"X", "Y", "Z"} {
				s.InsertNextTrack(newTrack(n))
			}

			assert.Equal(t, 0, s.IndexForNextPosition(tt.nextIndex))
			assert.Equal(t, tt.wantNext, names(s.NextTracks()))
			assertFlattenedLayout(t, s)
		})
	}
}

func TestStore_TrackAt(t *testing.T) {
	s := storeWith(t, "A", "B", "C")
	total := s.TotalTracks()

	tests := []struct {
		name  string
		index int
		want  string
	}{
		{name: "minus one saturates to first", index: -1, want: "A"},
		{name: "first", index: 0, want: "A"},
		{name: "middle", index: 1, want: "B"},
		{name: "len saturates to last", index: total, want: "C"},
		{name: "far beyond", index: 1000, want: "C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.TrackAt(tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestStore_TrackAt_Empty(t *testing.T) {
	_, err := NewStore().TrackAt(0)
	assert.True(t, errors.Is(err, ErrQueueEmpty))
}

func TestStore_ResetPlayed(t *testing.T) {
	s := storeWith(t, "A", "B")
	s.InsertNextTrack(newTrack("X"))
	for i := 0; i < s.TotalTracks(); i++ {
		_, err := s.SelectShuffleIndex()
		require.NoError(t, err)
	}

	s.ResetPlayed()

	for _, trk := range s.AllTracks() {
		assert.False(t, trk.Played)
	}
}

func TestStore_History(t *testing.T) {
	s := storeWith(t, "A", "B")
	a, _ := s.TrackAt(0)

	s.AppendHistory(a)
	s.AppendHistory(a)

	h := s.History()
	assert.Equal(t, []string{"A", "A"}, names(h), "history keeps duplicates")

	s.SetMainQueue(nil)
	assert.Len(t, s.History(), 2, "replacing the playlist keeps history")
}

func TestStore_LayoutUnderMixedOperations(t *testing.T) {
	s := storeWith(t, "A", "B", "C", "D")
	r := rand.New(rand.NewPCG(7, 11))

	for step := 0; step < 200; step++ {
		switch r.IntN(5) {
		case 0:
			s.InsertNextTrack(newTrack("N"))
		case 1:
			if next := s.NextTracks(); len(next) > 0 {
				s.MarkNextTrackPlayed(next[r.IntN(len(next))])
			}
		case 2:
			s.PruneConsumedNextTracks()
		case 3:
			s.IndexForNextPosition(r.IntN(3))
		case 4:
			_, err := s.SelectShuffleIndex()
			require.NoError(t, err)
		}
		assertFlattenedLayout(t, s)
	}
}

func TestStore_ConcurrentOperations(t *testing.T) {
	s := storeWith(t, "A", "B", "C", "D")

	ops := []func(i int){
		func(i int) { s.InsertNextTrack(newTrack("N")) },
		func(i int) {
			if next := s.NextTracks(); len(next) > 0 {
				s.MarkNextTrackPlayed(next[i%len(next)])
			}
		},
		func(i int) { s.PruneConsumedNextTracks() },
		func(i int) {
			_, err := s.ResolveTrack(i%6, false, i%2 == 0)
			assert.NoError(t, err)
		},
		func(i int) { s.IndexForNextPosition(i % 2) },
		func(i int) {
			_, err := s.SelectShuffleIndex()
			assert.NoError(t, err)
		},
	}

	var wg sync.WaitGroup
	for _, op := range ops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				op(i)
				assertFlattenedLayout(t, s)
			}
		}()
	}
	wg.Wait()
	assertFlattenedLayout(t, s)
}

func TestStore_EndToEnd(t *testing.T) {
	s := storeWith(t, "A", "B", "C")

	s.InsertNextTrack(newTrack("X"))
	assert.Equal(t, []string{"X", "A", "B", "C"}, names(s.AllTracks()))
	assert.Equal(t, 1, s.IndexForMainPosition(0))

	x := s.NextTracks()[0]
	require.True(t, s.MarkNextTrackPlayed(x))
	s.PruneConsumedNextTracks()
	assert.Equal(t, []string{"A", "B", "C"}, names(s.AllTracks()))

	s.SetMainQueue([]track.Track{newTrack("D"), newTrack("E")})
	assert.Equal(t, 0, s.NextCount())
	assert.Equal(t, []string{"D", "E"}, names(s.AllTracks()))
	assert.Equal(t, 2, s.TotalTracks())
}
