package player

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stesse/stesse/pkg/stesse"
)

func testPlaylist(n int) *Playlist {
	p := NewPlaylist(rand.New(rand.NewSource(42)))
	tracks := make([]stesse.Track, n)
	for i := range tracks {
		tracks[i] = stesse.Track{
			ID:     string(rune('a' + i)),
			Title:  "Title " + string(rune('A'+i)),
			Artist: "Artist",
			Album:  "Album",
		}
	}
	p.Set(tracks)
	return p
}

func TestNextNoWrapAtTail(t *testing.T) {
	p := testPlaylist(3)
	p.Jump(2)

	track, advanced := p.Next()
	if advanced {
		t.Fatal("advanced past the tail with repeat off")
	}
	if track.ID != "c" {
		t.Fatalf("current = %q, want c", track.ID)
	}
	if got := p.Summary().Index; got != 2 {
		t.Fatalf("index = %d, want 2", got)
	}
}

func TestNextThenPrevRestoresIndex(t *testing.T) {
	p := testPlaylist(5)
	p.Jump(1)

	if _, ok := p.Next(); !ok {
		t.Fatal("Next failed")
	}
	if _, ok := p.Prev(); !ok {
		t.Fatal("Prev failed")
	}
	if got := p.Summary().Index; got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
}

func TestRepeatAllWraps(t *testing.T) {
	p := testPlaylist(3)
	p.SetRepeat(stesse.RepeatAll)
	p.Jump(2)

	track, ok := p.Next()
	if !ok {
		t.Fatal("Next failed")
	}
	if track.ID != "a" {
		t.Fatalf("wrapped to %q, want a", track.ID)
	}

	p.Jump(0)
	track, ok = p.Prev()
	if !ok {
		t.Fatal("Prev failed")
	}
	if track.ID != "c" {
		t.Fatalf("wrapped back to %q, want c", track.ID)
	}
}

func TestRepeatOneReplaysCurrent(t *testing.T) {
	p := testPlaylist(3)
	p.SetRepeat(stesse.RepeatOne)
	p.Jump(1)

	track, ok := p.Next()
	if !ok || track.ID != "b" {
		t.Fatalf("Next = %q/%v, want b/true", track.ID, ok)
	}
	if got := p.Summary().Index; got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
}

func TestShuffleTogglePreservesCurrentTrack(t *testing.T) {
	p := testPlaylist(8)
	p.Jump(4)
	before, _ := p.Current()

	p.ToggleShuffle()
	mid, _ := p.Current()
	if mid.ID != before.ID {
		t.Fatalf("current changed to %q on shuffle enable", mid.ID)
	}

	p.ToggleShuffle()
	after, _ := p.Current()
	if after.ID != before.ID {
		t.Fatalf("current changed to %q on shuffle disable", after.ID)
	}
	if p.Summary().Shuffled {
		t.Fatal("still shuffled after disable")
	}
}

func TestShuffleRepeatAllVisitsEveryTrackOnce(t *testing.T) {
	p := testPlaylist(6)
	p.SetRepeat(stesse.RepeatAll)
	p.ToggleShuffle()

	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		track, ok := p.Next()
		if !ok {
			t.Fatal("Next failed under repeat all")
		}
		seen[track.ID]++
	}
	if len(seen) != 6 {
		t.Fatalf("visited %d distinct tracks, want 6", len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("track %q visited %d times in one cycle", id, count)
		}
	}
}

func TestSetPreservesCurrentByID(t *testing.T) {
	p := testPlaylist(4)
	p.Jump(2)

	// New list with the current track ("c") at a different position.
	p.Set([]stesse.Track{
		{ID: "x", Title: "X"},
		{ID: "c", Title: "Title C"},
		{ID: "y", Title: "Y"},
	})
	track, ok := p.Current()
	if !ok || track.ID != "c" {
		t.Fatalf("current = %q/%v, want c", track.ID, ok)
	}
	if got := p.Summary().Index; got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}

	// Current track gone: pointer resets to head.
	p.Set([]stesse.Track{{ID: "m"}, {ID: "n"}})
	track, _ = p.Current()
	if track.ID != "m" {
		t.Fatalf("current = %q, want m", track.ID)
	}
}

func TestSearchIsDerivedView(t *testing.T) {
	p := NewPlaylist(nil)
	p.Set([]stesse.Track{
		{ID: "1", Title: "Moonlight Sonata", Artist: "Beethoven", Album: "Classics"},
		{ID: "2", Title: "Deep Space", Artist: "Ambient Waves", Album: "Journey"},
		{ID: "3", Title: "Sonny's Blues", Artist: "Jazz Trio", Album: "Live"},
	})
	p.Jump(2)

	p.SetSearch("SON")
	got := p.Filtered()
	if len(got) != 2 {
		t.Fatalf("filtered = %d tracks, want 2", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("filtered ids = %q, %q", got[0].ID, got[1].ID)
	}

	// The view never moves the pointer or mutates the list.
	if idx := p.Summary().Index; idx != 2 {
		t.Fatalf("index = %d, want 2", idx)
	}
	if n := len(p.Tracks()); n != 3 {
		t.Fatalf("tracks = %d, want 3", n)
	}

	p.ClearSearch()
	if n := len(p.Filtered()); n != 3 {
		t.Fatalf("filtered after clear = %d, want 3", n)
	}
}

func TestJumpValidation(t *testing.T) {
	p := testPlaylist(2)

	if _, err := p.Jump(5); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Jump(5) = %v, want ErrOutOfRange", err)
	}
	if _, err := p.Jump(-1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Jump(-1) = %v, want ErrOutOfRange", err)
	}
	if _, err := p.JumpID("zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("JumpID = %v, want ErrNotFound", err)
	}
	// Failed navigation leaves the pointer alone.
	if got := p.Summary().Index; got != 0 {
		t.Fatalf("index = %d, want 0", got)
	}
}

func TestRepeatCycle(t *testing.T) {
	p := testPlaylist(1)
	if got := p.ToggleRepeat(); got != stesse.RepeatAll {
		t.Fatalf("repeat = %v, want all", got)
	}
	if got := p.ToggleRepeat(); got != stesse.RepeatOne {
		t.Fatalf("repeat = %v, want one", got)
	}
	if got := p.ToggleRepeat(); got != stesse.RepeatOff {
		t.Fatalf("repeat = %v, want off", got)
	}
}
