package player

import (
	"errors"
	"math/rand"
	"strings"
	"sync"

	"github.com/stesse/stesse/pkg/stesse"
)

// ErrOutOfRange indicates an index outside the playlist bounds.
var ErrOutOfRange = errors.New("index out of range")

// ErrNotFound indicates a track id absent from the playlist.
var ErrNotFound = errors.New("track not found")

// Playlist owns the ordered track list, the current-index pointer, the
// shuffle permutation, repeat mode and the search view. Navigation never
// touches the sink; callers load whatever Current points at afterwards.
type Playlist struct {
	mu      sync.Mutex
	tracks  []stesse.Track
	index   int // -1 when empty
	order   []int
	orderAt int
	repeat  stesse.RepeatMode
	query   string
	rng     *rand.Rand
}

// NewPlaylist creates an empty playlist. The rng seeds shuffle
// permutations; pass nil for the default source.
func NewPlaylist(rng *rand.Rand) *Playlist {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Playlist{index: -1, rng: rng}
}

// Set replaces the track list. The current track is preserved by id when
// still present, otherwise the pointer resets to the head. An active
// shuffle gets a fresh permutation over the new list.
func (p *Playlist) Set(tracks []stesse.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var currentID string
	if p.index >= 0 && p.index < len(p.tracks) {
		currentID = p.tracks[p.index].ID
	}

	p.tracks = make([]stesse.Track, len(tracks))
	copy(p.tracks, tracks)

	p.index = -1
	if len(p.tracks) > 0 {
		p.index = 0
		if currentID != "" {
			for i, track := range p.tracks {
				if track.ID == currentID {
					p.index = i
					break
				}
			}
		}
	}

	if p.order != nil {
		p.reshuffleLocked()
	}
}

// Current returns the track at the pointer.
func (p *Playlist) Current() (stesse.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index < 0 || p.index >= len(p.tracks) {
		return stesse.Track{}, false
	}
	return p.tracks[p.index], true
}

// Next advances the pointer and reports whether a track should play.
// Repeat-one replays the current index; repeat-off stops at the tail
// without wrapping.
func (p *Playlist) Next() (stesse.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index < 0 {
		return stesse.Track{}, false
	}
	if p.repeat == stesse.RepeatOne {
		return p.tracks[p.index], true
	}

	if p.order != nil {
		if p.orderAt+1 < len(p.order) {
			p.orderAt++
		} else if p.repeat == stesse.RepeatAll {
			p.orderAt = 0
		} else {
			return p.tracks[p.index], false
		}
		p.index = p.order[p.orderAt]
		return p.tracks[p.index], true
	}

	if p.index+1 < len(p.tracks) {
		p.index++
	} else if p.repeat == stesse.RepeatAll {
		p.index = 0
	} else {
		return p.tracks[p.index], false
	}
	return p.tracks[p.index], true
}

// Prev moves the pointer back, mirroring Next. It always moves to the
// prior position; restart-if-mid-track belongs to the caller.
func (p *Playlist) Prev() (stesse.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index < 0 {
		return stesse.Track{}, false
	}
	if p.repeat == stesse.RepeatOne {
		return p.tracks[p.index], true
	}

	if p.order != nil {
		if p.orderAt > 0 {
			p.orderAt--
		} else if p.repeat == stesse.RepeatAll {
			p.orderAt = len(p.order) - 1
		} else {
			return p.tracks[p.index], false
		}
		p.index = p.order[p.orderAt]
		return p.tracks[p.index], true
	}

	if p.index > 0 {
		p.index--
	} else if p.repeat == stesse.RepeatAll {
		p.index = len(p.tracks) - 1
	} else {
		return p.tracks[p.index], false
	}
	return p.tracks[p.index], true
}

// Jump sets the pointer to an index.
func (p *Playlist) Jump(index int) (stesse.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.tracks) {
		return stesse.Track{}, ErrOutOfRange
	}
	p.index = index
	p.syncOrderLocked()
	return p.tracks[p.index], nil
}

// JumpID sets the pointer to the track with the given id.
func (p *Playlist) JumpID(id string) (stesse.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, track := range p.tracks {
		if track.ID == id {
			p.index = i
			p.syncOrderLocked()
			return track, nil
		}
	}
	return stesse.Track{}, ErrNotFound
}

// ToggleShuffle enables shuffle with a fresh uniform permutation, or
// discards the permutation. The pointed-at track never changes.
func (p *Playlist) ToggleShuffle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.order != nil {
		p.order = nil
		p.orderAt = 0
		return false
	}
	p.reshuffleLocked()
	return true
}

// SetShuffle forces shuffle on or off.
func (p *Playlist) SetShuffle(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if on && p.order == nil {
		p.reshuffleLocked()
	}
	if !on {
		p.order = nil
		p.orderAt = 0
	}
}

// ToggleRepeat cycles off -> all -> one -> off.
func (p *Playlist) ToggleRepeat() stesse.RepeatMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = stesse.NextRepeatMode(p.repeat)
	return p.repeat
}

// SetRepeat sets the repeat mode directly.
func (p *Playlist) SetRepeat(mode stesse.RepeatMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = mode
}

// SetSearch sets the filter query for the derived view.
func (p *Playlist) SetSearch(query string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.query = query
}

// ClearSearch drops the filter query.
func (p *Playlist) ClearSearch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.query = ""
}

// Filtered returns the tracks matching the search query on title, artist
// or album, case-insensitively. With no query it returns all tracks.
// The view is derived; the underlying list and pointer are untouched.
func (p *Playlist) Filtered() []stesse.Track {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.query == "" {
		out := make([]stesse.Track, len(p.tracks))
		copy(out, p.tracks)
		return out
	}

	needle := strings.ToLower(p.query)
	out := make([]stesse.Track, 0, len(p.tracks))
	for _, track := range p.tracks {
		if strings.Contains(strings.ToLower(track.Title), needle) ||
			strings.Contains(strings.ToLower(track.Artist), needle) ||
			strings.Contains(strings.ToLower(track.Album), needle) {
			out = append(out, track)
		}
	}
	return out
}

// Tracks returns a copy of the full track list.
func (p *Playlist) Tracks() []stesse.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stesse.Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// Summary returns the queue summary for state publishing.
func (p *Playlist) Summary() stesse.QueueState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return stesse.QueueState{
		Length:   len(p.tracks),
		Index:    p.index,
		Shuffled: p.order != nil,
		Repeat:   p.repeat,
		Query:    p.query,
	}
}

func (p *Playlist) reshuffleLocked() {
	if len(p.tracks) == 0 {
		p.order = []int{}
		p.orderAt = 0
		return
	}
	p.order = p.rng.Perm(len(p.tracks))
	p.syncOrderLocked()
}

// syncOrderLocked points orderAt at the permutation slot holding the
// current index.
func (p *Playlist) syncOrderLocked() {
	if p.order == nil {
		return
	}
	for at, idx := range p.order {
		if idx == p.index {
			p.orderAt = at
			return
		}
	}
	p.orderAt = 0
}
