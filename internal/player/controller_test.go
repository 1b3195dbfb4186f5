package player

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/adapters/clock"
	"github.com/stesse/stesse/internal/ports"
	"github.com/stesse/stesse/pkg/stesse"
)

type fakeCatalog struct {
	tracks []stesse.Track
}

func (f *fakeCatalog) FetchByGenre(ctx context.Context, genreID string) ([]stesse.Track, error) {
	return f.tracks, nil
}

type fakeStreams struct {
	mu      sync.Mutex
	blocked map[string]chan struct{}
	calls   []string
	lastCtx context.Context
}

func newFakeStreams() *fakeStreams {
	return &fakeStreams{blocked: map[string]chan struct{}{}}
}

func (f *fakeStreams) block(trackID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.blocked[trackID] = ch
	return ch
}

func (f *fakeStreams) Resolve(ctx context.Context, track stesse.Track) (ResolvedStream, error) {
	f.mu.Lock()
	f.calls = append(f.calls, track.ID)
	f.lastCtx = ctx
	gate := f.blocked[track.ID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return ResolvedStream{URL: "http://cdn/" + track.ID + ".mp3"}, nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type controllerFixture struct {
	sink       *fakeSink
	engine     *Engine
	playlist   *Playlist
	store      *memStore
	streams    *fakeStreams
	controller *Controller
}

func newFixture(trackIDs ...string) *controllerFixture {
	tracks := make([]stesse.Track, len(trackIDs))
	for i, id := range trackIDs {
		tracks[i] = testTrack(id, 180)
	}
	sink := newFakeSink()
	engine := NewEngine(zap.NewNop(), sink)
	playlist := NewPlaylist(rand.New(rand.NewSource(1)))
	store := newMemStore()
	streams := newFakeStreams()
	session := NewSession(zap.NewNop(), store)
	controller := NewController(zap.NewNop(), engine, playlist, session,
		&fakeCatalog{tracks: tracks}, streams, clock.Clock{}, "")
	return &controllerFixture{
		sink:       sink,
		engine:     engine,
		playlist:   playlist,
		store:      store,
		streams:    streams,
		controller: controller,
	}
}

func (f *controllerFixture) loadedURLs() []string {
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	return append([]string(nil), f.sink.loads...)
}

func TestControllerStartLoadsWithoutAutoplay(t *testing.T) {
	f := newFixture("a", "b")
	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	loads := f.loadedURLs()
	if len(loads) != 1 || !strings.Contains(loads[0], "/a.mp3") {
		t.Fatalf("loads = %v, want track a only", loads)
	}
	if f.sink.playCount() != 0 {
		t.Fatal("autoplayed on startup")
	}
}

func TestControllerEndedAdvancesPlaylist(t *testing.T) {
	f := newFixture("a", "b")
	if err := f.controller.PlayIndex(context.Background(), 0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	f.engine.handleSinkEvent(sinkDuration(180))
	f.engine.handleSinkEvent(sinkEnded())

	loads := f.loadedURLs()
	if len(loads) != 2 || !strings.Contains(loads[1], "/b.mp3") {
		t.Fatalf("loads = %v, want a then b", loads)
	}
	if got := f.playlist.Summary().Index; got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
}

func TestControllerEndedAtTailStops(t *testing.T) {
	f := newFixture("a", "b")
	if err := f.controller.PlayIndex(context.Background(), 1); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	f.engine.handleSinkEvent(sinkDuration(180))
	f.engine.handleSinkEvent(sinkEnded())

	if got := len(f.loadedURLs()); got != 1 {
		t.Fatalf("loads = %d, want 1 (no wrap past tail)", got)
	}
	if got := f.engine.State().Status; got != stesse.StatusEnded {
		t.Fatalf("status = %v, want ended", got)
	}
}

func TestControllerRepeatOneReplays(t *testing.T) {
	f := newFixture("a", "b")
	f.playlist.SetRepeat(stesse.RepeatOne)
	if err := f.controller.PlayIndex(context.Background(), 0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	f.engine.handleSinkEvent(sinkDuration(180))
	f.engine.handleSinkEvent(sinkEnded())

	loads := f.loadedURLs()
	if len(loads) != 2 || !strings.Contains(loads[1], "/a.mp3") {
		t.Fatalf("loads = %v, want a twice", loads)
	}
}

func TestControllerStaleResolutionDiscarded(t *testing.T) {
	f := newFixture("a", "b")
	gate := f.streams.block("a")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.controller.PlayIndex(context.Background(), 0)
	}()

	// Navigate to b while a's resolution is still in flight.
	waitForCall(t, f.streams, "a")
	if err := f.controller.PlayIndex(context.Background(), 1); err != nil {
		t.Fatalf("PlayIndex(1): %v", err)
	}
	close(gate)
	<-done

	loads := f.loadedURLs()
	if len(loads) != 1 || !strings.Contains(loads[0], "/b.mp3") {
		t.Fatalf("loads = %v, want only b (a's resolution was stale)", loads)
	}
}

func TestControllerRestoreSeeksOnceOnMatch(t *testing.T) {
	f := newFixture("t1", "t2")
	saveSnapshot(t, f.store, stesse.Snapshot{CurrentTrackID: "t1", CurrentTime: 42, Volume: 0.8})

	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// No seek before the sink reports readiness.
	if got := seekCount(f.sink); got != 0 {
		t.Fatalf("seeks before ready = %d, want 0", got)
	}

	f.engine.handleSinkEvent(sinkDuration(180))
	f.sink.mu.Lock()
	seeks := append([]float64(nil), f.sink.seeks...)
	f.sink.mu.Unlock()
	if len(seeks) != 1 || seeks[0] != 42 {
		t.Fatalf("seeks = %v, want [42]", seeks)
	}

	// Readiness for the next track must not seek again.
	f.engine.handleSinkEvent(sinkEnded())
	f.engine.handleSinkEvent(sinkDuration(180))
	if got := seekCount(f.sink); got != 1 {
		t.Fatalf("seeks = %d, want still 1", got)
	}

	if got := f.engine.State().Volume; got != 0.8 {
		t.Fatalf("restored volume = %v, want 0.8", got)
	}
}

func TestControllerRestoreSkipsMismatchedTrack(t *testing.T) {
	f := newFixture("t1", "t2")
	saveSnapshot(t, f.store, stesse.Snapshot{CurrentTrackID: "gone", CurrentTime: 42, Volume: 1})

	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.engine.handleSinkEvent(sinkDuration(180))
	if got := seekCount(f.sink); got != 0 {
		t.Fatalf("seeks = %d, want 0 for mismatched snapshot", got)
	}
}

func TestControllerSnapshotCapturesSession(t *testing.T) {
	f := newFixture("a", "b")
	if err := f.controller.PlayIndex(context.Background(), 1); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}
	f.engine.handleSinkEvent(sinkDuration(180))
	f.controller.Seek(30)
	f.controller.SetVolume(0.5)
	f.controller.ToggleShuffle()

	snap, ok := f.controller.Snapshot()
	if !ok {
		t.Fatal("Snapshot reported nothing to persist")
	}
	if snap.CurrentTrackID != "b" || snap.CurrentTime != 30 || snap.Volume != 0.5 || !snap.Shuffled {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestControllerResolutionFailureSurfacesError(t *testing.T) {
	sink := newFakeSink()
	engine := NewEngine(zap.NewNop(), sink)
	playlist := NewPlaylist(nil)
	session := NewSession(zap.NewNop(), newMemStore())
	controller := NewController(zap.NewNop(), engine, playlist, session,
		&fakeCatalog{tracks: []stesse.Track{testTrack("a", 180)}},
		failingStreams{}, clock.Clock{}, "")

	var events []stesse.Event
	controller.SetOnEvent(func(ev stesse.Event) { events = append(events, ev) })

	playlist.Set([]stesse.Track{testTrack("a", 180)})
	if err := controller.PlayIndex(context.Background(), 0); err != nil {
		t.Fatalf("PlayIndex: %v", err)
	}

	state := engine.State()
	if state.Status != stesse.StatusError || state.LastError == "" {
		t.Fatalf("state = %+v, want error with message", state)
	}
	errorEvents := 0
	for _, ev := range events {
		if ev.Type == stesse.EventError {
			errorEvents++
			if ev.TrackID != "a" {
				t.Fatalf("error event track = %q, want a", ev.TrackID)
			}
		}
	}
	if errorEvents != 1 {
		t.Fatalf("error events = %d in %+v, want exactly one per failure", errorEvents, events)
	}
}

func TestControllerAdvanceUsesRunContext(t *testing.T) {
	f := newFixture("a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	if err := f.controller.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.engine.handleSinkEvent(sinkDuration(180))

	// Teardown before the track finishes: the ended advance must run
	// under the cancelled lifetime, not a fresh background context.
	cancel()
	f.engine.handleSinkEvent(sinkEnded())

	f.streams.mu.Lock()
	calls := append([]string(nil), f.streams.calls...)
	advanceCtx := f.streams.lastCtx
	f.streams.mu.Unlock()

	if len(calls) == 0 || calls[len(calls)-1] != "b" {
		t.Fatalf("calls = %v, want an advance resolution for b", calls)
	}
	if advanceCtx.Err() == nil {
		t.Fatal("advance resolution ran detached from the cancelled lifetime")
	}
}

type failingStreams struct{}

func (failingStreams) Resolve(ctx context.Context, track stesse.Track) (ResolvedStream, error) {
	return ResolvedStream{}, &stubResolveError{}
}

type stubResolveError struct{}

func (*stubResolveError) Error() string { return "no playable format" }

func sinkDuration(seconds float64) ports.SinkEvent {
	return ports.SinkEvent{Kind: ports.SinkDurationKnown, Seconds: seconds}
}

func sinkEnded() ports.SinkEvent {
	return ports.SinkEvent{Kind: ports.SinkEnded}
}

func saveSnapshot(t *testing.T, store *memStore, snap stesse.Snapshot) {
	t.Helper()
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if err := store.Set(snapshotKey, raw); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
}

func seekCount(sink *fakeSink) int {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return len(sink.seeks)
}

func waitForCall(t *testing.T, streams *fakeStreams, trackID string) {
	t.Helper()
	for i := 0; i < 200; i++ {
		streams.mu.Lock()
		for _, id := range streams.calls {
			if id == trackID {
				streams.mu.Unlock()
				return
			}
		}
		streams.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("resolution for %q never started", trackID)
}
