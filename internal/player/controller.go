package player

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/ports"
	"github.com/stesse/stesse/pkg/stesse"
)

// CatalogSource produces the candidate track list for a genre.
type CatalogSource interface {
	FetchByGenre(ctx context.Context, genreID string) ([]stesse.Track, error)
}

// ResolvedStream is a playable URL for a track. Direct URLs point at the
// upstream and must be fetched through the stream proxy; non-direct URLs
// are already signed and playable as-is.
type ResolvedStream struct {
	URL    string
	Direct bool
}

// StreamSource resolves a track into a playable stream.
type StreamSource interface {
	Resolve(ctx context.Context, track stesse.Track) (ResolvedStream, error)
}

// DefaultGenre is selected when no session snapshot names one.
const DefaultGenre = "lofi"

// Controller wires the playlist, the engine, stream resolution and
// session persistence together. The engine and playlist never call each
// other; all coordination runs through here.
type Controller struct {
	log      *zap.Logger
	engine   *Engine
	playlist *Playlist
	session  *Session
	catalog  CatalogSource
	streams  StreamSource
	clock    ports.Clock

	// proxyBase is the local address whose /api/stream endpoint fronts
	// direct upstream locators.
	proxyBase string

	mu          sync.Mutex
	runCtx      context.Context
	genre       string
	latest      string
	restore     *stesse.Snapshot
	restoreDone bool

	onState func(stesse.PlayerState)
	onEvent func(stesse.Event)
}

// NewController builds the orchestrator and hooks it into the engine's
// state changes.
func NewController(log *zap.Logger, engine *Engine, playlist *Playlist, session *Session, catalog CatalogSource, streams StreamSource, clock ports.Clock, proxyBase string) *Controller {
	c := &Controller{
		log:       log,
		engine:    engine,
		playlist:  playlist,
		session:   session,
		catalog:   catalog,
		streams:   streams,
		clock:     clock,
		proxyBase: proxyBase,
		genre:     DefaultGenre,
	}
	engine.SetOnChange(c.handlePlayback)
	return c
}

// SetDefaultGenre overrides the startup genre. A persisted session
// snapshot still wins over it.
func (c *Controller) SetDefaultGenre(genreID string) {
	c.mu.Lock()
	c.genre = genreID
	c.mu.Unlock()
}

// SetOnState registers the full-state listener.
func (c *Controller) SetOnState(fn func(stesse.PlayerState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// SetOnEvent registers the event listener.
func (c *Controller) SetOnEvent(fn func(stesse.Event)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

// Start restores the persisted session and loads the initial playlist.
// The restored track is loaded paused; playback waits for the user.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()

	snap, ok := c.session.Load()
	if ok {
		c.mu.Lock()
		c.restore = &snap
		c.mu.Unlock()

		if err := c.engine.SetVolume(snap.Volume); err != nil {
			c.log.Warn("restore volume failed", zap.Error(err))
		}
		c.playlist.SetShuffle(snap.Shuffled)
		c.playlist.SetRepeat(snap.Repeat)
		if snap.Genre != "" {
			c.mu.Lock()
			c.genre = snap.Genre
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	genre := c.genre
	c.mu.Unlock()
	return c.loadGenre(ctx, genre, false)
}

// SelectGenre fetches the playlist for a genre and starts its first
// track.
func (c *Controller) SelectGenre(ctx context.Context, genreID string) error {
	return c.loadGenre(ctx, genreID, true)
}

func (c *Controller) loadGenre(ctx context.Context, genreID string, autoplay bool) error {
	tracks, err := c.catalog.FetchByGenre(ctx, genreID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.genre = genreID
	restore := c.restore
	restoreDone := c.restoreDone
	c.mu.Unlock()

	c.playlist.Set(tracks)

	// A pending restore steers the initial pointer to the saved track.
	if restore != nil && !restoreDone && restore.CurrentTrackID != "" {
		if _, err := c.playlist.JumpID(restore.CurrentTrackID); err != nil {
			c.log.Debug("restored track not in playlist", zap.String("track", restore.CurrentTrackID))
		}
	}

	track, ok := c.playlist.Current()
	if !ok {
		c.publishState()
		return nil
	}
	c.startTrack(ctx, track, autoplay)
	return nil
}

// PlayIndex jumps to a playlist index and plays it.
func (c *Controller) PlayIndex(ctx context.Context, index int) error {
	track, err := c.playlist.Jump(index)
	if err != nil {
		return err
	}
	c.startTrack(ctx, track, true)
	return nil
}

// PlayID jumps to a track by id and plays it.
func (c *Controller) PlayID(ctx context.Context, id string) error {
	track, err := c.playlist.JumpID(id)
	if err != nil {
		return err
	}
	c.startTrack(ctx, track, true)
	return nil
}

// PlayNext advances the playlist. At the tail with repeat off the
// current track stays put and nothing loads.
func (c *Controller) PlayNext(ctx context.Context) {
	track, ok := c.playlist.Next()
	if !ok {
		c.publishState()
		return
	}
	c.startTrack(ctx, track, true)
}

// PlayPrevious moves to the prior playlist position. It always moves the
// pointer rather than restarting the current track.
func (c *Controller) PlayPrevious(ctx context.Context) {
	track, ok := c.playlist.Prev()
	if !ok {
		c.publishState()
		return
	}
	c.startTrack(ctx, track, true)
}

// TogglePlay flips between playing and paused.
func (c *Controller) TogglePlay() error { return c.engine.TogglePlay() }

// Play resumes playback.
func (c *Controller) Play() error { return c.engine.Play() }

// Pause pauses playback.
func (c *Controller) Pause() error { return c.engine.Pause() }

// Seek moves the playhead.
func (c *Controller) Seek(seconds float64) error { return c.engine.Seek(seconds) }

// SetVolume sets the volume.
func (c *Controller) SetVolume(v float64) error { return c.engine.SetVolume(v) }

// ToggleMute toggles mute.
func (c *Controller) ToggleMute() error { return c.engine.ToggleMute() }

// SetRate sets the playback rate.
func (c *Controller) SetRate(r float64) error { return c.engine.SetRate(r) }

// ToggleShuffle toggles shuffle and reports the new setting.
func (c *Controller) ToggleShuffle() bool {
	on := c.playlist.ToggleShuffle()
	c.publishState()
	return on
}

// ToggleRepeat cycles the repeat mode and reports the new one.
func (c *Controller) ToggleRepeat() stesse.RepeatMode {
	mode := c.playlist.ToggleRepeat()
	c.publishState()
	return mode
}

// Search sets the playlist filter query.
func (c *Controller) Search(query string) {
	c.playlist.SetSearch(query)
	c.publishState()
}

// ClearSearch drops the playlist filter query.
func (c *Controller) ClearSearch() {
	c.playlist.ClearSearch()
	c.publishState()
}

// Filtered returns the search view over the playlist.
func (c *Controller) Filtered() []stesse.Track { return c.playlist.Filtered() }

// Tracks returns the full playlist.
func (c *Controller) Tracks() []stesse.Track { return c.playlist.Tracks() }

// State returns the combined player state.
func (c *Controller) State() stesse.PlayerState {
	c.mu.Lock()
	genre := c.genre
	c.mu.Unlock()

	state := stesse.PlayerState{
		Playback: c.engine.State(),
		Queue:    c.playlist.Summary(),
		Genre:    genre,
		TS:       c.clock.Now().Unix(),
	}
	if track, ok := c.engine.CurrentTrack(); ok {
		state.Current = &track
	}
	return state
}

// Snapshot captures the persistable session state. It reports false when
// no track is current.
func (c *Controller) Snapshot() (stesse.Snapshot, bool) {
	track, ok := c.engine.CurrentTrack()
	if !ok {
		return stesse.Snapshot{}, false
	}
	playback := c.engine.State()
	queue := c.playlist.Summary()
	c.mu.Lock()
	genre := c.genre
	c.mu.Unlock()

	return stesse.Snapshot{
		CurrentTrackID: track.ID,
		CurrentTime:    playback.Position,
		Volume:         playback.Volume,
		Shuffled:       queue.Shuffled,
		Repeat:         queue.Repeat,
		Genre:          genre,
	}, true
}

// startTrack records the track as the latest requested one and resolves
// its stream. A resolution that completes after another track has been
// requested is discarded.
func (c *Controller) startTrack(ctx context.Context, track stesse.Track, autoplay bool) {
	c.mu.Lock()
	c.latest = track.ID
	c.mu.Unlock()

	c.emitEvent(stesse.Event{Type: stesse.EventTrackChanged, TrackID: track.ID, TS: c.clock.Now().Unix()})

	rs, err := c.streams.Resolve(ctx, track)

	c.mu.Lock()
	stale := c.latest != track.ID
	c.mu.Unlock()
	if stale {
		c.log.Debug("discarding stale resolution", zap.String("track", track.ID))
		return
	}

	if err != nil {
		c.log.Warn("stream resolution failed", zap.String("track", track.ID), zap.Error(err))
		// Fail notifies handlePlayback, which emits the error event.
		c.engine.Fail(track, err.Error())
		return
	}

	streamURL := rs.URL
	if rs.Direct && c.proxyBase != "" {
		streamURL = c.proxyBase + "/api/stream?url=" + url.QueryEscape(rs.URL)
	}

	if err := c.engine.Load(track, streamURL); err != nil {
		c.log.Warn("load failed", zap.String("track", track.ID), zap.Error(err))
		return
	}
	if autoplay {
		if err := c.engine.Play(); err != nil {
			c.log.Warn("play failed", zap.String("track", track.ID), zap.Error(err))
		}
	}
}

// handlePlayback reacts to engine state changes: advancing the playlist
// on end of stream and applying the one-shot restore seek on readiness.
func (c *Controller) handlePlayback(state stesse.PlaybackState) {
	switch state.Status {
	case stesse.StatusEnded:
		if track, ok := c.engine.CurrentTrack(); ok {
			c.emitEvent(stesse.Event{Type: stesse.EventEnded, TrackID: track.ID, TS: c.clock.Now().Unix()})
		}
		c.publishState()
		c.PlayNext(c.runContext())
		return
	case stesse.StatusReady:
		c.maybeRestoreSeek()
	case stesse.StatusError:
		if state.LastError != "" {
			track, _ := c.engine.CurrentTrack()
			c.emitEvent(stesse.Event{Type: stesse.EventError, TrackID: track.ID, Message: state.LastError, TS: c.clock.Now().Unix()})
		}
	}
	c.publishState()
}

// maybeRestoreSeek issues at most one seek per process, only once the
// sink has reported readiness for the restored track.
func (c *Controller) maybeRestoreSeek() {
	c.mu.Lock()
	snap := c.restore
	done := c.restoreDone
	c.restoreDone = true
	c.mu.Unlock()

	if snap == nil || done {
		return
	}
	track, ok := c.engine.CurrentTrack()
	if !ok || track.ID != snap.CurrentTrackID || snap.CurrentTime <= 0 {
		return
	}
	if err := c.engine.Seek(snap.CurrentTime); err != nil {
		c.log.Warn("restore seek failed", zap.Error(err))
	}
}

// runContext is the lifetime auto-advance resolutions run under, so an
// in-flight advance is cancelled with the module instead of outliving
// it. Before Start it falls back to the background context.
func (c *Controller) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}

func (c *Controller) publishState() {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(c.State())
	}
}

func (c *Controller) emitEvent(ev stesse.Event) {
	c.mu.Lock()
	fn := c.onEvent
	c.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
