package player

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/ports"
	"github.com/stesse/stesse/pkg/stesse"
)

// ErrNoTrack indicates a transport command with nothing loaded.
var ErrNoTrack = errors.New("no track loaded")

// Engine wraps a single audio sink and owns the playback state machine:
// idle -> loading -> ready -> {playing <-> paused} -> ended, with error
// reachable from loading or playing and left only by a fresh Load.
type Engine struct {
	sink ports.AudioSink
	log  *zap.Logger

	mu       sync.Mutex
	status   stesse.PlaybackStatus
	track    *stesse.Track
	position float64
	duration float64
	volume   float64
	rate     float64
	muted    bool
	pending  bool
	lastErr  string

	onChange func(stesse.PlaybackState)
}

// NewEngine creates an idle engine over the given sink.
func NewEngine(log *zap.Logger, sink ports.AudioSink) *Engine {
	return &Engine{
		sink:   sink,
		log:    log,
		status: stesse.StatusIdle,
		volume: 1.0,
		rate:   1.0,
	}
}

// SetOnChange registers the state-change listener. The listener is
// invoked outside the engine lock, from whichever goroutine triggered
// the change.
func (e *Engine) SetOnChange(fn func(stesse.PlaybackState)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Run consumes sink events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-e.sink.Events():
			if !ok {
				return nil
			}
			e.handleSinkEvent(ev)
		}
	}
}

func (e *Engine) handleSinkEvent(ev ports.SinkEvent) {
	e.mu.Lock()
	changed := false
	switch ev.Kind {
	case ports.SinkTimeUpdate:
		pos := ev.Seconds
		if e.duration > 0 && pos > e.duration {
			pos = e.duration
		}
		if pos != e.position {
			e.position = pos
			changed = true
		}
	case ports.SinkDurationKnown:
		e.duration = ev.Seconds
		if e.status == stesse.StatusLoading {
			e.status = stesse.StatusReady
			if e.pending {
				e.pending = false
				if err := e.sink.Play(); err != nil {
					e.status = stesse.StatusError
					e.lastErr = err.Error()
				} else {
					e.status = stesse.StatusPlaying
				}
			}
		}
		changed = true
	case ports.SinkEnded:
		switch e.status {
		case stesse.StatusPlaying, stesse.StatusPaused, stesse.StatusReady:
			e.status = stesse.StatusEnded
			e.position = e.duration
			changed = true
		}
	case ports.SinkFailed:
		switch e.status {
		case stesse.StatusLoading, stesse.StatusPlaying, stesse.StatusPaused, stesse.StatusReady:
			e.status = stesse.StatusError
			if ev.Err != nil {
				e.lastErr = ev.Err.Error()
			} else {
				e.lastErr = "sink failure"
			}
			e.pending = false
			changed = true
		}
	}
	state := e.snapshotLocked()
	fn := e.onChange
	e.mu.Unlock()

	if changed && fn != nil {
		fn(state)
	}
}

// Load starts loading a track. Any prior state, including error, is
// discarded.
func (e *Engine) Load(track stesse.Track, url string) error {
	e.mu.Lock()
	t := track
	e.track = &t
	e.status = stesse.StatusLoading
	e.position = 0
	e.duration = float64(track.Duration)
	e.lastErr = ""
	e.pending = false
	e.mu.Unlock()

	if err := e.sink.Load(url); err != nil {
		e.mu.Lock()
		e.status = stesse.StatusError
		e.lastErr = err.Error()
		e.mu.Unlock()
		e.notify()
		return err
	}
	e.notify()
	return nil
}

// Play starts or resumes playback. Called during loading it defers the
// start until the sink reports readiness.
func (e *Engine) Play() error {
	e.mu.Lock()
	switch e.status {
	case stesse.StatusLoading:
		e.pending = true
		e.mu.Unlock()
		return nil
	case stesse.StatusPlaying:
		e.mu.Unlock()
		return nil
	case stesse.StatusReady, stesse.StatusPaused, stesse.StatusEnded:
		if err := e.sink.Play(); err != nil {
			e.status = stesse.StatusError
			e.lastErr = err.Error()
			e.mu.Unlock()
			e.notify()
			return err
		}
		e.status = stesse.StatusPlaying
		e.mu.Unlock()
		e.notify()
		return nil
	default:
		e.mu.Unlock()
		return ErrNoTrack
	}
}

// Pause pauses playback. A no-op unless currently playing.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.status != stesse.StatusPlaying {
		// Cancels a play deferred from the loading state.
		e.pending = false
		e.mu.Unlock()
		return nil
	}
	if err := e.sink.Pause(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.status = stesse.StatusPaused
	e.mu.Unlock()
	e.notify()
	return nil
}

// TogglePlay flips between playing and paused.
func (e *Engine) TogglePlay() error {
	e.mu.Lock()
	playing := e.status == stesse.StatusPlaying
	e.mu.Unlock()
	if playing {
		return e.Pause()
	}
	return e.Play()
}

// Seek moves the playhead, clamped to [0, duration].
func (e *Engine) Seek(seconds float64) error {
	e.mu.Lock()
	switch e.status {
	case stesse.StatusIdle, stesse.StatusError:
		e.mu.Unlock()
		return ErrNoTrack
	}
	if seconds < 0 {
		seconds = 0
	}
	if e.duration > 0 && seconds > e.duration {
		seconds = e.duration
	}
	if err := e.sink.Seek(seconds); err != nil {
		e.mu.Unlock()
		return err
	}
	e.position = seconds
	e.mu.Unlock()
	e.notify()
	return nil
}

// SetVolume sets the volume, clamped to [0, 1]. While muted the value is
// remembered but not applied to the sink.
func (e *Engine) SetVolume(volume float64) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	e.mu.Lock()
	e.volume = volume
	muted := e.muted
	e.mu.Unlock()

	if !muted {
		if err := e.sink.SetVolume(volume); err != nil {
			return err
		}
	}
	e.notify()
	return nil
}

// ToggleMute silences the sink, restoring the remembered volume on the
// second toggle.
func (e *Engine) ToggleMute() error {
	e.mu.Lock()
	e.muted = !e.muted
	muted := e.muted
	volume := e.volume
	e.mu.Unlock()

	var err error
	if muted {
		err = e.sink.SetVolume(0)
	} else {
		err = e.sink.SetVolume(volume)
	}
	if err != nil {
		return err
	}
	e.notify()
	return nil
}

// SetRate sets the playback rate, clamped to [0.25, 4].
func (e *Engine) SetRate(rate float64) error {
	if rate < 0.25 {
		rate = 0.25
	}
	if rate > 4 {
		rate = 4
	}
	if err := e.sink.SetRate(rate); err != nil {
		return err
	}
	e.mu.Lock()
	e.rate = rate
	e.mu.Unlock()
	e.notify()
	return nil
}

// Fail records the track and forces the error state, used when a stream
// cannot even be resolved to a URL worth loading.
func (e *Engine) Fail(track stesse.Track, message string) {
	e.mu.Lock()
	t := track
	e.track = &t
	e.status = stesse.StatusError
	e.lastErr = message
	e.pending = false
	e.mu.Unlock()
	e.notify()
}

// State returns a consistent snapshot of the playback state.
func (e *Engine) State() stesse.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// CurrentTrack returns the loaded track, if any.
func (e *Engine) CurrentTrack() (stesse.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.track == nil {
		return stesse.Track{}, false
	}
	return *e.track, true
}

func (e *Engine) snapshotLocked() stesse.PlaybackState {
	return stesse.PlaybackState{
		Status:    e.status,
		Position:  e.position,
		Duration:  e.duration,
		Volume:    e.volume,
		Rate:      e.rate,
		Muted:     e.muted,
		Loading:   e.status == stesse.StatusLoading,
		LastError: e.lastErr,
	}
}

func (e *Engine) notify() {
	e.mu.Lock()
	state := e.snapshotLocked()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}
