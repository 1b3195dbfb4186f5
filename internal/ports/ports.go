package ports

import "time"

// SinkEventKind discriminates audio sink events.
type SinkEventKind int

const (
	// SinkTimeUpdate reports the current playback position.
	SinkTimeUpdate SinkEventKind = iota
	// SinkDurationKnown reports the track duration once known.
	SinkDurationKnown
	// SinkEnded reports a completed playthrough, exactly once.
	SinkEnded
	// SinkFailed reports a playback failure.
	SinkFailed
)

// SinkEvent is one event emitted by an audio sink.
type SinkEvent struct {
	Kind    SinkEventKind
	Seconds float64
	Err     error
}

// AudioSink plays a byte stream of audio at a URL and reports progress
// through its event channel. Implementations must emit SinkEnded exactly
// once per completed playthrough and must not drop SinkFailed events.
type AudioSink interface {
	Load(url string) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(volume float64) error
	SetRate(rate float64) error
	Events() <-chan SinkEvent
	Close() error
}

// Store is a durable key-value capability with no partially written
// values visible to readers.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Publisher publishes payloads to a topic.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}
