package stesse

// Track is one playable catalog entry. Immutable once built from catalog
// data; Source carries whatever the catalog needs to later resolve a
// stream and is forwarded as-is, never re-derived.
type Track struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	Album         string    `json:"album"`
	Duration      int64     `json:"durationSeconds"`
	CoverURL      string    `json:"coverUrl,omitempty"`
	Genre         string    `json:"genre,omitempty"`
	PlaybackCount int64     `json:"playbackCount,omitempty"`
	Permalink     string    `json:"permalink,omitempty"`
	Source        SourceRef `json:"source"`
}

// SourceRef holds the resolution inputs for a track: a legacy direct
// stream locator, a list of encoding variants, or both.
type SourceRef struct {
	StreamURL    string        `json:"streamUrl,omitempty"`
	Transcodings []Transcoding `json:"transcodings,omitempty"`
}

// Transcoding is one encoding variant offered by the catalog.
type Transcoding struct {
	URL      string `json:"url"`
	Protocol string `json:"protocol"`
	MimeType string `json:"mimeType,omitempty"`
}

// Streamable reports whether the track has any resolvable source.
func (t Track) Streamable() bool {
	return t.Source.StreamURL != "" || len(t.Source.Transcodings) > 0
}

// PlaybackStatus is the playback engine state.
type PlaybackStatus string

const (
	StatusIdle    PlaybackStatus = "idle"
	StatusLoading PlaybackStatus = "loading"
	StatusReady   PlaybackStatus = "ready"
	StatusPlaying PlaybackStatus = "playing"
	StatusPaused  PlaybackStatus = "paused"
	StatusEnded   PlaybackStatus = "ended"
	StatusError   PlaybackStatus = "error"
)

// RepeatMode selects playlist advance behavior at track end.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// NextRepeatMode cycles off -> all -> one -> off.
func NextRepeatMode(mode RepeatMode) RepeatMode {
	switch mode {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// PlaybackState describes the playback engine's observable state.
type PlaybackState struct {
	Status    PlaybackStatus `json:"status"`
	Position  float64        `json:"positionSeconds"`
	Duration  float64        `json:"durationSeconds"`
	Volume    float64        `json:"volume"`
	Rate      float64        `json:"rate"`
	Muted     bool           `json:"muted"`
	Loading   bool           `json:"loading"`
	LastError string         `json:"lastError,omitempty"`
}

// QueueState summarizes the playlist.
type QueueState struct {
	Length   int        `json:"length"`
	Index    int        `json:"index"`
	Shuffled bool       `json:"shuffled"`
	Repeat   RepeatMode `json:"repeatMode"`
	Query    string     `json:"searchQuery,omitempty"`
}

// PlayerState is the combined retained state payload.
type PlayerState struct {
	Playback PlaybackState `json:"playback"`
	Queue    QueueState    `json:"queue"`
	Current  *Track        `json:"current,omitempty"`
	Genre    string        `json:"genre,omitempty"`
	TS       int64         `json:"ts"`
}

// Snapshot is the durable session snapshot written every few seconds and
// restored once at startup.
type Snapshot struct {
	CurrentTrackID string     `json:"currentTrackId"`
	CurrentTime    float64    `json:"currentTime"`
	Volume         float64    `json:"volume"`
	Shuffled       bool       `json:"isShuffled"`
	Repeat         RepeatMode `json:"repeatMode"`
	Genre          string     `json:"genre,omitempty"`
}

// Event is a player lifecycle event published alongside retained state.
type Event struct {
	Type    string `json:"type"`
	TrackID string `json:"trackId,omitempty"`
	Message string `json:"message,omitempty"`
	TS      int64  `json:"ts"`
}

// Event types published on the events topic.
const (
	EventTrackChanged = "trackChanged"
	EventEnded        = "ended"
	EventError        = "error"
)
