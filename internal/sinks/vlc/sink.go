// Package vlc drives playback through a VLC instance's HTTP RC
// interface, synthesizing sink events from a status poll.
package vlc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/ports"
)

// pollInterval is how often the status endpoint is sampled.
const pollInterval = 500 * time.Millisecond

// endSlack is how close to the reported duration counts as end of
// stream. VLC stops reporting just short of the full length.
const endSlack = 0.25

// Config configures the VLC sink.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Sink implements ports.AudioSink over VLC's HTTP RC.
type Sink struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      *zap.Logger

	events chan ports.SinkEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	loaded   bool
	durKnown bool
	eosSeen  bool
}

// New creates the sink and starts its status poller.
func New(log *zap.Logger, cfg Config) (*Sink, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("base_url required")
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		baseURL:  strings.TrimRight(base, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		log:      log,
		events:   make(chan ports.SinkEvent, 32),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.poll(ctx)
	return s, nil
}

// Load points VLC at a new stream, paused at the start.
func (s *Sink) Load(streamURL string) error {
	if streamURL == "" {
		return errors.New("url required")
	}
	_, _ = s.request(url.Values{"command": {"pl_stop"}})
	_, _ = s.request(url.Values{"command": {"pl_empty"}})
	if _, err := s.request(url.Values{"command": {"in_play"}, "input": {streamURL}}); err != nil {
		return err
	}
	// in_play starts immediately; hold it until Play.
	_, _ = s.request(url.Values{"command": {"pl_forcepause"}})

	s.mu.Lock()
	s.loaded = true
	s.durKnown = false
	s.eosSeen = false
	s.mu.Unlock()
	return nil
}

func (s *Sink) Play() error {
	_, err := s.request(url.Values{"command": {"pl_forceresume"}})
	return err
}

func (s *Sink) Pause() error {
	_, err := s.request(url.Values{"command": {"pl_forcepause"}})
	return err
}

func (s *Sink) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	_, err := s.request(url.Values{
		"command": {"seek"},
		"val":     {strconv.FormatInt(int64(seconds), 10)},
	})
	return err
}

func (s *Sink) SetVolume(volume float64) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	level := int(volume*256 + 0.5)
	_, err := s.request(url.Values{
		"command": {"volume"},
		"val":     {strconv.Itoa(level)},
	})
	return err
}

func (s *Sink) SetRate(rate float64) error {
	_, err := s.request(url.Values{
		"command": {"rate"},
		"val":     {strconv.FormatFloat(rate, 'f', 2, 64)},
	})
	return err
}

// Events returns the sink event stream. The channel closes on Close.
func (s *Sink) Events() <-chan ports.SinkEvent { return s.events }

// Close stops the poller and VLC playback.
func (s *Sink) Close() error {
	s.cancel()
	<-s.done
	_, err := s.request(url.Values{"command": {"pl_stop"}})
	return err
}

type vlcStatus struct {
	State    string  `json:"state"`
	Time     float64 `json:"time"`
	Length   float64 `json:"length"`
	Position float64 `json:"position"`
}

func (s *Sink) poll(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *Sink) sample(ctx context.Context) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		return
	}

	payload, err := s.request(nil)
	if err != nil {
		s.log.Debug("status poll failed", zap.Error(err))
		return
	}
	var status vlcStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return
	}

	s.mu.Lock()
	var out []ports.SinkEvent
	if status.Length > 0 && !s.durKnown {
		s.durKnown = true
		out = append(out, ports.SinkEvent{Kind: ports.SinkDurationKnown, Seconds: status.Length})
	}
	switch status.State {
	case "playing", "paused":
		out = append(out, ports.SinkEvent{Kind: ports.SinkTimeUpdate, Seconds: status.Time})
		if s.durKnown && status.Length > 0 && status.Time >= status.Length-endSlack && !s.eosSeen {
			s.eosSeen = true
			out = append(out, ports.SinkEvent{Kind: ports.SinkEnded})
		}
	case "stopped":
		// Reaching stopped after the stream ran counts as end of
		// stream exactly once.
		if s.durKnown && !s.eosSeen {
			s.eosSeen = true
			out = append(out, ports.SinkEvent{Kind: ports.SinkEnded})
		}
	}
	s.mu.Unlock()

	for _, ev := range out {
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sink) request(values url.Values) ([]byte, error) {
	endpoint := s.baseURL + "/requests/status.json"
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if s.username != "" || s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("vlc error: %s", msg)
	}
	return body, nil
}
