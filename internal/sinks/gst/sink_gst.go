//go:build gstreamer

// Package gst drives playback through a GStreamer pipeline built from a
// template, synthesizing sink events from a position poll.
package gst

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/ports"
)

const pollInterval = 500 * time.Millisecond

const endSlack = 0.25

var gstInitOnce sync.Once

// Config configures the GStreamer sink. Pipeline is a parse-launch
// template with {url}, {device} and {volume} placeholders.
type Config struct {
	Pipeline string
	Device   string
}

// Sink implements ports.AudioSink over a GStreamer pipeline.
type Sink struct {
	template string
	device   string
	log      *zap.Logger

	events chan ports.SinkEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	current  *gst.Element
	volume   float64
	durKnown bool
	eosSeen  bool
}

// New creates the sink and starts its position poller.
func New(log *zap.Logger, cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.Pipeline) == "" {
		return nil, errors.New("pipeline template required")
	}
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		template: cfg.Pipeline,
		device:   cfg.Device,
		log:      log,
		events:   make(chan ports.SinkEvent, 32),
		cancel:   cancel,
		done:     make(chan struct{}),
		volume:   1.0,
	}
	go s.poll(ctx)
	return s, nil
}

// Load builds a fresh pipeline for the URL, paused at the start.
func (s *Sink) Load(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		_ = s.current.SetState(gst.StateNull)
		s.current = nil
	}

	pipeline := s.template
	pipeline = strings.ReplaceAll(pipeline, "{url}", url)
	pipeline = strings.ReplaceAll(pipeline, "{device}", s.device)
	pipeline = strings.ReplaceAll(pipeline, "{volume}", fmt.Sprintf("%0.2f", s.volume))

	el, err := gst.ParseLaunch(pipeline)
	if err != nil {
		return err
	}
	// Paused preroll so duration becomes queryable before playback.
	if err := el.SetState(gst.StatePaused); err != nil {
		return err
	}
	s.current = el
	s.durKnown = false
	s.eosSeen = false
	return nil
}

func (s *Sink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return errors.New("nothing loaded")
	}
	return s.current.SetState(gst.StatePlaying)
}

func (s *Sink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return errors.New("nothing loaded")
	}
	return s.current.SetState(gst.StatePaused)
}

func (s *Sink) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return errors.New("nothing loaded")
	}
	ns := int64(seconds * float64(time.Second))
	return s.current.SeekSimple(gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit, ns)
}

func (s *Sink) SetVolume(volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
	if s.current != nil {
		return s.current.SetProperty("volume", volume)
	}
	return nil
}

func (s *Sink) SetRate(rate float64) error {
	// Rate changes need a segment seek; not wired for this pipeline.
	return errors.New("rate not supported")
}

func (s *Sink) Events() <-chan ports.SinkEvent { return s.events }

// Close stops the poller and tears down the pipeline.
func (s *Sink) Close() error {
	s.cancel()
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		_ = s.current.SetState(gst.StateNull)
		s.current = nil
	}
	return nil
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
	el := s.current
	if el == nil {
		s.mu.Unlock()
		return
	}
	okPos, posNS := el.QueryPosition(gst.FormatTime)
	okDur, durNS := el.QueryDuration(gst.FormatTime)
	var out []ports.SinkEvent
	pos := float64(posNS) / float64(time.Second)
	dur := float64(durNS) / float64(time.Second)
	if okDur && dur > 0 && !s.durKnown {
		s.durKnown = true
		out = append(out, ports.SinkEvent{Kind: ports.SinkDurationKnown, Seconds: dur})
	}
	if okPos {
		out = append(out, ports.SinkEvent{Kind: ports.SinkTimeUpdate, Seconds: pos})
		if s.durKnown && okDur && dur > 0 && pos >= dur-endSlack && !s.eosSeen {
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
