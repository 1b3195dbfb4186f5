//go:build !gstreamer

// Package gst drives playback through a GStreamer pipeline. Without the
// gstreamer build tag only this stub is compiled.
package gst

import (
	"errors"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/ports"
)

// Config configures the GStreamer sink.
type Config struct {
	Pipeline string
	Device   string
}

// Sink is a stub when the gstreamer tag is not enabled.
type Sink struct{}

// New returns an error when the gstreamer build tag is missing.
func New(log *zap.Logger, cfg Config) (*Sink, error) {
	return nil, errors.New("gstreamer build tag not enabled")
}

func (s *Sink) Load(url string) error { return errors.New("gstreamer build tag not enabled") }
func (s *Sink) Play() error           { return errors.New("gstreamer build tag not enabled") }
func (s *Sink) Pause() error          { return errors.New("gstreamer build tag not enabled") }
func (s *Sink) Seek(seconds float64) error {
	return errors.New("gstreamer build tag not enabled")
}
func (s *Sink) SetVolume(volume float64) error {
	return errors.New("gstreamer build tag not enabled")
}
func (s *Sink) SetRate(rate float64) error {
	return errors.New("gstreamer build tag not enabled")
}
func (s *Sink) Events() <-chan ports.SinkEvent { return nil }
func (s *Sink) Close() error                   { return nil }
