// Package playermodule runs the playback stack: sink, engine, playlist,
// stream resolution and session persistence, publishing state over MQTT.
package playermodule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/adapters/clock"
	"github.com/stesse/stesse/internal/adapters/store"
	"github.com/stesse/stesse/internal/player"
	"github.com/stesse/stesse/internal/ports"
	"github.com/stesse/stesse/internal/sinks/gst"
	"github.com/stesse/stesse/internal/sinks/vlc"
	"github.com/stesse/stesse/internal/soundcloud"
	"github.com/stesse/stesse/pkg/stesse"
)

// Config configures the player module.
type Config struct {
	NodeID       string
	TopicBase    string
	Sink         string
	DefaultGenre string
	PublishState bool
	ProxyBase    string
	StateDir     string
	VLC          vlc.Config
	GStreamer    gst.Config
}

// Module hosts the playback stack and exposes its controller.
type Module struct {
	log        *zap.Logger
	client     ports.Publisher
	config     Config
	sink       ports.AudioSink
	engine     *player.Engine
	session    *player.Session
	controller *player.Controller
}

// NewModule builds the playback stack.
func NewModule(log *zap.Logger, client ports.Publisher, catalog *soundcloud.Catalog, resolver *soundcloud.Resolver, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = stesse.BaseTopic
	}
	if strings.TrimSpace(cfg.StateDir) == "" {
		return nil, errors.New("state_dir required")
	}

	sink, err := newSink(log, cfg)
	if err != nil {
		return nil, err
	}

	kv, err := store.New(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open state dir: %w", err)
	}

	engine := player.NewEngine(log.Named("engine"), sink)
	playlist := player.NewPlaylist(nil)
	session := player.NewSession(log.Named("session"), kv)
	controller := player.NewController(log.Named("controller"), engine, playlist, session,
		catalog, resolverSource{resolver}, clock.Clock{}, cfg.ProxyBase)
	if cfg.DefaultGenre != "" {
		controller.SetDefaultGenre(cfg.DefaultGenre)
	}

	m := &Module{
		log:        log,
		client:     client,
		config:     cfg,
		sink:       sink,
		engine:     engine,
		session:    session,
		controller: controller,
	}
	if cfg.PublishState && client != nil {
		controller.SetOnState(m.publishState)
		controller.SetOnEvent(m.publishEvent)
	}
	return m, nil
}

// Controller exposes the player controller for the HTTP API.
func (m *Module) Controller() *player.Controller { return m.controller }

// Run starts the stack and blocks until ctx is cancelled. The final
// session snapshot is written on the way out.
func (m *Module) Run(ctx context.Context) error {
	defer m.sink.Close()

	go func() {
		if err := m.engine.Run(ctx); err != nil {
			m.log.Warn("engine loop exited", zap.Error(err))
		}
	}()

	if err := m.controller.Start(ctx); err != nil {
		m.log.Warn("initial playlist load failed", zap.Error(err))
	}

	// The session loop is the blocking body: its shutdown save has
	// completed by the time Run returns to the supervisor.
	return m.session.Run(ctx, m.controller.Snapshot)
}

func (m *Module) publishState(state stesse.PlayerState) {
	payload, err := json.Marshal(state)
	if err != nil {
		return
	}
	topic := stesse.TopicState(m.config.TopicBase, m.config.NodeID)
	if err := m.client.Publish(topic, 1, true, payload); err != nil {
		m.log.Debug("state publish failed", zap.Error(err))
	}
}

func (m *Module) publishEvent(ev stesse.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	topic := stesse.TopicEvents(m.config.TopicBase, m.config.NodeID)
	if err := m.client.Publish(topic, 1, false, payload); err != nil {
		m.log.Debug("event publish failed", zap.Error(err))
	}
}

func newSink(log *zap.Logger, cfg Config) (ports.AudioSink, error) {
	switch cfg.Sink {
	case "", "vlc":
		if cfg.VLC.Timeout == 0 {
			cfg.VLC.Timeout = 5 * time.Second
		}
		return vlc.New(log.Named("vlc"), cfg.VLC)
	case "gstreamer":
		return gst.New(log.Named("gst"), cfg.GStreamer)
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}

// resolverSource adapts the stream resolver to the controller's
// interface.
type resolverSource struct {
	resolver *soundcloud.Resolver
}

func (s resolverSource) Resolve(ctx context.Context, track stesse.Track) (player.ResolvedStream, error) {
	res, err := s.resolver.Resolve(ctx, track)
	if err != nil {
		return player.ResolvedStream{}, err
	}
	return player.ResolvedStream{URL: res.URL, Direct: res.Direct}, nil
}
