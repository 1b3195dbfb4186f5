package player

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/ports"
	"github.com/stesse/stesse/pkg/stesse"
)

// snapshotKey names the persisted player state in the store.
const snapshotKey = "player_state"

// saveInterval is how often the session snapshot is written while a
// track is current.
const saveInterval = 5 * time.Second

// Session persists the listening session across restarts. Store failures
// are logged and swallowed; loss of durability never blocks playback.
type Session struct {
	store    ports.Store
	log      *zap.Logger
	interval time.Duration
}

// NewSession creates a session persister over the store.
func NewSession(log *zap.Logger, store ports.Store) *Session {
	return &Session{store: store, log: log, interval: saveInterval}
}

// Load reads the persisted snapshot, if one exists.
func (s *Session) Load() (stesse.Snapshot, bool) {
	raw, ok, err := s.store.Get(snapshotKey)
	if err != nil {
		s.log.Warn("session load failed", zap.Error(err))
		return stesse.Snapshot{}, false
	}
	if !ok {
		return stesse.Snapshot{}, false
	}
	var snap stesse.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.Warn("session snapshot corrupt", zap.Error(err))
		return stesse.Snapshot{}, false
	}
	return snap, true
}

// Save writes a snapshot.
func (s *Session) Save(snap stesse.Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("session encode failed", zap.Error(err))
		return
	}
	if err := s.store.Set(snapshotKey, raw); err != nil {
		s.log.Warn("session save failed", zap.Error(err))
	}
}

// Run snapshots periodically while a track is current, plus once on
// shutdown. snapshot returns false when there is nothing to persist.
func (s *Session) Run(ctx context.Context, snapshot func() (stesse.Snapshot, bool)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if snap, ok := snapshot(); ok {
				s.Save(snap)
			}
			return nil
		case <-ticker.C:
			if snap, ok := snapshot(); ok {
				s.Save(snap)
			}
		}
	}
}
