package player

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/pkg/stesse"
)

func TestSessionRoundTrip(t *testing.T) {
	store := newMemStore()
	session := NewSession(zap.NewNop(), store)

	session.Save(stesse.Snapshot{CurrentTrackID: "t1", CurrentTime: 12.5, Volume: 0.9, Repeat: stesse.RepeatAll, Genre: "jazz"})
	snap, ok := session.Load()
	if !ok {
		t.Fatal("Load found nothing")
	}
	if snap.CurrentTrackID != "t1" || snap.CurrentTime != 12.5 || snap.Repeat != stesse.RepeatAll || snap.Genre != "jazz" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestSessionLoadMissing(t *testing.T) {
	session := NewSession(zap.NewNop(), newMemStore())
	if _, ok := session.Load(); ok {
		t.Fatal("Load reported a snapshot from an empty store")
	}
}

func TestSessionLoadCorrupt(t *testing.T) {
	store := newMemStore()
	store.Set(snapshotKey, []byte("{not json"))
	session := NewSession(zap.NewNop(), store)
	if _, ok := session.Load(); ok {
		t.Fatal("Load accepted a corrupt snapshot")
	}
}

func TestSessionSavesOnShutdown(t *testing.T) {
	store := newMemStore()
	session := NewSession(zap.NewNop(), store)
	session.interval = time.Hour // only the teardown save should fire

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx, func() (stesse.Snapshot, bool) {
			return stesse.Snapshot{CurrentTrackID: "t9", CurrentTime: 3}, true
		})
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	snap, ok := session.Load()
	if !ok || snap.CurrentTrackID != "t9" {
		t.Fatalf("snapshot = %+v, ok = %v", snap, ok)
	}
}
