package playermodule

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/sinks/vlc"
	"github.com/stesse/stesse/internal/soundcloud"
)

// vlcServer answers the status endpoint so sink commands and the poll
// loop succeed without a real player.
func vlcServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"state":"paused","time":0,"length":0}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestModule(t *testing.T, stateDir string) *Module {
	t.Helper()
	log := zap.NewNop()
	// Unconfigured credentials keep the catalog on the built-in
	// playlists, so no track search leaves the process.
	tokens := soundcloud.NewTokenCache(log, nil, soundcloud.DefaultTokenURL, "", "", testClock{})
	catalog := soundcloud.NewCatalog(log, nil, tokens, "")
	resolver := soundcloud.NewResolver(log, nil, tokens)

	module, err := NewModule(log, nil, catalog, resolver, Config{
		NodeID:   "test-node",
		StateDir: stateDir,
		Sink:     "vlc",
		VLC:      vlc.Config{BaseURL: vlcServer(t).URL, Timeout: time.Second},
	})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	return module
}

type testClock struct{}

func (testClock) Now() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestRunWritesSnapshotBeforeReturning(t *testing.T) {
	stateDir := t.TempDir()
	module := newTestModule(t, stateDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- module.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		if state := module.Controller().State(); state.Current != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no current track loaded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}

	// The teardown snapshot has to be durable by the time Run hands
	// control back to the supervisor.
	if _, err := os.Stat(filepath.Join(stateDir, "player_state.json")); err != nil {
		t.Fatalf("snapshot missing after Run returned: %v", err)
	}
}
