package soundcloud

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

// catalogServer serves both the token exchange and the /tracks search
// endpoint from one mux, the way the tests reach a single upstream.
func catalogServer(t *testing.T, tracksHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	})
	mux.HandleFunc("/tracks", tracksHandler)
	return httptest.NewServer(mux)
}

func newTestCatalog(srv *httptest.Server) *Catalog {
	tokens := NewTokenCache(zap.NewNop(), srv.Client(), srv.URL+"/oauth2/token", "id", "secret", newFakeClock())
	return NewCatalog(zap.NewNop(), srv.Client(), tokens, srv.URL)
}

func TestFetchByGenreUnconfiguredUsesSamples(t *testing.T) {
	tokens := NewTokenCache(zap.NewNop(), nil, DefaultTokenURL, "", "", newFakeClock())
	catalog := NewCatalog(zap.NewNop(), nil, tokens, "")

	tracks, err := catalog.FetchByGenre(context.Background(), "lofi")
	if err != nil {
		t.Fatalf("FetchByGenre: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("len(tracks) = %d, want 3", len(tracks))
	}
	for _, track := range tracks {
		if track.Source.StreamURL == "" {
			t.Errorf("sample track %s has empty stream URL", track.ID)
		}
	}
}

func TestFetchByGenreAllQueriesFailUsesSamples(t *testing.T) {
	srv := catalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	defer srv.Close()

	tracks, err := newTestCatalog(srv).FetchByGenre(context.Background(), "jazz")
	if err != nil {
		t.Fatalf("FetchByGenre: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("len(tracks) = %d, want 3 sample tracks", len(tracks))
	}
	if tracks[0].Genre != "Jazz" {
		t.Fatalf("genre = %q, want Jazz", tracks[0].Genre)
	}
}

func TestFetchByGenreRanksDedupesAndFilters(t *testing.T) {
	srv := catalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("q") {
		case "bass boosted study":
			// 2 appears in both result sets; 4 is not streamable.
			fmt.Fprint(w, `{"collection":[
				{"id":1,"title":"A","streamable":true,"stream_url":"https://cdn/1","playback_count":100,"duration":180000,"user":{"username":"u1"}},
				{"id":2,"title":"B","streamable":true,"stream_url":"https://cdn/2","playback_count":500,"duration":180000,"user":{"username":"u2"}},
				{"id":4,"title":"D","streamable":false,"stream_url":"https://cdn/4","playback_count":900,"duration":180000,"user":{"username":"u4"}}
			]}`)
		default:
			fmt.Fprint(w, `{"collection":[
				{"id":2,"title":"B-dup","streamable":true,"stream_url":"https://cdn/2b","playback_count":500,"duration":180000,"user":{"username":"u2"}},
				{"id":3,"title":"C","streamable":true,"stream_url":"https://cdn/3","playback_count":300,"duration":180000,"user":{"username":"u3"}}
			]}`)
		}
	})
	defer srv.Close()

	tracks, err := newTestCatalog(srv).FetchByGenre(context.Background(), "bass")
	if err != nil {
		t.Fatalf("FetchByGenre: %v", err)
	}

	gotIDs := make([]string, len(tracks))
	for i, track := range tracks {
		gotIDs[i] = track.ID
	}
	want := []string{"2", "3", "1"}
	if len(gotIDs) != len(want) {
		t.Fatalf("ids = %v, want %v", gotIDs, want)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("ids = %v, want %v", gotIDs, want)
		}
	}
	// First occurrence of the duplicate id wins.
	if tracks[0].Title != "B" {
		t.Fatalf("tracks[0].Title = %q, want B", tracks[0].Title)
	}
}

func TestFetchByGenrePartialFailure(t *testing.T) {
	srv := catalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "smooth jazz instrumental" {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"collection":[
			{"id":7,"title":"Only","streamable":true,"stream_url":"https://cdn/7","playback_count":42,"duration":180000,"user":{"username":"u7"}}
		]}`)
	})
	defer srv.Close()

	tracks, err := newTestCatalog(srv).FetchByGenre(context.Background(), "jazz")
	if err != nil {
		t.Fatalf("FetchByGenre: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "7" {
		t.Fatalf("tracks = %v, want the single surviving result", tracks)
	}
}

func TestTrackByID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	})
	mux.HandleFunc("/tracks/99", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "OAuth tok" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, `{"id":99,"title":"Solo","duration":240000,"playback_count":5,
			"user":{"username":"someone"},
			"media":{"transcodings":[{"url":"https://api/t/99","format":{"protocol":"progressive","mime_type":"audio/mpeg"}}]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	track, err := newTestCatalog(srv).TrackByID(context.Background(), "99")
	if err != nil {
		t.Fatalf("TrackByID: %v", err)
	}
	if track.ID != "99" || track.Title != "Solo" || track.Artist != "someone" {
		t.Fatalf("track = %+v", track)
	}
	if track.Duration != 240 {
		t.Fatalf("duration = %d, want 240s", track.Duration)
	}
	if len(track.Source.Transcodings) != 1 || track.Source.Transcodings[0].Protocol != "progressive" {
		t.Fatalf("transcodings = %+v", track.Source.Transcodings)
	}
}
