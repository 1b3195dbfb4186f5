package soundcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/stesse/stesse/pkg/stesse"
)

func newTestResolver(srv *httptest.Server) *Resolver {
	tokens := NewTokenCache(zap.NewNop(), srv.Client(), srv.URL+"/oauth2/token", "id", "secret", newFakeClock())
	return NewResolver(zap.NewNop(), srv.Client(), tokens)
}

func TestResolveDirectStreamURL(t *testing.T) {
	r := NewResolver(zap.NewNop(), nil, NewTokenCache(zap.NewNop(), nil, DefaultTokenURL, "", "", newFakeClock()))

	res, err := r.Resolve(context.Background(), stesse.Track{
		ID:     "1",
		Source: stesse.SourceRef{StreamURL: "https://api.soundcloud.com/tracks/1/stream"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Direct {
		t.Fatal("Direct = false, want true for stream_url tracks")
	}
	if res.URL != "https://api.soundcloud.com/tracks/1/stream" {
		t.Fatalf("URL = %q", res.URL)
	}
}

func TestResolveProgressiveTranscoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	})
	mux.HandleFunc("/transcodings/5", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "OAuth tok" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, `{"url":"https://cdn.example.net/signed/5.mp3"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := newTestResolver(srv).Resolve(context.Background(), stesse.Track{
		ID: "5",
		Source: stesse.SourceRef{Transcodings: []stesse.Transcoding{
			{URL: srv.URL + "/transcodings/5-hls", Protocol: "hls", MimeType: "application/x-mpegURL"},
			{URL: srv.URL + "/transcodings/5", Protocol: "progressive", MimeType: "audio/mpeg"},
		}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Direct {
		t.Fatal("Direct = true, want false for transcoding tracks")
	}
	if res.URL != "https://cdn.example.net/signed/5.mp3?client_id=id" {
		t.Fatalf("URL = %q", res.URL)
	}
	if res.MimeType != "audio/mpeg" {
		t.Fatalf("MimeType = %q", res.MimeType)
	}
}

func TestResolveRejectsHLSOnly(t *testing.T) {
	r := NewResolver(zap.NewNop(), nil, NewTokenCache(zap.NewNop(), nil, DefaultTokenURL, "id", "secret", newFakeClock()))

	_, err := r.Resolve(context.Background(), stesse.Track{
		ID: "9",
		Source: stesse.SourceRef{Transcodings: []stesse.Transcoding{
			{URL: "https://api/t/9-hls", Protocol: "hls", MimeType: "application/x-mpegURL"},
			{URL: "https://api/t/9-enc", Protocol: "encrypted-hls", MimeType: "application/x-mpegURL"},
		}},
	})
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("err = %v, want *ResolutionError", err)
	}
	if resErr.Reason != ReasonNoPlayableFormat {
		t.Fatalf("reason = %q, want %q", resErr.Reason, ReasonNoPlayableFormat)
	}
	if len(resErr.Available) != 2 || resErr.Available[0] != "hls" {
		t.Fatalf("available = %v", resErr.Available)
	}
}

func TestResolveNoSource(t *testing.T) {
	r := NewResolver(zap.NewNop(), nil, NewTokenCache(zap.NewNop(), nil, DefaultTokenURL, "id", "secret", newFakeClock()))

	_, err := r.Resolve(context.Background(), stesse.Track{ID: "empty"})
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("err = %v, want *ResolutionError", err)
	}
	if resErr.Reason != ReasonNoSource {
		t.Fatalf("reason = %q, want %q", resErr.Reason, ReasonNoSource)
	}
}

func TestResolveTranscodingUpstreamFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	})
	mux.HandleFunc("/transcodings/7", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestResolver(srv).ResolveTranscoding(context.Background(), srv.URL+"/transcodings/7")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("err = %v, want *ResolutionError", err)
	}
	if resErr.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resErr.Status)
	}
}
