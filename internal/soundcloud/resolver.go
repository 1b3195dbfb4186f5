package soundcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/pkg/stesse"
)

// Resolution reason codes.
const (
	ReasonNoPlayableFormat = "no_playable_format"
	ReasonNoSource         = "no_source"
	ReasonUpstream         = "upstream_error"
)

// ResolutionError reports why a track could not be turned into a
// playable stream URL.
type ResolutionError struct {
	Status    int
	Reason    string
	Available []string
	Body      string
}

func (e *ResolutionError) Error() string {
	if len(e.Available) > 0 {
		return fmt.Sprintf("resolve failed: %s (available: %s)", e.Reason, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("resolve failed: %s (status %d)", e.Reason, e.Status)
}

// Resolution is the outcome of resolving a track. Direct indicates the
// URL is an upstream locator that must be fetched through the stream
// proxy with OAuth credentials; otherwise the URL is already signed.
type Resolution struct {
	URL      string
	Direct   bool
	MimeType string
}

// Resolver turns track source references into playable stream URLs.
type Resolver struct {
	http   *http.Client
	tokens *TokenCache
	log    *zap.Logger
}

// NewResolver creates a stream resolver.
func NewResolver(log *zap.Logger, httpClient *http.Client, tokens *TokenCache) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Resolver{http: httpClient, tokens: tokens, log: log}
}

// Resolve produces a playable stream URL for a track. Tracks carrying a
// direct stream locator resolve without a network round trip; tracks
// published with transcodings need their progressive variant dereferenced
// against the upstream API. HLS-only tracks are rejected.
func (r *Resolver) Resolve(ctx context.Context, track stesse.Track) (Resolution, error) {
	if track.Source.StreamURL != "" {
		return Resolution{URL: track.Source.StreamURL, Direct: true, MimeType: "audio/mpeg"}, nil
	}

	if len(track.Source.Transcodings) == 0 {
		return Resolution{}, &ResolutionError{Status: http.StatusBadRequest, Reason: ReasonNoSource}
	}

	var progressive *stesse.Transcoding
	available := make([]string, 0, len(track.Source.Transcodings))
	for i, tc := range track.Source.Transcodings {
		available = append(available, tc.Protocol)
		if tc.Protocol == "progressive" && progressive == nil {
			progressive = &track.Source.Transcodings[i]
		}
	}
	if progressive == nil {
		r.log.Warn("no progressive transcoding",
			zap.String("track", track.ID),
			zap.Strings("available", available))
		return Resolution{}, &ResolutionError{
			Status:    http.StatusBadRequest,
			Reason:    ReasonNoPlayableFormat,
			Available: available,
		}
	}

	url, err := r.ResolveTranscoding(ctx, progressive.URL)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{URL: url, MimeType: progressive.MimeType}, nil
}

// ResolveTranscoding dereferences a transcoding locator into the signed
// CDN URL it points at.
func (r *Resolver) ResolveTranscoding(ctx context.Context, locator string) (string, error) {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve transcoding: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return "", fmt.Errorf("resolve transcoding: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+token)

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve transcoding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ResolutionError{
			Status: resp.StatusCode,
			Reason: ReasonUpstream,
			Body:   string(body),
		}
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("resolve transcoding: decode: %w", err)
	}
	if payload.URL == "" {
		return "", &ResolutionError{Status: http.StatusBadGateway, Reason: ReasonUpstream, Body: "empty stream url"}
	}
	return r.withClientID(payload.URL), nil
}

// withClientID appends the client id marker the CDN expects on signed
// URLs.
func (r *Resolver) withClientID(raw string) string {
	id := r.tokens.ClientID()
	if id == "" {
		return raw
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "client_id=" + id
}
