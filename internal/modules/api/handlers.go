package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/player"
	"github.com/stesse/stesse/internal/soundcloud"
)

// streamHeaders are forwarded verbatim from the upstream response when
// proxying audio bytes.
var streamHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Accept-Ranges",
	"Cache-Control",
}

func (m *Module) handleHealth(w http.ResponseWriter, r *http.Request) {
	authenticated, expiry := m.tokens.Authenticated()
	payload := map[string]any{
		"status":        "ok",
		"configured":    m.tokens.Configured(),
		"authenticated": authenticated,
	}
	if authenticated {
		payload["tokenExpiry"] = expiry.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, payload)
}

func (m *Module) handleGenres(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"genres": soundcloud.Genres()})
}

// handleProxy forwards catalog API requests with the bearer credential
// attached, so the browser never sees the token.
func (m *Module) handleProxy(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/soundcloud/")
	target := m.config.APIBase + "/" + rest
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	token, err := m.tokens.Token(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("authentication failed: %v", err))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Header.Set("Authorization", "OAuth "+token)

	resp, err := m.http.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("upstream request failed: %v", err))
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		m.log.Debug("proxy copy interrupted", zap.Error(err))
	}
}

// handleResolve turns either a transcoding locator (url param) or a
// track id (trackId param) into a URL the browser can stream from.
func (m *Module) handleResolve(w http.ResponseWriter, r *http.Request) {
	if locator := r.URL.Query().Get("url"); locator != "" {
		resolved, err := m.resolver.ResolveTranscoding(r.Context(), locator)
		if err != nil {
			m.writeResolutionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": resolved})
		return
	}

	if trackID := r.URL.Query().Get("trackId"); trackID != "" {
		track, err := m.catalog.TrackByID(r.Context(), trackID)
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("track lookup failed: %v", err))
			return
		}
		resolution, err := m.resolver.Resolve(r.Context(), track)
		if err != nil {
			m.writeResolutionError(w, err)
			return
		}
		// Always hand the browser a local proxy URL so playback does
		// not depend on CDN CORS headers.
		writeJSON(w, http.StatusOK, map[string]string{
			"url": "/api/stream?url=" + url.QueryEscape(resolution.URL),
		})
		return
	}

	writeError(w, http.StatusBadRequest, "No valid stream URL found")
}

func (m *Module) writeResolutionError(w http.ResponseWriter, err error) {
	var resErr *soundcloud.ResolutionError
	if errors.As(err, &resErr) {
		if resErr.Reason == soundcloud.ReasonNoPlayableFormat {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("no progressive stream available (formats: %s)", strings.Join(resErr.Available, ", ")))
			return
		}
		status := http.StatusBadGateway
		if resErr.Reason == soundcloud.ReasonNoSource {
			status = http.StatusBadRequest
		}
		writeError(w, status, resErr.Error())
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

// handleStream proxies audio bytes, forwarding Range so the browser can
// seek within the track.
func (m *Module) handleStream(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if m.tokens.Configured() {
		token, err := m.tokens.Token(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("authentication failed: %v", err))
			return
		}
		req.Header.Set("Authorization", "OAuth "+token)
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("stream request failed: %v", err))
		return
	}
	defer resp.Body.Close()

	for _, name := range streamHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		m.log.Debug("stream copy interrupted", zap.Error(err))
	}
}

func (m *Module) handleState(w http.ResponseWriter, _ *http.Request) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.State())
}

func (m *Module) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		c.Search(q)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": c.Filtered()})
}

func (m *Module) handleGenre(w http.ResponseWriter, r *http.Request) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	var body struct {
		Genre string `json:"genre"`
	}
	if err := decodeBody(r, &body); err != nil || body.Genre == "" {
		writeError(w, http.StatusBadRequest, "missing genre")
		return
	}
	if err := c.SelectGenre(r.Context(), body.Genre); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c.State())
}

func (m *Module) handleNext(w http.ResponseWriter, r *http.Request) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	c.PlayNext(r.Context())
	writeJSON(w, http.StatusOK, c.State())
}

func (m *Module) handlePrevious(w http.ResponseWriter, r *http.Request) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	c.PlayPrevious(r.Context())
	writeJSON(w, http.StatusOK, c.State())
}

func (m *Module) handleTrack(w http.ResponseWriter, r *http.Request) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	var body struct {
		ID    string `json:"id"`
		Index *int   `json:"index"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var err error
	switch {
	case body.ID != "":
		err = c.PlayID(r.Context(), body.ID)
	case body.Index != nil:
		err = c.PlayIndex(r.Context(), *body.Index)
	default:
		writeError(w, http.StatusBadRequest, "missing id or index")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c.State())
}

func (m *Module) handleSeek(w http.ResponseWriter, r *http.Request) {
	m.controlValue(w, r, func(c *player.Controller, v float64) error { return c.Seek(v) })
}

func (m *Module) handleVolume(w http.ResponseWriter, r *http.Request) {
	m.controlValue(w, r, func(c *player.Controller, v float64) error { return c.SetVolume(v) })
}

func (m *Module) handleRate(w http.ResponseWriter, r *http.Request) {
	m.controlValue(w, r, func(c *player.Controller, v float64) error { return c.SetRate(v) })
}

func (m *Module) handleShuffle(w http.ResponseWriter, _ *http.Request) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shuffle": c.ToggleShuffle()})
}

func (m *Module) handleRepeat(w http.ResponseWriter, _ *http.Request) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repeat": c.ToggleRepeat()})
}

func (m *Module) handleSearch(w http.ResponseWriter, r *http.Request) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	var body struct {
		Query string `json:"query"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Query == "" {
		c.ClearSearch()
	} else {
		c.Search(body.Query)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": c.Filtered()})
}

// control wraps a no-argument controller action as a handler.
func (m *Module) control(fn func(*player.Controller) error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c, ok := m.requireController(w)
		if !ok {
			return
		}
		if err := fn(c); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, c.State())
	}
}

func (m *Module) controlValue(w http.ResponseWriter, r *http.Request, fn func(*player.Controller, float64) error) {
	c, ok := m.requireController(w)
	if !ok {
		return
	}
	var body struct {
		Value float64 `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := fn(c, body.Value); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c.State())
}

func (m *Module) requireController(w http.ResponseWriter) (*player.Controller, bool) {
	if m.controller == nil {
		writeError(w, http.StatusServiceUnavailable, "player module not enabled")
		return nil, false
	}
	return m.controller, true
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
