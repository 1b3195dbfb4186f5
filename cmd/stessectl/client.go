package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stesse/stesse/pkg/stesse"
)

// Client talks to the stessed HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client against the given base URL.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Health is the daemon health payload.
type Health struct {
	Status        string `json:"status"`
	Configured    bool   `json:"configured"`
	Authenticated bool   `json:"authenticated"`
	TokenExpiry   string `json:"tokenExpiry,omitempty"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.get(ctx, "/api/health", &out)
	return out, err
}

func (c *Client) Genres(ctx context.Context) ([]string, error) {
	var out struct {
		Genres []string `json:"genres"`
	}
	err := c.get(ctx, "/api/genres", &out)
	return out.Genres, err
}

func (c *Client) State(ctx context.Context) (stesse.PlayerState, error) {
	var out stesse.PlayerState
	err := c.get(ctx, "/api/player/state", &out)
	return out, err
}

func (c *Client) Playlist(ctx context.Context, query string) ([]stesse.Track, error) {
	path := "/api/player/playlist"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out struct {
		Tracks []stesse.Track `json:"tracks"`
	}
	err := c.get(ctx, path, &out)
	return out.Tracks, err
}

func (c *Client) SelectGenre(ctx context.Context, genre string) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/genre", map[string]string{"genre": genre})
}

func (c *Client) Play(ctx context.Context) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/play", nil)
}

func (c *Client) Pause(ctx context.Context) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/pause", nil)
}

func (c *Client) Toggle(ctx context.Context) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/toggle", nil)
}

func (c *Client) Next(ctx context.Context) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/next", nil)
}

func (c *Client) Previous(ctx context.Context) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/previous", nil)
}

func (c *Client) PlayTrack(ctx context.Context, id string) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/track", map[string]string{"id": id})
}

func (c *Client) Seek(ctx context.Context, seconds float64) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/seek", map[string]float64{"value": seconds})
}

func (c *Client) Volume(ctx context.Context, level float64) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/volume", map[string]float64{"value": level})
}

func (c *Client) Mute(ctx context.Context) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/mute", nil)
}

func (c *Client) Rate(ctx context.Context, rate float64) (stesse.PlayerState, error) {
	return c.postState(ctx, "/api/player/rate", map[string]float64{"value": rate})
}

func (c *Client) Shuffle(ctx context.Context) (bool, error) {
	var out struct {
		Shuffle bool `json:"shuffle"`
	}
	err := c.post(ctx, "/api/player/shuffle", nil, &out)
	return out.Shuffle, err
}

func (c *Client) Repeat(ctx context.Context) (stesse.RepeatMode, error) {
	var out struct {
		Repeat stesse.RepeatMode `json:"repeat"`
	}
	err := c.post(ctx, "/api/player/repeat", nil, &out)
	return out.Repeat, err
}

func (c *Client) postState(ctx context.Context, path string, body any) (stesse.PlayerState, error) {
	var out stesse.PlayerState
	err := c.post(ctx, path, body, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(payload, out)
}
