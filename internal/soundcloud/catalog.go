package soundcloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/pkg/stesse"
)

// maxPlaylistSize bounds the candidate list returned per genre.
const maxPlaylistSize = 50

// perQueryLimit is how many results each keyword query asks for.
const perQueryLimit = 20

// genreQueries maps a genre id to its canonical keyword queries.
var genreQueries = map[string][]string{
	"lofi": {
		"lofi hip hop beats",
		"chillhop study",
		"lofi beats to study",
	},
	"classical": {
		"classical piano study",
		"peaceful piano",
		"classical focus music",
	},
	"ambient": {
		"ambient study music",
		"ambient electronic focus",
		"atmospheric concentration",
	},
	"jazz": {
		"smooth jazz instrumental",
		"jazz for studying",
		"bossa nova chill",
	},
	"bass": {
		"bass boosted study",
		"deep bass concentration",
	},
	"chill-trap": {
		"chill trap beats",
		"melodic trap study",
	},
}

// Genres lists the known genre ids in a stable order.
func Genres() []string {
	ids := make([]string, 0, len(genreQueries))
	for id := range genreQueries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Catalog searches the external catalog by genre, falling back to the
// built-in sample playlists when the catalog is unreachable or
// unconfigured.
type Catalog struct {
	http    *http.Client
	tokens  *TokenCache
	apiBase string
	log     *zap.Logger
}

// NewCatalog creates a catalog search against apiBase.
func NewCatalog(log *zap.Logger, httpClient *http.Client, tokens *TokenCache, apiBase string) *Catalog {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Catalog{http: httpClient, tokens: tokens, apiBase: apiBase, log: log}
}

// FetchByGenre returns up to 50 streamable tracks for a genre, ranked by
// popularity. Partial query failures are tolerated; a complete failure or
// missing credentials switches to the sample playlist for that genre.
func (c *Catalog) FetchByGenre(ctx context.Context, genreID string) ([]stesse.Track, error) {
	if !c.tokens.Configured() {
		c.log.Warn("catalog credentials not configured, using sample playlist", zap.String("genre", genreID))
		return SamplePlaylist(genreID), nil
	}

	queries, ok := genreQueries[genreID]
	if !ok {
		queries = genreQueries["lofi"]
	}

	results := make([][]stesse.Track, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracks, err := c.search(ctx, query)
			if err != nil {
				c.log.Warn("catalog query failed", zap.String("query", query), zap.Error(err))
				return
			}
			results[i] = tracks
		}()
	}
	wg.Wait()

	merged := make([]stesse.Track, 0, len(queries)*perQueryLimit)
	for _, tracks := range results {
		merged = append(merged, tracks...)
	}
	if len(merged) == 0 {
		c.log.Warn("catalog unreachable, using sample playlist", zap.String("genre", genreID))
		return SamplePlaylist(genreID), nil
	}

	return rank(merged), nil
}

// TrackByID fetches a single track record.
func (c *Catalog) TrackByID(ctx context.Context, id string) (stesse.Track, error) {
	var record trackRecord
	endpoint := fmt.Sprintf("%s/tracks/%s", c.apiBase, url.PathEscape(id))
	if err := doJSON(ctx, c.http, c.tokens, endpoint, nil, &record); err != nil {
		return stesse.Track{}, err
	}
	return record.toTrack(), nil
}

func (c *Catalog) search(ctx context.Context, query string) ([]stesse.Track, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(perQueryLimit))
	params.Set("linked_partitioning", "1")

	var payload struct {
		Collection []trackRecord `json:"collection"`
	}
	if err := doJSON(ctx, c.http, c.tokens, c.apiBase+"/tracks", params, &payload); err != nil {
		return nil, err
	}

	tracks := make([]stesse.Track, 0, len(payload.Collection))
	for _, record := range payload.Collection {
		track := record.toTrack()
		if !record.Streamable || !track.Streamable() {
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// rank dedupes by id (first occurrence wins), sorts by descending
// popularity with first-seen order breaking ties, and truncates.
func rank(tracks []stesse.Track) []stesse.Track {
	seen := make(map[string]bool, len(tracks))
	unique := make([]stesse.Track, 0, len(tracks))
	for _, track := range tracks {
		if seen[track.ID] {
			continue
		}
		seen[track.ID] = true
		unique = append(unique, track)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].PlaybackCount > unique[j].PlaybackCount
	})

	if len(unique) > maxPlaylistSize {
		unique = unique[:maxPlaylistSize]
	}
	return unique
}

// trackRecord is the upstream catalog track shape.
type trackRecord struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Genre         string `json:"genre"`
	DurationMS    int64  `json:"duration"`
	ArtworkURL    string `json:"artwork_url"`
	Streamable    bool   `json:"streamable"`
	StreamURL     string `json:"stream_url"`
	PlaybackCount int64  `json:"playback_count"`
	PermalinkURL  string `json:"permalink_url"`
	User          struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user"`
	Media struct {
		Transcodings []struct {
			URL    string `json:"url"`
			Format struct {
				Protocol string `json:"protocol"`
				MimeType string `json:"mime_type"`
			} `json:"format"`
		} `json:"transcodings"`
	} `json:"media"`
}

func (r trackRecord) toTrack() stesse.Track {
	artist := r.User.Username
	if artist == "" {
		artist = "Unknown Artist"
	}
	album := r.Genre
	if album == "" {
		album = "SoundCloud"
	}
	cover := r.ArtworkURL
	if cover == "" {
		cover = r.User.AvatarURL
	}

	track := stesse.Track{
		ID:            strconv.FormatInt(r.ID, 10),
		Title:         r.Title,
		Artist:        artist,
		Album:         album,
		Duration:      r.DurationMS / 1000,
		CoverURL:      cover,
		Genre:         r.Genre,
		PlaybackCount: r.PlaybackCount,
		Permalink:     r.PermalinkURL,
		Source:        stesse.SourceRef{StreamURL: r.StreamURL},
	}
	for _, tc := range r.Media.Transcodings {
		track.Source.Transcodings = append(track.Source.Transcodings, stesse.Transcoding{
			URL:      tc.URL,
			Protocol: tc.Format.Protocol,
			MimeType: tc.Format.MimeType,
		})
	}
	return track
}
