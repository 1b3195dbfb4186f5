package soundcloud

import "github.com/stesse/stesse/pkg/stesse"

// samplePlaylists keeps the player usable without catalog credentials.
// The stream URLs are placeholders; a sink will fail to fetch them, but
// the queue, selection and persistence paths all behave normally.
var samplePlaylists = map[string][]stesse.Track{
	"lofi": {
		sample("lofi-1", "Chill Lo-Fi Beats", "ChillHop Music", "Lo-Fi Collection", 180, "Lo-Fi Hip Hop", 125000, "https://example.com/lofi1.mp3"),
		sample("lofi-2", "Study Session", "Lofi Girl", "Study Vibes", 210, "Lo-Fi Hip Hop", 98000, "https://example.com/lofi2.mp3"),
		sample("lofi-3", "Rainy Day Focus", "Dreamscape", "Rainy Moods", 195, "Lo-Fi Hip Hop", 87000, "https://example.com/lofi3.mp3"),
	},
	"classical": {
		sample("classical-1", "Moonlight Sonata", "Classical Piano", "Piano Classics", 240, "Classical", 156000, "https://example.com/classical1.mp3"),
		sample("classical-2", "Peaceful Piano", "Relaxing Piano", "Study Classical", 220, "Classical", 134000, "https://example.com/classical2.mp3"),
		sample("classical-3", "Morning Meditation", "Zen Orchestra", "Calm Morning", 200, "Classical", 112000, "https://example.com/classical3.mp3"),
	},
	"ambient": {
		sample("ambient-1", "Deep Space", "Ambient Waves", "Space Journey", 300, "Ambient", 89000, "https://example.com/ambient1.mp3"),
		sample("ambient-2", "Ocean Drift", "Atmospheric Sounds", "Water Elements", 280, "Ambient", 76000, "https://example.com/ambient2.mp3"),
		sample("ambient-3", "Forest Atmosphere", "Nature Sounds", "Earth Tones", 260, "Ambient", 71000, "https://example.com/ambient3.mp3"),
	},
	"jazz": {
		sample("jazz-1", "Smooth Jazz Evening", "Jazz Collective", "Evening Moods", 250, "Jazz", 102000, "https://example.com/jazz1.mp3"),
		sample("jazz-2", "Coffee Shop Vibes", "Cafe Jazz", "Coffeehouse", 230, "Jazz", 95000, "https://example.com/jazz2.mp3"),
		sample("jazz-3", "Bossa Nova Sunset", "Latin Jazz", "Bossa Collection", 215, "Jazz", 88000, "https://example.com/jazz3.mp3"),
	},
	"bass": {
		sample("bass-1", "Deep Bass Focus", "BassBoost", "Heavy Bass", 190, "Bass Boosted", 145000, "https://example.com/bass1.mp3"),
		sample("bass-2", "Sub Frequencies", "Low End Theory", "Bass Collection", 205, "Bass Boosted", 128000, "https://example.com/bass2.mp3"),
		sample("bass-3", "Bass Drop Study", "Heavy Hitters", "Study Bass", 185, "Bass Boosted", 115000, "https://example.com/bass3.mp3"),
	},
	"chill-trap": {
		sample("trap-1", "Melodic Trap", "TrapBeats", "Chill Trap Mix", 175, "Chill Trap", 167000, "https://example.com/trap1.mp3"),
		sample("trap-2", "Soft 808s", "Chill Producer", "Trap Study", 165, "Chill Trap", 142000, "https://example.com/trap2.mp3"),
		sample("trap-3", "Ambient Trap", "Trap Vibes", "Atmospheric Trap", 180, "Chill Trap", 135000, "https://example.com/trap3.mp3"),
	},
}

// SamplePlaylist returns a copy of the built-in playlist for a genre.
// Unknown genres fall back to lofi so selection never comes up empty.
func SamplePlaylist(genreID string) []stesse.Track {
	tracks, ok := samplePlaylists[genreID]
	if !ok {
		tracks = samplePlaylists["lofi"]
	}
	out := make([]stesse.Track, len(tracks))
	copy(out, tracks)
	return out
}

func sample(id, title, artist, album string, duration int64, genre string, plays int64, streamURL string) stesse.Track {
	return stesse.Track{
		ID:            id,
		Title:         title,
		Artist:        artist,
		Album:         album,
		Duration:      duration,
		Genre:         genre,
		PlaybackCount: plays,
		Permalink:     "https://soundcloud.com/sample/" + id,
		Source:        stesse.SourceRef{StreamURL: streamURL},
	}
}
