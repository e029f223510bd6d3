package domain

// VideoType distinguishes catalog content types
type VideoType string

const (
	VideoTypeMovie   VideoType = "movie"
	VideoTypeShow    VideoType = "show"
	VideoTypeSeason  VideoType = "season"
	VideoTypeEpisode VideoType = "episode"
)

// Well-known list contexts on the home page
const (
	ListContextMyList      = "queue"
	ListContextContinue    = "continueWatching"
	ListContextTrending    = "trendingNow"
	ListContextNewRelease  = "newRelease"
	ListContextPopularList = "popularTitles"
)

// ListRef is one entry of the home page list of lists
type ListRef struct {
	ID          string `json:"id"`
	Context     string `json:"context"` // List type, e.g. "queue" for the user's list
	DisplayName string `json:"displayName"`
	Index       int    `json:"index"`
	Length      int    `json:"length"`
}

// RootLists is the list of video lists shown on the home page
type RootLists struct {
	ID    string    `json:"id"`
	Lists []ListRef `json:"lists"`
}

// ListsByContext returns all lists whose context matches one of contexts, in home page order
func (r RootLists) ListsByContext(contexts ...string) []ListRef {
	var out []ListRef
	for _, l := range r.Lists {
		for _, c := range contexts {
			if l.Context == c {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

// Video is a summary of a movie or show as it appears in a list
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Type        VideoType `json:"type"`
	Synopsis    string    `json:"synopsis,omitempty"`
	ReleaseYear int       `json:"releaseYear,omitempty"`
	Runtime     int       `json:"runtime,omitempty"` // Seconds
	Watched     bool      `json:"watched,omitempty"`
	BoxArt      string    `json:"boxart,omitempty"`
}

// VideoList is a single list of videos, e.g. the user's list or a genre row
type VideoList struct {
	ID     string  `json:"id"`
	Name   string  `json:"displayName,omitempty"`
	Videos []Video `json:"videos"`
}

// Season is a season summary of a show
type Season struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// SeasonList holds the seasons of a show along with the show summary
type SeasonList struct {
	ShowID  string   `json:"showId"`
	Show    Video    `json:"show"`
	Seasons []Season `json:"seasons"`
}

// Episode is an episode summary within a season
type Episode struct {
	ID       string `json:"id"`
	ShowID   string `json:"showId"`
	SeasonID string `json:"seasonId"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Synopsis string `json:"synopsis,omitempty"`
	Runtime  int    `json:"runtime,omitempty"`
	Watched  bool   `json:"watched,omitempty"`
	Bookmark int    `json:"bookmarkPosition,omitempty"`
}

// EpisodeList holds the episodes of one season
type EpisodeList struct {
	ShowID   string    `json:"showId"`
	SeasonID string    `json:"seasonId"`
	Show     Video     `json:"show"`
	Episodes []Episode `json:"episodes"`
}

// EpisodeMetadata is the detailed metadata of a single episode
type EpisodeMetadata struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Synopsis  string `json:"synopsis,omitempty"`
	Runtime   int    `json:"runtime,omitempty"`
	Bookmark  int    `json:"bookmark,omitempty"`
	Watched   bool   `json:"watched,omitempty"`
	Thumbnail string `json:"thumb,omitempty"`
}

// IsZero reports whether no metadata exists for the episode
func (m EpisodeMetadata) IsZero() bool {
	return m == EpisodeMetadata{}
}

// SeasonMetadata is the detailed metadata of a season including its episodes
type SeasonMetadata struct {
	ID       string            `json:"id"`
	Number   int               `json:"seq"`
	Episodes []EpisodeMetadata `json:"episodes"`
}

// Metadata is the detailed metadata of a video. For shows it includes all seasons and episodes.
type Metadata struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Type    VideoType        `json:"type"`
	Seasons []SeasonMetadata `json:"seasons,omitempty"`
}

// FindEpisode returns the metadata of episodeID within seasonID
func (m Metadata) FindEpisode(seasonID, episodeID string) (EpisodeMetadata, bool) {
	for _, s := range m.Seasons {
		if s.ID != seasonID {
			continue
		}
		for _, e := range s.Episodes {
			if e.ID == episodeID {
				return e, true
			}
		}
	}
	return EpisodeMetadata{}, false
}

// Profile is a user profile of the account
type Profile struct {
	ID       string `json:"guid"`
	Name     string `json:"profileName"`
	IsKids   bool   `json:"isKids"`
	IsActive bool   `json:"isActive"`
}

// LibraryEntry is a title exported to the local media library
type LibraryEntry struct {
	VideoID  string    `json:"videoId"`
	Type     VideoType `json:"type"`
	Title    string    `json:"title"`
	Path     string    `json:"path"`
	Episodes []string  `json:"episodes,omitempty"`
}

// Library is the persistent local media library index, keyed by video ID
type Library map[string]LibraryEntry
