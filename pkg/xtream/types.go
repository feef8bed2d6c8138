package xtream

import (
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// AuthInfo contains the combined server and user information returned by
// the bare player_api.php call.
type AuthInfo struct {
	UserInfo   UserInfo   `json:"user_info"`
	ServerInfo ServerInfo `json:"server_info"`
}

// UserInfo contains user account information.
type UserInfo struct {
	Username          string  `json:"username"`
	Message           string  `json:"message"`
	Auth              FlexInt `json:"auth"`
	Status            string  `json:"status"`
	ExpDate           FlexInt `json:"exp_date"`
	IsTrial           FlexInt `json:"is_trial"`
	ActiveConnections FlexInt `json:"active_cons"`
	MaxConnections    FlexInt `json:"max_connections"`
}

// IsAuthenticated returns true if the account is valid and active.
func (u *UserInfo) IsAuthenticated() bool {
	return u.Auth.Int() == 1 && u.Status == "Active"
}

// ExpirationTime returns the account expiration time, zero if unlimited.
func (u *UserInfo) ExpirationTime() time.Time {
	if u.ExpDate.Int() == 0 {
		return time.Time{}
	}
	return time.Unix(u.ExpDate.Int(), 0)
}

// ServerInfo contains server configuration information.
type ServerInfo struct {
	URL            string  `json:"url"`
	Port           FlexInt `json:"port"`
	HTTPSPort      FlexInt `json:"https_port"`
	ServerProtocol string  `json:"server_protocol"`
	Timezone       string  `json:"timezone"`
	TimestampNow   FlexInt `json:"timestamp_now"`
}

// Category represents a content category.
type Category struct {
	CategoryID   FlexString `json:"category_id"`
	CategoryName string     `json:"category_name"`
	ParentID     FlexInt    `json:"parent_id"`
}

// Stream represents a live stream listing entry.
type Stream struct {
	Num          FlexInt    `json:"num"`
	Name         string     `json:"name"`
	StreamType   string     `json:"stream_type"`
	StreamID     FlexInt    `json:"stream_id"`
	StreamIcon   string     `json:"stream_icon"`
	EPGChannelID string     `json:"epg_channel_id"`
	Added        FlexInt    `json:"added"`
	IsAdult      FlexInt    `json:"is_adult"`
	CategoryID   FlexString `json:"category_id"`
}

// VODStream represents a video on demand listing entry.
type VODStream struct {
	Num                FlexInt    `json:"num"`
	Name               string     `json:"name"`
	StreamType         string     `json:"stream_type"`
	StreamID           FlexInt    `json:"stream_id"`
	StreamIcon         string     `json:"stream_icon"`
	Rating             FlexFloat  `json:"rating"`
	Added              FlexInt    `json:"added"`
	IsAdult            FlexInt    `json:"is_adult"`
	CategoryID         FlexString `json:"category_id"`
	ContainerExtension string     `json:"container_extension"`
	TMDBId             FlexInt    `json:"tmdb"`
}

// VODInfo contains detailed information about a VOD item.
type VODInfo struct {
	Info      VODInfoDetails `json:"info"`
	MovieData VODStream      `json:"movie_data"`
}

// VODInfoDetails contains the detailed metadata for a VOD item.
type VODInfoDetails struct {
	MovieImage     string    `json:"movie_image"`
	TMDBId         FlexInt   `json:"tmdb_id"`
	Backdrop       string    `json:"backdrop_path"`
	YoutubeTrailer string    `json:"youtube_trailer"`
	Genre          string    `json:"genre"`
	Plot           string    `json:"plot"`
	Cast           string    `json:"cast"`
	Rating         FlexFloat `json:"rating"`
	Director       string    `json:"director"`
	ReleaseDate    string    `json:"releasedate"`
	Duration       string    `json:"duration"`
	DurationSecs   FlexInt   `json:"duration_secs"`
}

// Series represents a TV series listing entry.
type Series struct {
	Num          FlexInt    `json:"num"`
	Name         string     `json:"name"`
	SeriesID     FlexInt    `json:"series_id"`
	Cover        string     `json:"cover"`
	Plot         string     `json:"plot"`
	Genre        string     `json:"genre"`
	ReleaseDate  string     `json:"releaseDate"`
	LastModified FlexInt    `json:"last_modified"`
	Rating       FlexFloat  `json:"rating"`
	TMDBId       FlexInt    `json:"tmdb"`
	CategoryID   FlexString `json:"category_id"`
}

// SeriesInfo contains detailed information about a series including its
// episodes keyed by season number.
type SeriesInfo struct {
	Seasons  []SeasonInfo         `json:"seasons"`
	Info     SeriesInfoDetails    `json:"info"`
	Episodes map[string][]Episode `json:"episodes"`
}

// SeasonInfo contains information about a season.
type SeasonInfo struct {
	AirDate      string `json:"air_date"`
	EpisodeCount int    `json:"episode_count"`
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	SeasonNumber int    `json:"season_number"`
	Cover        string `json:"cover"`
}

// SeriesInfoDetails contains the series metadata.
type SeriesInfoDetails struct {
	Name        string    `json:"name"`
	Cover       string    `json:"cover"`
	Plot        string    `json:"plot"`
	Genre       string    `json:"genre"`
	ReleaseDate string    `json:"releaseDate"`
	Rating      FlexFloat `json:"rating"`
	TMDBId      FlexInt   `json:"tmdb_id"`
}

// Episode represents a single episode in a series.
type Episode struct {
	ID                 FlexInt     `json:"id"`
	EpisodeNum         FlexInt     `json:"episode_num"`
	Title              string      `json:"title"`
	ContainerExtension string      `json:"container_extension"`
	Info               EpisodeInfo `json:"info"`
	Season             FlexInt     `json:"season"`
}

// EpisodeInfo contains episode metadata.
type EpisodeInfo struct {
	MovieImage   string    `json:"movie_image"`
	Plot         string    `json:"plot"`
	ReleaseDate  string    `json:"releasedate"`
	Rating       FlexFloat `json:"rating"`
	DurationSecs FlexInt   `json:"duration_secs"`
}

// FlexInt handles JSON numbers that may be strings or integers.
type FlexInt int64

// Int returns the integer value.
func (f FlexInt) Int() int64 {
	return int64(f)
}

// UnmarshalJSON handles both string and number JSON values.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexInt(n)
		return nil
	}
	*f = 0
	return nil
}

// FlexFloat handles JSON numbers that may be strings or floats.
type FlexFloat float64

// Float returns the float value.
func (f FlexFloat) Float() float64 {
	return float64(f)
}

// UnmarshalJSON handles both string and number JSON values.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat(n)
		return nil
	}
	*f = 0
	return nil
}

// FlexString handles JSON values that may be strings or numbers.
type FlexString string

// String returns the string value.
func (f FlexString) String() string {
	return string(f)
}

// UnmarshalJSON handles both string and number JSON values.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	*f = ""
	return nil
}
