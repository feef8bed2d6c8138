package models

import "time"

// SeriesItem is an episodic title offered by a provider.
type SeriesItem struct {
	BaseModel
	ProviderID ULID     `gorm:"type:varchar(26);not null;index;uniqueIndex:idx_series_items_provider_ext" json:"provider_id"`
	Provider   Provider `gorm:"foreignKey:ProviderID" json:"-"`
	ExtID      int64    `gorm:"not null;uniqueIndex:idx_series_items_provider_ext" json:"ext_id"`
	CategoryID *ULID    `gorm:"type:varchar(26);index" json:"category_id"`

	Name           string  `gorm:"size:512;not null" json:"name"`
	NormalizedName string  `gorm:"size:512;index" json:"normalized_name"`
	CoverURL       string  `gorm:"size:1024" json:"cover_url"`
	Rating         float64 `json:"rating"`
	Active         *bool   `gorm:"default:true" json:"active"`

	Metadata
}

// TableName returns the database table name.
func (SeriesItem) TableName() string {
	return "series_items"
}

// IsActive returns whether the series is still present upstream.
func (s *SeriesItem) IsActive() bool {
	return BoolVal(s.Active)
}

// Season groups episodes of a series by upstream season number.
type Season struct {
	BaseModel
	SeriesID     ULID       `gorm:"type:varchar(26);not null;index;uniqueIndex:idx_seasons_series_number" json:"series_id"`
	Series       SeriesItem `gorm:"foreignKey:SeriesID" json:"-"`
	Number       int        `gorm:"not null;uniqueIndex:idx_seasons_series_number" json:"number"`
	Name         string     `gorm:"size:255" json:"name"`
	AirDate      *time.Time `json:"air_date"`
	EpisodeCount int        `json:"episode_count"`
	CoverURL     string     `gorm:"size:1024" json:"cover_url"`
}

// TableName returns the database table name.
func (Season) TableName() string {
	return "seasons"
}

// Episode is a playable episode within a season. ExtID is the panel's
// episode stream identifier used to mint playback URLs.
type Episode struct {
	BaseModel
	SeasonID ULID   `gorm:"type:varchar(26);not null;index;uniqueIndex:idx_episodes_season_ext" json:"season_id"`
	Season   Season `gorm:"foreignKey:SeasonID" json:"-"`
	ExtID    int64  `gorm:"not null;uniqueIndex:idx_episodes_season_ext" json:"ext_id"`

	Number             int     `json:"number"`
	Title              string  `gorm:"size:512" json:"title"`
	ContainerExtension string  `gorm:"size:16" json:"container_extension"`
	DurationSeconds    int     `json:"duration_seconds"`
	Plot               string  `gorm:"size:4000" json:"plot"`
	Rating             float64 `json:"rating"`
}

// TableName returns the database table name.
func (Episode) TableName() string {
	return "episodes"
}
