package models

// VodStream is an on-demand title offered by a provider.
type VodStream struct {
	BaseModel
	ProviderID ULID     `gorm:"type:varchar(26);not null;index;uniqueIndex:idx_vod_streams_provider_ext" json:"provider_id"`
	Provider   Provider `gorm:"foreignKey:ProviderID" json:"-"`
	ExtID      int64    `gorm:"not null;uniqueIndex:idx_vod_streams_provider_ext" json:"ext_id"`
	CategoryID *ULID    `gorm:"type:varchar(26);index" json:"category_id"`

	Name               string  `gorm:"size:512;not null" json:"name"`
	NormalizedName     string  `gorm:"size:512;index" json:"normalized_name"`
	IconURL            string  `gorm:"size:1024" json:"icon_url"`
	ContainerExtension string  `gorm:"size:16" json:"container_extension"`
	Rating             float64 `json:"rating"`
	Active             *bool   `gorm:"default:true" json:"active"`

	Metadata
}

// TableName returns the database table name.
func (VodStream) TableName() string {
	return "vod_streams"
}

// IsActive returns whether the title is still present upstream.
func (s *VodStream) IsActive() bool {
	return BoolVal(s.Active)
}

// PosterURL returns the preferred artwork for catalog views: hydrated
// metadata poster first, panel icon as fallback.
func (s *VodStream) PosterURL(imageBase string) string {
	if s.TmdbPosterPath != "" && imageBase != "" {
		return imageBase + s.TmdbPosterPath
	}
	return s.IconURL
}
