package models

// TmdbConfig is the single-row metadata service configuration. Exactly one
// row exists; repositories upsert it by fixed lookup.
type TmdbConfig struct {
	BaseModel
	APIKey      string `gorm:"size:255" json:"-"`
	BearerToken string `gorm:"size:512" json:"-"`
	Language    string `gorm:"size:16;default:en-US" json:"language"`
	Region      string `gorm:"size:8" json:"region"`
	Enabled     *bool  `gorm:"default:false" json:"enabled"`
}

// TableName returns the database table name.
func (TmdbConfig) TableName() string {
	return "tmdb_configs"
}

// IsEnabled reports whether enrichment may run. A config without any
// credential is never enabled regardless of the flag.
func (c *TmdbConfig) IsEnabled() bool {
	if c.APIKey == "" && c.BearerToken == "" {
		return false
	}
	return BoolValDefault(c.Enabled, false)
}
