package models

import (
	"regexp"
	"strings"
	"time"
)

// CollectionSource identifies how a collection's payload is produced.
type CollectionSource string

// Collection source types.
const (
	// CollectionSourceTrending serves the trending feed for the media type.
	CollectionSourceTrending CollectionSource = "trending"
	// CollectionSourceList serves a curated upstream list by id.
	CollectionSourceList CollectionSource = "list"
	// CollectionSourceDiscover serves a filtered discover query.
	CollectionSourceDiscover CollectionSource = "discover"
	// CollectionSourceCollection serves a franchise collection by id.
	CollectionSourceCollection CollectionSource = "collection"
)

// IsValid returns true if the source type is recognized.
func (s CollectionSource) IsValid() bool {
	switch s {
	case CollectionSourceTrending, CollectionSourceList, CollectionSourceDiscover, CollectionSourceCollection:
		return true
	}
	return false
}

// RequiresSourceID reports whether the source type needs an upstream id.
func (s CollectionSource) RequiresSourceID() bool {
	return s == CollectionSourceList || s == CollectionSourceCollection
}

// DefaultCacheTTLSeconds is the cache lifetime applied when a collection
// does not set its own.
const DefaultCacheTTLSeconds = 3600

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Collection is a curated home-screen row backed by an upstream metadata
// query, served through the page cache.
type Collection struct {
	BaseModel
	Slug            string           `gorm:"size:128;not null;uniqueIndex" json:"slug"`
	Title           string           `gorm:"size:255;not null" json:"title"`
	MediaType       MediaType        `gorm:"size:8;not null" json:"media_type"`
	SourceType      CollectionSource `gorm:"size:16;not null" json:"source_type"`
	SourceID        string           `gorm:"size:64" json:"source_id"`
	Filters         JSONMap          `json:"filters"`
	CacheTTLSeconds int              `gorm:"default:3600" json:"cache_ttl_seconds"`
	Enabled         *bool            `gorm:"default:true" json:"enabled"`
	OrderIndex      int              `gorm:"default:0" json:"order_index"`
}

// TableName returns the database table name.
func (Collection) TableName() string {
	return "collections"
}

// IsEnabled returns whether the collection is served and refreshed.
func (c *Collection) IsEnabled() bool {
	return BoolVal(c.Enabled)
}

// TTL returns the effective cache lifetime.
func (c *Collection) TTL() time.Duration {
	ttl := c.CacheTTLSeconds
	if ttl <= 0 {
		ttl = DefaultCacheTTLSeconds
	}
	return time.Duration(ttl) * time.Second
}

// Sanitize cleans collection fields before persistence.
func (c *Collection) Sanitize() {
	c.Slug = strings.ToLower(strings.TrimSpace(c.Slug))
	c.Title = strings.TrimSpace(c.Title)
	c.SourceID = strings.TrimSpace(c.SourceID)
}

// Validate checks collection fields.
func (c *Collection) Validate() error {
	if c.Slug == "" {
		return ErrSlugRequired
	}
	if !slugPattern.MatchString(c.Slug) {
		return ErrValidation{Field: "slug", Message: "must be lowercase alphanumerics and hyphens"}
	}
	if c.Title == "" {
		return ErrTitleRequired
	}
	if !c.MediaType.IsValid() {
		return ErrInvalidMediaType
	}
	if !c.SourceType.IsValid() {
		return ErrInvalidCollectionSource
	}
	if c.SourceType.RequiresSourceID() && c.SourceID == "" {
		return ErrCollectionSourceIDRequired
	}
	return nil
}

// CollectionCache is one cached result page for a collection. ExpiresAt is
// nil when the last refresh failed; such rows serve as placeholders and are
// always considered expired.
type CollectionCache struct {
	BaseModel
	CollectionID ULID       `gorm:"type:varchar(26);not null;index;uniqueIndex:idx_collection_caches_collection_page" json:"collection_id"`
	Collection   Collection `gorm:"foreignKey:CollectionID" json:"-"`
	Page         int        `gorm:"not null;default:1;uniqueIndex:idx_collection_caches_collection_page" json:"page"`
	Payload      JSONMap    `json:"payload"`
	ExpiresAt    *time.Time `gorm:"index" json:"expires_at"`
}

// TableName returns the database table name.
func (CollectionCache) TableName() string {
	return "collection_caches"
}

// Fresh reports whether the cached page may be served without refresh.
func (c *CollectionCache) Fresh(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.After(now)
}
