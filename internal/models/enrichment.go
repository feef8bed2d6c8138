package models

import "time"

// MediaType distinguishes film from episodic content in metadata lookups.
type MediaType string

// Media types.
const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// IsValid returns true if the media type is recognized.
func (m MediaType) IsValid() bool {
	return m == MediaTypeMovie || m == MediaTypeTV
}

// MetadataStatus is the enrichment state of a catalog item.
type MetadataStatus string

// Metadata statuses.
const (
	// MetadataMissing means the item has never been hydrated, or the last
	// lookup conclusively found nothing.
	MetadataMissing MetadataStatus = "missing"
	// MetadataSynced means the item carries hydrated metadata.
	MetadataSynced MetadataStatus = "synced"
	// MetadataFailed means the last attempt ended in a request error.
	MetadataFailed MetadataStatus = "failed"
)

// Metadata is the enrichment state block embedded in VOD and series rows.
//
// TmdbError holds a truncated human-readable failure description;
// TmdbErrorKind holds the machine classification used by the cooldown
// schedule. TmdbRaw keeps the full upstream detail document so fields can
// be backfilled without refetching.
type Metadata struct {
	TmdbID           *int64         `gorm:"index" json:"tmdb_id"`
	TmdbStatus       MetadataStatus `gorm:"size:16;default:missing;index" json:"tmdb_status"`
	TmdbLastSync     *time.Time     `gorm:"index" json:"tmdb_last_sync"`
	TmdbError        string         `gorm:"size:500" json:"tmdb_error"`
	TmdbErrorKind    string         `gorm:"size:32" json:"tmdb_error_kind"`
	TmdbFailCount    int            `gorm:"default:0" json:"tmdb_fail_count"`
	TmdbTitle        string         `gorm:"size:512" json:"tmdb_title"`
	TmdbOverview     string         `gorm:"size:4000" json:"tmdb_overview"`
	TmdbReleaseDate  *time.Time     `json:"tmdb_release_date"`
	TmdbGenres       StringList     `json:"tmdb_genres"`
	TmdbVoteAverage  float64        `json:"tmdb_vote_average"`
	TmdbPosterPath   string         `gorm:"size:255" json:"tmdb_poster_path"`
	TmdbBackdropPath string         `gorm:"size:255" json:"tmdb_backdrop_path"`
	TmdbRaw          JSONMap        `json:"-"`
}

// IsSynced reports whether the block carries hydrated metadata.
func (m *Metadata) IsSynced() bool {
	return m.TmdbStatus == MetadataSynced
}

// MarkSynced records a successful hydration at the given instant.
func (m *Metadata) MarkSynced(now time.Time) {
	m.TmdbStatus = MetadataSynced
	m.TmdbLastSync = &now
	m.TmdbError = ""
	m.TmdbErrorKind = ""
	m.TmdbFailCount = 0
}

// MarkMissing records a conclusive no-result lookup.
func (m *Metadata) MarkMissing(now time.Time, kind string) {
	m.TmdbStatus = MetadataMissing
	m.TmdbLastSync = &now
	m.TmdbError = ""
	m.TmdbErrorKind = kind
	m.TmdbFailCount = 0
}

// maxErrorLen bounds the stored failure description.
const maxErrorLen = 480

// MarkFailed records a request failure and bumps the consecutive counter.
func (m *Metadata) MarkFailed(now time.Time, kind, detail string) {
	if len(detail) > maxErrorLen {
		detail = detail[:maxErrorLen]
	}
	m.TmdbStatus = MetadataFailed
	m.TmdbLastSync = &now
	m.TmdbError = detail
	m.TmdbErrorKind = kind
	m.TmdbFailCount++
}

// DonateTo copies hydrated metadata fields onto dst when dst lacks them.
// Used during duplicate resolution so the surviving row keeps the best of
// both records.
func (m *Metadata) DonateTo(dst *Metadata) {
	if !m.IsSynced() {
		return
	}
	if dst.TmdbID == nil {
		dst.TmdbID = m.TmdbID
	}
	if dst.TmdbTitle == "" {
		dst.TmdbTitle = m.TmdbTitle
	}
	if dst.TmdbOverview == "" {
		dst.TmdbOverview = m.TmdbOverview
	}
	if dst.TmdbReleaseDate == nil {
		dst.TmdbReleaseDate = m.TmdbReleaseDate
	}
	if len(dst.TmdbGenres) == 0 {
		dst.TmdbGenres = m.TmdbGenres
	}
	if dst.TmdbVoteAverage == 0 {
		dst.TmdbVoteAverage = m.TmdbVoteAverage
	}
	if dst.TmdbPosterPath == "" {
		dst.TmdbPosterPath = m.TmdbPosterPath
	}
	if dst.TmdbBackdropPath == "" {
		dst.TmdbBackdropPath = m.TmdbBackdropPath
	}
	if dst.TmdbRaw == nil {
		dst.TmdbRaw = m.TmdbRaw
	}
	if !dst.IsSynced() {
		dst.TmdbStatus = MetadataSynced
		dst.TmdbLastSync = m.TmdbLastSync
		dst.TmdbError = ""
		dst.TmdbErrorKind = ""
		dst.TmdbFailCount = 0
	}
}
