package models

import (
	"net/url"
	"strings"
	"time"
)

// EpgSource is an XMLTV guide feed.
type EpgSource struct {
	BaseModel
	Name       string `gorm:"size:255;not null" json:"name"`
	URL        string `gorm:"size:1024;not null" json:"url"`
	Active     *bool  `gorm:"default:true" json:"active"`
	LastSyncAt *Time  `json:"last_sync_at"`
	LastError  string `gorm:"size:1024" json:"last_error"`
}

// TableName returns the database table name.
func (EpgSource) TableName() string {
	return "epg_sources"
}

// IsActive returns whether the source participates in guide refresh runs.
func (s *EpgSource) IsActive() bool {
	return BoolVal(s.Active)
}

// MarkSuccess records a completed ingest.
func (s *EpgSource) MarkSuccess(now time.Time) {
	s.LastSyncAt = &now
	s.LastError = ""
}

// MarkFailed records an ingest failure without touching LastSyncAt.
func (s *EpgSource) MarkFailed(err error) {
	if err != nil {
		s.LastError = err.Error()
	}
}

// Sanitize cleans source fields before persistence.
func (s *EpgSource) Sanitize() {
	s.Name = strings.TrimSpace(s.Name)
	s.URL = strings.TrimSpace(s.URL)
}

// Validate checks source fields.
func (s *EpgSource) Validate() error {
	if s.Name == "" {
		return ErrNameRequired
	}
	if s.URL == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// EpgChannel is a channel declared by (or implied in) a guide document.
// (EpgSourceID, XmltvID) is the document identity.
type EpgChannel struct {
	BaseModel
	EpgSourceID ULID      `gorm:"type:varchar(26);not null;index;uniqueIndex:idx_epg_channels_source_xmltv" json:"epg_source_id"`
	EpgSource   EpgSource `gorm:"foreignKey:EpgSourceID" json:"-"`
	XmltvID     string    `gorm:"size:255;not null;uniqueIndex:idx_epg_channels_source_xmltv" json:"xmltv_id"`
	DisplayName string    `gorm:"size:512" json:"display_name"`
	IconURL     string    `gorm:"size:1024" json:"icon_url"`
}

// TableName returns the database table name.
func (EpgChannel) TableName() string {
	return "epg_channels"
}

// EpgProgram is a single programme airing. EpgSourceID is denormalized so
// purge-and-reload can clear a source's programmes in one statement.
type EpgProgram struct {
	BaseModel
	ChannelID   ULID       `gorm:"type:varchar(26);not null;index;uniqueIndex:idx_epg_programs_channel_start" json:"channel_id"`
	Channel     EpgChannel `gorm:"foreignKey:ChannelID" json:"-"`
	EpgSourceID ULID       `gorm:"type:varchar(26);not null;index" json:"epg_source_id"`

	StartAt     time.Time `gorm:"not null;index;uniqueIndex:idx_epg_programs_channel_start" json:"start_at"`
	StopAt      time.Time `gorm:"not null;index" json:"stop_at"`
	Title       string    `gorm:"size:512;not null" json:"title"`
	Description string    `gorm:"size:4000" json:"description"`
	Category    string    `gorm:"size:255" json:"category"`
}

// TableName returns the database table name.
func (EpgProgram) TableName() string {
	return "epg_programs"
}

// Validate checks programme fields.
func (p *EpgProgram) Validate() error {
	if p.ChannelID.IsZero() {
		return ErrChannelIDRequired
	}
	if p.StartAt.IsZero() {
		return ErrStartTimeRequired
	}
	if !p.StopAt.After(p.StartAt) {
		return ErrInvalidTimeRange
	}
	if p.Title == "" {
		return ErrTitleRequired
	}
	return nil
}
