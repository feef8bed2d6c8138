package models

import "time"

// LiveStream is a live channel offered by a provider.
//
// (ProviderID, ExtID) is the upstream identity; rows missing from a fresh
// panel listing are deactivated rather than deleted. EPG binding is the
// pair (EpgSourceID, EpgChannelID): both set or both empty.
type LiveStream struct {
	BaseModel
	ProviderID ULID     `gorm:"type:varchar(26);not null;index;uniqueIndex:idx_live_streams_provider_ext" json:"provider_id"`
	Provider   Provider `gorm:"foreignKey:ProviderID" json:"-"`
	ExtID      int64    `gorm:"not null;uniqueIndex:idx_live_streams_provider_ext" json:"ext_id"`
	CategoryID *ULID    `gorm:"type:varchar(26);index" json:"category_id"`

	Name           string `gorm:"size:512;not null" json:"name"`
	NormalizedName string `gorm:"size:512;index" json:"normalized_name"`
	LogoURL        string `gorm:"size:1024" json:"logo_url"`
	CustomLogoURL  string `gorm:"size:1024" json:"custom_logo_url"`
	ChannelNumber  *int   `json:"channel_number"`
	Approved       *bool  `gorm:"default:true" json:"approved"`
	Active         *bool  `gorm:"default:true" json:"active"`

	// EPG binding to an ingested guide channel. EpgTimeOffset shifts the
	// bound channel's programmes by whole minutes, positive forward.
	EpgSourceID   *ULID  `gorm:"type:varchar(26);index" json:"epg_source_id"`
	EpgChannelID  string `gorm:"size:255" json:"epg_channel_id"`
	EpgTimeOffset *int   `json:"epg_time_offset"`

	// Failover alternates, weak references to other live stream rows.
	// They may point across providers, may dangle, and are resolved one
	// hop at a time.
	Alt1StreamID *ULID `gorm:"type:varchar(26)" json:"alt1_stream_id"`
	Alt2StreamID *ULID `gorm:"type:varchar(26)" json:"alt2_stream_id"`
	Alt3StreamID *ULID `gorm:"type:varchar(26)" json:"alt3_stream_id"`
}

// TableName returns the database table name.
func (LiveStream) TableName() string {
	return "live_streams"
}

// IsActive returns whether the stream is still present upstream.
func (s *LiveStream) IsActive() bool {
	return BoolVal(s.Active)
}

// IsApproved returns whether the stream is visible to catalog consumers.
func (s *LiveStream) IsApproved() bool {
	return BoolVal(s.Approved)
}

// HasEpgBinding reports whether the stream is mapped to a guide channel.
func (s *LiveStream) HasEpgBinding() bool {
	return s.EpgSourceID != nil && !s.EpgSourceID.IsZero() && s.EpgChannelID != ""
}

// BindEpg sets the guide binding pair.
func (s *LiveStream) BindEpg(sourceID ULID, channelID string) {
	s.EpgSourceID = &sourceID
	s.EpgChannelID = channelID
}

// ClearEpg removes the guide binding pair.
func (s *LiveStream) ClearEpg() {
	s.EpgSourceID = nil
	s.EpgChannelID = ""
}

// ProgramOffset returns the per-channel guide shift.
func (s *LiveStream) ProgramOffset() time.Duration {
	if s.EpgTimeOffset == nil {
		return 0
	}
	return time.Duration(*s.EpgTimeOffset) * time.Minute
}

// AltStreamIDs returns the configured failover alternates in slot order,
// skipping empty slots.
func (s *LiveStream) AltStreamIDs() []ULID {
	ids := make([]ULID, 0, 3)
	for _, id := range []*ULID{s.Alt1StreamID, s.Alt2StreamID, s.Alt3StreamID} {
		if id != nil && !id.IsZero() {
			ids = append(ids, *id)
		}
	}
	return ids
}
