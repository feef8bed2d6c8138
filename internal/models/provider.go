package models

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"strings"
)

// Provider represents an upstream Xtream-compatible panel account.
type Provider struct {
	BaseModel
	Name     string `gorm:"size:255;not null;uniqueIndex" json:"name"`
	URL      string `gorm:"size:1024;not null" json:"url"`
	Username string `gorm:"size:255;not null" json:"username"`
	Password string `gorm:"size:255;not null" json:"-"`
	Active   *bool  `gorm:"default:true" json:"active"`
}

// TableName returns the database table name.
func (Provider) TableName() string {
	return "providers"
}

// IsActive returns whether the provider participates in sync runs.
func (p *Provider) IsActive() bool {
	return BoolVal(p.Active)
}

// Sanitize cleans provider fields before persistence.
func (p *Provider) Sanitize() {
	p.Name = strings.TrimSpace(p.Name)
	p.URL = strings.TrimRight(strings.TrimSpace(p.URL), "/")
	p.Username = strings.TrimSpace(p.Username)
	p.Password = strings.TrimSpace(p.Password)
}

// Validate checks provider fields.
func (p *Provider) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.URL == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidURL
	}
	if p.Username == "" || p.Password == "" {
		return ErrCredentialsRequired
	}
	return nil
}

// AdminAlias is the reserved alias for the playback account whose
// credentials are used when minting stream URLs for catalog views.
const AdminAlias = "ADMIN"

// codeAlphabet excludes nothing; codes are uppercase alphanumerics.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the length of a provider user access code.
const CodeLength = 6

// ProviderUser is a named credential set on a provider, addressable by a
// short unique access code.
type ProviderUser struct {
	BaseModel
	ProviderID ULID     `gorm:"type:varchar(26);not null;index" json:"provider_id"`
	Provider   Provider `gorm:"foreignKey:ProviderID" json:"-"`
	Alias      string   `gorm:"size:64" json:"alias"`
	Username   string   `gorm:"size:255;not null" json:"username"`
	Password   string   `gorm:"size:255;not null" json:"-"`
	Code       string   `gorm:"size:6;not null;uniqueIndex" json:"code"`
}

// TableName returns the database table name.
func (ProviderUser) TableName() string {
	return "provider_users"
}

// IsAdmin reports whether this user is the provider's playback account.
func (u *ProviderUser) IsAdmin() bool {
	return strings.EqualFold(u.Alias, AdminAlias)
}

// NewAccessCode generates a random 6-character uppercase alphanumeric code.
// Uniqueness is enforced at insert; callers retry on collision.
func NewAccessCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating access code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// ProviderAutoSyncConfig holds the per-provider catalog sync schedule.
type ProviderAutoSyncConfig struct {
	BaseModel
	ProviderID      ULID     `gorm:"type:varchar(26);not null;uniqueIndex" json:"provider_id"`
	Provider        Provider `gorm:"foreignKey:ProviderID" json:"-"`
	Enabled         *bool    `gorm:"default:true" json:"enabled"`
	IntervalMinutes int      `gorm:"default:1440" json:"interval_minutes"`
	LastRunAt       *Time    `json:"last_run_at"`
	LastStatus      string   `gorm:"size:32" json:"last_status"`
	LastDetail      string   `gorm:"size:1024" json:"last_detail"`
}

// TableName returns the database table name.
func (ProviderAutoSyncConfig) TableName() string {
	return "provider_auto_sync_configs"
}

// Due reports whether the provider's next sync is due at the given instant.
func (c *ProviderAutoSyncConfig) Due(now Time) bool {
	if !BoolVal(c.Enabled) {
		return false
	}
	if c.LastRunAt == nil {
		return true
	}
	interval := c.IntervalMinutes
	if interval <= 0 {
		interval = 1440
	}
	return !now.Before(c.LastRunAt.Add(Minutes(interval)))
}
