package models

// CategoryKind identifies which panel list a category belongs to.
type CategoryKind string

// Category kinds.
const (
	CategoryKindLive   CategoryKind = "live"
	CategoryKindVod    CategoryKind = "vod"
	CategoryKindSeries CategoryKind = "series"
)

// IsValid returns true if the category kind is recognized.
func (k CategoryKind) IsValid() bool {
	switch k {
	case CategoryKindLive, CategoryKindVod, CategoryKindSeries:
		return true
	}
	return false
}

// Category is an upstream panel category, scoped to a provider and kind.
// Categories that disappear upstream are deactivated, never deleted, so
// stream rows keep a resolvable parent.
type Category struct {
	BaseModel
	ProviderID ULID         `gorm:"type:varchar(26);not null;index;uniqueIndex:idx_categories_provider_kind_ext" json:"provider_id"`
	Provider   Provider     `gorm:"foreignKey:ProviderID" json:"-"`
	Kind       CategoryKind `gorm:"size:16;not null;uniqueIndex:idx_categories_provider_kind_ext" json:"kind"`
	ExtID      string       `gorm:"size:64;not null;uniqueIndex:idx_categories_provider_kind_ext" json:"ext_id"`
	Name       string       `gorm:"size:255;not null" json:"name"`
	Active     *bool        `gorm:"default:true" json:"active"`
}

// TableName returns the database table name.
func (Category) TableName() string {
	return "categories"
}

// IsActive returns whether the category is still present upstream.
func (c *Category) IsActive() bool {
	return BoolVal(c.Active)
}

// Validate checks category fields.
func (c *Category) Validate() error {
	if c.ProviderID.IsZero() {
		return ErrProviderIDRequired
	}
	if !c.Kind.IsValid() {
		return ErrInvalidCategoryKind
	}
	if c.Name == "" {
		return ErrNameRequired
	}
	return nil
}
