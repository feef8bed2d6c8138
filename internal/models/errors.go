package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidURL indicates a malformed URL.
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrCredentialsRequired indicates missing provider credentials.
	ErrCredentialsRequired = errors.New("username and password are required")

	// ErrInvalidCategoryKind indicates an invalid category kind.
	ErrInvalidCategoryKind = errors.New("invalid category kind: must be 'live', 'vod' or 'series'")

	// ErrInvalidMediaType indicates an invalid media type.
	ErrInvalidMediaType = errors.New("invalid media type: must be 'movie' or 'tv'")

	// ErrInvalidCollectionSource indicates an invalid collection source type.
	ErrInvalidCollectionSource = errors.New("invalid collection source: must be 'trending', 'list', 'discover' or 'collection'")

	// ErrCollectionSourceIDRequired indicates a collection source that needs a source id.
	ErrCollectionSourceIDRequired = errors.New("source_id is required for list and collection sources")

	// ErrSlugRequired indicates a required slug field is empty.
	ErrSlugRequired = errors.New("slug is required")

	// ErrProviderIDRequired indicates a required provider ID field is zero.
	ErrProviderIDRequired = errors.New("provider_id is required")

	// ErrEpgSourceIDRequired indicates a required EPG source ID field is zero.
	ErrEpgSourceIDRequired = errors.New("epg_source_id is required")

	// ErrChannelIDRequired indicates a required channel ID field is empty.
	ErrChannelIDRequired = errors.New("channel_id is required")

	// ErrStartTimeRequired indicates a required start time field is empty.
	ErrStartTimeRequired = errors.New("start time is required")

	// ErrInvalidTimeRange indicates end time is before start time.
	ErrInvalidTimeRange = errors.New("end time must be after start time")

	// ErrTitleRequired indicates a required title field is empty.
	ErrTitleRequired = errors.New("title is required")
)
