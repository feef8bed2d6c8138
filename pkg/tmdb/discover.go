package tmdb

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/reybeld94/mediarr/pkg/fetch"
)

// MinVoteCountForAverageSort is the floor required on vote_count.gte when
// sorting by vote_average.desc; without it single-vote titles dominate.
const MinVoteCountForAverageSort = 50

// releaseDaysBackKey is a synthetic filter expanded into a date range at
// query build time.
const releaseDaysBackKey = "release_days_back"

var allowedSortBy = map[string]map[string]bool{
	"movie": {
		"popularity.desc":           true,
		"popularity.asc":            true,
		"vote_average.desc":         true,
		"vote_average.asc":          true,
		"primary_release_date.desc": true,
		"primary_release_date.asc":  true,
		"revenue.desc":              true,
	},
	"tv": {
		"popularity.desc":     true,
		"popularity.asc":      true,
		"vote_average.desc":   true,
		"vote_average.asc":    true,
		"first_air_date.desc": true,
		"first_air_date.asc":  true,
	},
}

var allowedFilters = map[string]map[string]bool{
	"movie": {
		"with_genres":              true,
		"without_genres":           true,
		"with_original_language":   true,
		"with_origin_country":      true,
		"vote_count.gte":           true,
		"vote_average.gte":         true,
		"vote_average.lte":         true,
		"primary_release_date.gte": true,
		"primary_release_date.lte": true,
		"with_runtime.gte":         true,
		"with_runtime.lte":         true,
		"watch_region":             true,
		"with_watch_providers":     true,
		releaseDaysBackKey:         true,
	},
	"tv": {
		"with_genres":            true,
		"without_genres":         true,
		"with_original_language": true,
		"with_origin_country":    true,
		"vote_count.gte":         true,
		"vote_average.gte":       true,
		"vote_average.lte":       true,
		"first_air_date.gte":     true,
		"first_air_date.lte":     true,
		"with_networks":          true,
		"watch_region":           true,
		"with_watch_providers":   true,
		releaseDaysBackKey:       true,
	},
}

// dateFilterKeys returns the release date range keys for a media type.
func dateFilterKeys(mediaType string) (gte, lte string) {
	if mediaType == "tv" {
		return "first_air_date.gte", "first_air_date.lte"
	}
	return "primary_release_date.gte", "primary_release_date.lte"
}

// BuildDiscoverQuery validates a discover filter set against the per-type
// whitelists and renders it as query parameters. Violations are reported
// as invalid outcomes so callers surface them without retrying.
func BuildDiscoverQuery(mediaType string, filters map[string]any, now time.Time) (url.Values, error) {
	allowed, ok := allowedFilters[mediaType]
	if !ok {
		return nil, fetch.Errorf(fetch.KindInvalid, 0, "unknown discover media type %q", mediaType)
	}

	q := url.Values{}
	q.Set("include_adult", "false")

	sortBy := "popularity.desc"
	var daysBack int

	// Deterministic iteration keeps error messages stable.
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filterString(filters[key])
		if key == "sort_by" {
			if !allowedSortBy[mediaType][value] {
				return nil, fetch.Errorf(fetch.KindInvalid, 0, "sort_by %q not allowed for %s", value, mediaType)
			}
			sortBy = value
			continue
		}
		if !allowed[key] {
			return nil, fetch.Errorf(fetch.KindInvalid, 0, "filter %q not allowed for %s", key, mediaType)
		}
		if key == releaseDaysBackKey {
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, fetch.Errorf(fetch.KindInvalid, 0, "%s must be a positive integer", releaseDaysBackKey)
			}
			daysBack = n
			continue
		}
		q.Set(key, value)
	}

	gteKey, lteKey := dateFilterKeys(mediaType)
	if daysBack > 0 {
		if q.Get(gteKey) != "" || q.Get(lteKey) != "" {
			return nil, fetch.Errorf(fetch.KindInvalid, 0, "%s conflicts with explicit date filters", releaseDaysBackKey)
		}
		q.Set(gteKey, now.AddDate(0, 0, -daysBack).Format("2006-01-02"))
		q.Set(lteKey, now.Format("2006-01-02"))
	}

	if sortBy == "vote_average.desc" {
		n, err := strconv.Atoi(q.Get("vote_count.gte"))
		if err != nil || n < MinVoteCountForAverageSort {
			return nil, fetch.Errorf(fetch.KindInvalid, 0,
				"sorting by vote_average.desc requires vote_count.gte of at least %d", MinVoteCountForAverageSort)
		}
	}

	q.Set("sort_by", sortBy)
	return q, nil
}

// filterString renders a JSON filter value as a query parameter. Numbers
// arrive as float64 from decoded JSON; integral values render without the
// decimal point.
func filterString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
