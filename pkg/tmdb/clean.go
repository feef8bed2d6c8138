package tmdb

import (
	"regexp"
	"strconv"
	"strings"
)

// Lookup query hygiene: provider catalog names carry file extensions,
// bracketed years and stray separators that wreck search precision.
var (
	extensionRe = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|mov|m4v|wmv|flv|webm|ts|m2ts)$`)
	// A trailing year 1900-2099, optionally wrapped in (), [] or {}.
	trailingYearRe = regexp.MustCompile(`[\(\[\{]?\s*((?:19|20)\d{2})\s*[\)\]\}]?\s*$`)
	emptyBracketRe = regexp.MustCompile(`[\(\[\{]\s*[\)\]\}]`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// CleanTitle normalizes a catalog item name into a search query and an
// optional release year. Repeated trailing years ("Movie (2025) (2025)")
// are all stripped; the rightmost one wins. The transform is idempotent.
func CleanTitle(name string) (title string, year int) {
	title = strings.TrimSpace(name)
	title = extensionRe.ReplaceAllString(title, "")

	for {
		m := trailingYearRe.FindStringSubmatchIndex(title)
		if m == nil {
			break
		}
		// Guard against eating a title that is itself just a year.
		if strings.TrimSpace(title[:m[0]]) == "" {
			break
		}
		if year == 0 {
			if y, err := strconv.Atoi(title[m[2]:m[3]]); err == nil {
				year = y
			}
		}
		title = title[:m[0]]
	}

	title = emptyBracketRe.ReplaceAllString(title, " ")
	title = whitespaceRe.ReplaceAllString(title, " ")
	return strings.TrimSpace(title), year
}
