// Package records holds the platform-agnostic representation of
// scraped or API-fetched coursework. Whatever markup or payload a
// platform serves, everything downstream of the extractor speaks these
// types.
package records

import (
	"strings"
	"time"

	"github.com/eduassist/portalsync/internal/utils"
	"github.com/eduassist/portalsync/platform"
)

// Assignment is one piece of coursework, normalized across platforms.
// ExternalID is unique within SourcePlatform; the extractor drops
// duplicates within a single pass.
type Assignment struct {
	SourcePlatform platform.Platform `json:"source_platform"`
	ExternalID     string            `json:"external_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	DueAt          *time.Time        `json:"due_at,omitempty"`
	CourseRef      string            `json:"course_ref,omitempty"`
	RawURL         string            `json:"raw_url,omitempty"`
}

// Course is a normalized course or class.
type Course struct {
	SourcePlatform platform.Platform `json:"source_platform"`
	ExternalID     string            `json:"external_id"`
	Name           string            `json:"name"`
}

// App is an application tile on the Clever portal dashboard. Dependent
// platforms are launched through these tiles.
type App struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Valid reports whether an assignment carries the minimum fields to be
// worth returning. Records failing this are skipped, not fatal.
func (a Assignment) Valid() bool {
	return a.SourcePlatform != "" && a.ExternalID != "" && strings.TrimSpace(a.Title) != ""
}

// Valid reports whether a course record is usable.
func (c Course) Valid() bool {
	return c.SourcePlatform != "" && c.ExternalID != "" && strings.TrimSpace(c.Name) != ""
}

// dueFormats covers the date renderings observed across the portals.
// Portals version their markup on their own schedule, so this list is
// best-effort by nature.
var dueFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006 3:04 PM",
	"01/02/2006",
	"Mon, Jan 2",
}

// ParseDueDate parses a portal-rendered due date. It returns nil, not
// an error, when the text is empty or unrecognized: a missing due date
// must never sink the record it belongs to.
func ParseDueDate(s string) *time.Time {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "Due"))
	s = strings.TrimSpace(strings.TrimPrefix(s, ":"))
	if s == "" {
		return nil
	}
	for _, layout := range dueFormats {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// Formats without a year parse into year 0; pin them to the
		// current school year.
		if t.Year() == 0 {
			now := time.Now()
			t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.Local)
		}
		return utils.Ptr(t)
	}
	return nil
}
