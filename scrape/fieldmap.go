package scrape

import "github.com/eduassist/portalsync/platform"

// FieldMap describes where a platform's rendered markup keeps the
// pieces of a record. Container selectors are candidate strategies
// tried in order; the first one with matches wins the pass.
type FieldMap struct {
	ContainerSelectors  []string
	TitleSelector       string
	DescriptionSelector string
	DueSelector         string
	CourseSelector      string
	LinkSelector        string

	// TableFallback scans <tr> rows with at least two cells when no
	// container strategy matched. Some McGraw Hill views render
	// assignments as plain tables.
	TableFallback bool
}

// assignmentMaps holds the per-portal assignment field maps. These
// chase portal markup and are expected to need maintenance.
var assignmentMaps = map[platform.Platform]FieldMap{
	platform.McGrawHill: {
		ContainerSelectors: []string{
			".assignment",
			".task",
			".homework",
			`[class*="assignment"]`,
			`[class*="homework"]`,
			".activity-item",
			".work-item",
		},
		TitleSelector:       `.title, h3, h4, [class*="title"], [class*="name"]`,
		DueSelector:         `.due-date, .date, [class*="due"]`,
		CourseSelector:      `.course, [class*="course"]`,
		LinkSelector:        "a",
		DescriptionSelector: `.description, [class*="description"]`,
		TableFallback:       true,
	},
	platform.Edpuzzle: {
		ContainerSelectors: []string{
			".assignment-item",
			".video-assignment",
			`[class*="assignment"]`,
			".media-assignment",
			".task-item",
		},
		TitleSelector:  `.video-title, .title, h3, h4, [class*="title"]`,
		DueSelector:    `.due-date, .date, [class*="due"]`,
		CourseSelector: `.teacher-name, .instructor, [class*="teacher"]`,
		LinkSelector:   "a",
	},
}

// courseMaps holds the per-portal course/material field maps.
var courseMaps = map[platform.Platform]FieldMap{
	platform.McGrawHill: {
		ContainerSelectors: []string{
			".chapter",
			".lesson",
			".material",
			".resource",
			`[class*="chapter"]`,
			`[class*="lesson"]`,
		},
		TitleSelector: `.title, h3, h4, [class*="title"]`,
		LinkSelector:  "a",
	},
	platform.Edpuzzle: {
		ContainerSelectors: []string{
			".class-item",
			".course-card",
			`[class*="class"]`,
		},
		TitleSelector: `.class-name, .title, h3, h4, [class*="name"]`,
		LinkSelector:  "a",
	},
}
