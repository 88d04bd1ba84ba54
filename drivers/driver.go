// Package drivers implements the per-platform login sequences. Each
// driver satisfies sessions.Driver; the Clever driver additionally
// derives subsessions for the platforms reached through its portal.
//
// Portal markup is versioned only by the portals themselves, so the
// selector strategies here are candidate lists tried in order rather
// than single selectors.
package drivers

import (
	"strings"

	"github.com/eduassist/portalsync/platform"
)

// landingMarkers identify a successful SSO hand-off: after launching an
// application tile, the page URL or content must carry one of these.
var landingMarkers = map[platform.Platform][]string{
	platform.McGrawHill: {"mheducation.com", "connected.mcgraw-hill.com", "mcgraw"},
	platform.Edpuzzle:   {"edpuzzle.com", "edpuzzle"},
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// firstMatching returns the first selector the page has an element for.
func firstMatching(exists func(string) (bool, error), selectors []string) (string, error) {
	for _, sel := range selectors {
		ok, err := exists(sel)
		if err != nil {
			return "", err
		}
		if ok {
			return sel, nil
		}
	}
	return "", nil
}
