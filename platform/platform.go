// Package platform defines the closed set of educational platforms the
// aggregator knows how to reach, and the authentication dependencies
// between them.
package platform

import (
	"github.com/pkg/errors"
)

// Platform identifies one of the supported educational platforms.
type Platform string

const (
	// GoogleClassroom is reached through the official API with OAuth2,
	// no browser automation involved.
	GoogleClassroom Platform = "google_classroom"

	// Clever is the SSO portal and the authentication root for the
	// dependent platforms below.
	Clever Platform = "clever"

	// McGrawHill is reached through a Clever application launch.
	McGrawHill Platform = "mcgraw_hill"

	// Edpuzzle is reached through a Clever application launch.
	Edpuzzle Platform = "edpuzzle"
)

// ErrUnknownPlatform is returned by Parse for identifiers outside the
// supported set.
var ErrUnknownPlatform = errors.New("unknown platform")

var known = []Platform{GoogleClassroom, Clever, McGrawHill, Edpuzzle}

// Known returns all supported platforms in a stable order.
func Known() []Platform {
	out := make([]Platform, len(known))
	copy(out, known)
	return out
}

// Parse validates a platform identifier.
func Parse(s string) (Platform, error) {
	for _, p := range known {
		if string(p) == s {
			return p, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownPlatform, "%q", s)
}

func (p Platform) String() string { return string(p) }

// RootOf returns the platform whose session must exist before p can be
// logged into, or the zero value if p authenticates on its own.
// McGraw Hill and Edpuzzle are only reachable through a live Clever
// session (SSO hand-off).
func RootOf(p Platform) Platform {
	switch p {
	case McGrawHill, Edpuzzle:
		return Clever
	default:
		return ""
	}
}

// DependsOn reports whether p requires a root session on other.
func DependsOn(p, other Platform) bool {
	return RootOf(p) == other && other != ""
}

// CleverAppName returns the application tile name a dependent platform
// is launched under inside the Clever portal.
func CleverAppName(p Platform) string {
	switch p {
	case McGrawHill:
		return "mcgraw hill"
	case Edpuzzle:
		return "edpuzzle"
	default:
		return ""
	}
}
