package credentials

import (
	"context"
	"os"
	"strings"

	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
)

// EnvResolver reads credentials from environment variables, typically
// loaded from a .env file. Single-household deployments keep one
// credential set per platform, so the user ID only scopes sessions, not
// lookups.
//
// Portal platforms use <PLATFORM>_USERNAME and <PLATFORM>_PASSWORD
// (e.g. CLEVER_USERNAME). Google Classroom uses GOOGLE_REFRESH_TOKEN,
// falling back to GOOGLE_AUTH_CODE for the first grant.
type EnvResolver struct{}

var _ Resolver = EnvResolver{}

func (EnvResolver) Resolve(_ context.Context, userID string, p platform.Platform) (Credential, Secret, error) {
	if p == platform.GoogleClassroom {
		cred := Credential{Platform: p, Identifier: os.Getenv("GOOGLE_USERNAME")}
		if tok := os.Getenv("GOOGLE_REFRESH_TOKEN"); tok != "" {
			return cred, Secret("refresh_token:" + tok), nil
		}
		if code := os.Getenv("GOOGLE_AUTH_CODE"); code != "" {
			return cred, Secret(code), nil
		}
		return Credential{}, "", errors.Wrapf(errors.ErrCredentialNotFound, "[EnvResolver.Resolve] no google grant for %s", userID)
	}

	prefix := strings.ToUpper(string(p))
	username := os.Getenv(prefix + "_USERNAME")
	password := os.Getenv(prefix + "_PASSWORD")
	if username == "" || password == "" {
		return Credential{}, "", errors.Wrapf(errors.ErrCredentialNotFound, "[EnvResolver.Resolve] no %s credential for %s", p, userID)
	}

	return Credential{Platform: p, Identifier: username}, Secret(password), nil
}
