// Package credentials defines how the aggregator obtains login
// material for a (user, platform) pair. Secrets live in external
// storage; this package only carries opaque references until the
// moment a driver needs the resolved value.
package credentials

import (
	"context"

	"github.com/eduassist/portalsync/platform"
)

// Credential identifies login material for one platform. SecretRef is
// an opaque reference into the external credential store and must
// never be logged or returned in responses, nor must the resolved
// secret.
type Credential struct {
	Platform   platform.Platform
	Identifier string // username or account email
	SecretRef  string // opaque reference, resolved at login time
}

// Secret is the resolved login secret. Kept as its own type so it is
// harder to pass where a loggable string is expected.
type Secret string

// Resolver resolves the credential and secret for a user on a
// platform. Implementations front the external credential store.
type Resolver interface {
	Resolve(ctx context.Context, userID string, p platform.Platform) (Credential, Secret, error)
}
