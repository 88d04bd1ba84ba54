package fakecredentials

import (
	"context"
	"sync"

	"github.com/eduassist/portalsync/credentials"
	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
)

var _ credentials.Resolver = (*FakeResolver)(nil)

type entry struct {
	cred   credentials.Credential
	secret credentials.Secret
}

// FakeResolver is an in-memory credentials.Resolver for tests and local
// development.
type FakeResolver struct {
	lock    sync.RWMutex
	entries map[string]entry
}

func NewFakeResolver() *FakeResolver {
	return &FakeResolver{entries: make(map[string]entry)}
}

func key(userID string, p platform.Platform) string {
	return userID + "/" + string(p)
}

// Set stores a credential for a (user, platform) pair.
func (fr *FakeResolver) Set(userID string, cred credentials.Credential, secret credentials.Secret) {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	fr.entries[key(userID, cred.Platform)] = entry{cred: cred, secret: secret}
}

func (fr *FakeResolver) Resolve(_ context.Context, userID string, p platform.Platform) (credentials.Credential, credentials.Secret, error) {
	fr.lock.RLock()
	defer fr.lock.RUnlock()

	e, ok := fr.entries[key(userID, p)]
	if !ok {
		return credentials.Credential{}, "", errors.Wrapf(errors.ErrCredentialNotFound, "user %q platform %q", userID, p)
	}
	return e.cred, e.secret, nil
}
