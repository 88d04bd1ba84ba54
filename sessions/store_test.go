package sessions_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eduassist/portalsync/browser/browserfakes"
	"github.com/eduassist/portalsync/credentials"
	fakecredentials "github.com/eduassist/portalsync/credentials/repofake"
	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/sessions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testUserID = "student-1"

// fakeDriver scripts login results for one platform.
type fakeDriver struct {
	lock     sync.Mutex
	p        platform.Platform
	loginErr error
	logins   int

	deriveErr error
	derives   int
}

func (d *fakeDriver) Platform() platform.Platform { return d.p }

func (d *fakeDriver) Login(_ context.Context, _ credentials.Credential, _ credentials.Secret) (*sessions.Session, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.logins++
	if d.loginErr != nil {
		return nil, d.loginErr
	}
	sess := sessions.NewSession(testUserID, d.p)
	sess.Browser = browserfakes.NewFakeContext()
	return sess, nil
}

func (d *fakeDriver) DeriveSubsession(_ context.Context, root *sessions.Session, target platform.Platform) (*sessions.Session, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.derives++
	if d.deriveErr != nil {
		return nil, d.deriveErr
	}
	sess := sessions.NewSession(root.UserID, target)
	derived, err := root.Browser.Derive(context.Background())
	if err != nil {
		return nil, err
	}
	sess.Browser = derived
	return sess, nil
}

func (d *fakeDriver) loginCount() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.logins
}

type storeFixture struct {
	store    *sessions.Store
	resolver *fakecredentials.FakeResolver
	clever   *fakeDriver
	mcgraw   *fakeDriver
	edpuzzle *fakeDriver
	google   *fakeDriver
}

func setupStore(t *testing.T, options ...sessions.StoreOption) *storeFixture {
	t.Helper()

	f := &storeFixture{
		resolver: fakecredentials.NewFakeResolver(),
		clever:   &fakeDriver{p: platform.Clever},
		mcgraw:   &fakeDriver{p: platform.McGrawHill},
		edpuzzle: &fakeDriver{p: platform.Edpuzzle},
		google:   &fakeDriver{p: platform.GoogleClassroom},
	}
	for _, p := range platform.Known() {
		f.resolver.Set(testUserID, credentials.Credential{
			Platform:   p,
			Identifier: "student@school.test",
			SecretRef:  "vault://" + string(p),
		}, "secret")
	}

	options = append([]sessions.StoreOption{sessions.WithLoginRate(time.Millisecond, 10)}, options...)
	store, err := sessions.NewStore(
		f.resolver,
		[]sessions.Driver{f.clever, f.mcgraw, f.edpuzzle, f.google},
		zerolog.Nop(),
		options...,
	)
	require.NoError(t, err)
	f.store = store
	return f
}

func TestStoreGetOrCreateReusesSession(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	first, err := f.store.GetOrCreate(ctx, testUserID, platform.Clever)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := f.store.GetOrCreate(ctx, testUserID, platform.Clever)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Same(t, first, second)
	require.Equal(t, 1, f.clever.loginCount())
}

func TestStoreInvalidateForcesNewSession(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	first, err := f.store.GetOrCreate(ctx, testUserID, platform.Clever)
	require.NoError(t, err)

	require.NoError(t, f.store.Invalidate(ctx, testUserID, platform.Clever))
	require.Equal(t, sessions.StatusInvalid, first.Status())
	require.True(t, first.Browser.(*browserfakes.FakeContext).IsClosed)

	second, err := f.store.GetOrCreate(ctx, testUserID, platform.Clever)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
}

func TestStoreExpiredSessionReplaced(t *testing.T) {
	now := time.Now()
	f := setupStore(t,
		sessions.WithTTL(10*time.Minute),
		sessions.WithNowTime(func() time.Time { return now }),
	)
	ctx := context.Background()

	first, err := f.store.GetOrCreate(ctx, testUserID, platform.Clever)
	require.NoError(t, err)

	now = now.Add(11 * time.Minute)

	second, err := f.store.GetOrCreate(ctx, testUserID, platform.Clever)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, 2, f.clever.loginCount())
}

func TestStoreDerivesDependentSessions(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	sess, err := f.store.GetOrCreate(ctx, testUserID, platform.McGrawHill)
	require.NoError(t, err)
	require.Equal(t, platform.McGrawHill, sess.Platform)

	// Root login happened through Clever, never directly on McGraw Hill.
	require.Equal(t, 1, f.clever.loginCount())
	require.Equal(t, 0, f.mcgraw.loginCount())
	require.Equal(t, 1, f.clever.derives)
}

func TestStoreRootLoginFailureIsDependencyError(t *testing.T) {
	f := setupStore(t)
	f.clever.loginErr = errors.ErrAuthentication
	ctx := context.Background()

	_, err := f.store.GetOrCreate(ctx, testUserID, platform.McGrawHill)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrSessionDependency)
	require.Equal(t, 0, f.mcgraw.loginCount(), "no direct McGraw Hill login attempt")
}

func TestStoreRootInvalidationPropagates(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	mcgrawSess, err := f.store.GetOrCreate(ctx, testUserID, platform.McGrawHill)
	require.NoError(t, err)

	require.NoError(t, f.store.Invalidate(ctx, testUserID, platform.Clever))
	require.Equal(t, sessions.StatusInvalid, mcgrawSess.Status())

	// Re-creating the dependent platform requires a fresh root login.
	_, err = f.store.GetOrCreate(ctx, testUserID, platform.McGrawHill)
	require.NoError(t, err)
	require.Equal(t, 2, f.clever.loginCount())
}

func TestStoreMissingCredential(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	_, err := f.store.GetOrCreate(ctx, "stranger", platform.Clever)
	require.ErrorIs(t, err, errors.ErrCredentialNotFound)
}

func TestStoreConcurrentGetOrCreateSingleLogin(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*sessions.Session, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.store.GetOrCreate(ctx, testUserID, platform.Clever)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, sess := range results[1:] {
		require.Same(t, results[0], sess)
	}
	require.Equal(t, 1, f.clever.loginCount())
}

func TestSessionAcquireHonoursContext(t *testing.T) {
	sess := sessions.NewSession(testUserID, platform.Clever)
	require.NoError(t, sess.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := sess.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The held lock is still valid and releasable.
	sess.Release()
	require.NoError(t, sess.Acquire(context.Background()))
	sess.Release()
}
