package sessions

import (
	"context"
	"time"

	"github.com/eduassist/portalsync/credentials"
	interrors "github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Driver is the login capability the store needs from each platform
// driver. The drivers package implements it; the store only sees this
// seam so fakes can stand in for real portals.
type Driver interface {
	Platform() platform.Platform
	Login(ctx context.Context, cred credentials.Credential, secret credentials.Secret) (*Session, error)
}

// SubsessionDeriver is implemented by the root-platform driver (Clever)
// to hand an authenticated session off to a dependent platform without
// a second credential login.
type SubsessionDeriver interface {
	DeriveSubsession(ctx context.Context, root *Session, target platform.Platform) (*Session, error)
}

const (
	defaultSessionTTL   = 45 * time.Minute
	defaultLoginTimeout = 60 * time.Second

	// Portals throttle aggressive login attempts; pace ours.
	defaultLoginInterval = 2 * time.Second
	defaultLoginBurst    = 3
)

type sessionKey struct {
	userID   string
	platform platform.Platform
}

// Store holds one session per (user, platform) and the exclusive
// lifetime of each session's underlying context. Concurrent
// GetOrCreate calls for the same pair are collapsed into a single
// login.
type Store struct {
	resolver credentials.Resolver
	drivers  map[platform.Platform]Driver
	logger   zerolog.Logger

	ttl          time.Duration
	loginTimeout time.Duration
	nowTime      func() time.Time

	group    singleflight.Group
	limiters map[platform.Platform]*rate.Limiter

	lock     chan struct{} // guards sessions map; channel so waits honour ctx
	sessions map[sessionKey]*Session
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets how long a created session is trusted before time-based
// expiry. Expiry is also detected reactively via extraction failures.
func WithTTL(ttl time.Duration) StoreOption {
	return func(st *Store) { st.ttl = ttl }
}

// WithLoginTimeout bounds every login and subsession derivation.
func WithLoginTimeout(d time.Duration) StoreOption {
	return func(st *Store) { st.loginTimeout = d }
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(st *Store) { st.nowTime = nowFunc }
}

// WithLoginRate overrides the per-platform login pacing.
func WithLoginRate(interval time.Duration, burst int) StoreOption {
	return func(st *Store) {
		st.limiters = make(map[platform.Platform]*rate.Limiter)
		for _, p := range platform.Known() {
			st.limiters[p] = rate.NewLimiter(rate.Every(interval), burst)
		}
	}
}

// NewStore wires the store with its credential resolver and drivers.
func NewStore(resolver credentials.Resolver, drivers []Driver, logger zerolog.Logger, options ...StoreOption) (*Store, error) {
	if resolver == nil {
		return nil, errors.New("[NewStore] credentials resolver is required")
	}
	if len(drivers) == 0 {
		return nil, errors.New("[NewStore] at least one driver is required")
	}

	st := &Store{
		resolver:     resolver,
		drivers:      make(map[platform.Platform]Driver, len(drivers)),
		logger:       logger,
		ttl:          defaultSessionTTL,
		loginTimeout: defaultLoginTimeout,
		nowTime:      time.Now,
		limiters:     make(map[platform.Platform]*rate.Limiter),
		lock:         make(chan struct{}, 1),
		sessions:     make(map[sessionKey]*Session),
	}
	for _, d := range drivers {
		st.drivers[d.Platform()] = d
	}
	for _, p := range platform.Known() {
		st.limiters[p] = rate.NewLimiter(rate.Every(defaultLoginInterval), defaultLoginBurst)
	}

	for _, opt := range options {
		opt(st)
	}
	return st, nil
}

// GetOrCreate returns the existing usable session for (userID, p) or
// logs in and stores a new one. For platforms rooted on Clever it first
// ensures the root session, then derives a subsession through it; a
// root failure surfaces as ErrSessionDependency without attempting a
// direct login.
func (st *Store) GetOrCreate(ctx context.Context, userID string, p platform.Platform) (*Session, error) {
	if _, ok := st.drivers[p]; !ok {
		return nil, errors.Wrapf(platform.ErrUnknownPlatform, "[Store.GetOrCreate] %q", p)
	}

	if sess, err := st.lookup(ctx, userID, p); err != nil {
		return nil, err
	} else if sess != nil {
		return sess, nil
	}

	k := sessionKey{userID: userID, platform: p}
	v, err, _ := st.group.Do(userID+"/"+string(p), func() (interface{}, error) {
		// Another flight may have finished between our lookup and here.
		if sess, err := st.lookup(ctx, userID, p); err != nil {
			return nil, err
		} else if sess != nil {
			return sess, nil
		}

		sess, err := st.create(ctx, userID, p)
		if err != nil {
			return nil, err
		}
		if err := st.put(ctx, k, sess); err != nil {
			sess.markInvalid()
			st.closeContext(sess)
			return nil, err
		}
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Invalidate marks the session for (userID, p) invalid and closes its
// underlying context. Invalidating a root platform propagates to every
// session derived from it, since their cookies descend from the root's.
func (st *Store) Invalidate(ctx context.Context, userID string, p platform.Platform) error {
	if err := st.acquireLock(ctx); err != nil {
		return err
	}
	defer st.releaseLock()

	st.invalidateLocked(userID, p)
	return nil
}

func (st *Store) invalidateLocked(userID string, p platform.Platform) {
	k := sessionKey{userID: userID, platform: p}
	if sess, ok := st.sessions[k]; ok {
		sess.markInvalid()
		st.closeContext(sess)
		delete(st.sessions, k)
		st.logger.Info().
			Str("user_id", userID).
			Str("platform", string(p)).
			Str("session_id", sess.ID).
			Msg("session invalidated")
	}

	for _, dep := range platform.Known() {
		if platform.DependsOn(dep, p) {
			st.invalidateLocked(userID, dep)
		}
	}
}

// lookup returns the usable session for the pair, nil when absent.
// Sessions found expired are dropped on the way out.
func (st *Store) lookup(ctx context.Context, userID string, p platform.Platform) (*Session, error) {
	if err := st.acquireLock(ctx); err != nil {
		return nil, err
	}
	defer st.releaseLock()

	k := sessionKey{userID: userID, platform: p}
	sess, ok := st.sessions[k]
	if !ok {
		return nil, nil
	}
	if !sess.Usable(st.nowTime()) {
		st.closeContext(sess)
		delete(st.sessions, k)
		return nil, nil
	}
	return sess, nil
}

func (st *Store) put(ctx context.Context, k sessionKey, sess *Session) error {
	if err := st.acquireLock(ctx); err != nil {
		return err
	}
	defer st.releaseLock()
	st.sessions[k] = sess
	return nil
}

// create performs the platform login. Every login is bounded by the
// store's login timeout; cancellation mid-login discards the partial
// session.
func (st *Store) create(ctx context.Context, userID string, p platform.Platform) (*Session, error) {
	loginCtx, cancel := context.WithTimeout(ctx, st.loginTimeout)
	defer cancel()

	var sess *Session
	var err error
	if root := platform.RootOf(p); root != "" {
		sess, err = st.deriveFromRoot(loginCtx, userID, root, p)
	} else {
		sess, err = st.directLogin(loginCtx, userID, p)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, interrors.Wrapf(interrors.ErrTimeout, "[Store.create] login %s for %s", p, userID)
		}
		return nil, err
	}

	now := st.nowTime()
	sess.ID = uuid.New().String()
	sess.UserID = userID
	sess.Platform = p
	sess.CreatedAt = now
	if sess.ExpiresAt.IsZero() && st.ttl > 0 {
		sess.ExpiresAt = now.Add(st.ttl)
	}

	st.logger.Info().
		Str("user_id", userID).
		Str("platform", string(p)).
		Str("session_id", sess.ID).
		Time("expires_at", sess.ExpiresAt).
		Msg("session created")
	return sess, nil
}

func (st *Store) directLogin(ctx context.Context, userID string, p platform.Platform) (*Session, error) {
	cred, secret, err := st.resolver.Resolve(ctx, userID, p)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.directLogin] resolve credential")
	}

	if limiter, ok := st.limiters[p]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "[Store.directLogin] login pacing")
		}
	}

	sess, err := st.drivers[p].Login(ctx, cred, secret)
	if err != nil {
		return nil, errors.Wrapf(err, "[Store.directLogin] %s", p)
	}
	return sess, nil
}

// deriveFromRoot ensures the root session exists, then asks the root
// driver to hand off a subsession for the target platform. The root's
// browser context is held exclusively for the duration of the hand-off.
func (st *Store) deriveFromRoot(ctx context.Context, userID string, root, target platform.Platform) (*Session, error) {
	rootSess, err := st.GetOrCreate(ctx, userID, root)
	if err != nil {
		return nil, interrors.Wrapf(interrors.ErrSessionDependency, "[Store.deriveFromRoot] %s requires %s: %v", target, root, err)
	}

	deriver, ok := st.drivers[root].(SubsessionDeriver)
	if !ok {
		return nil, interrors.Wrapf(interrors.ErrSessionDependency, "[Store.deriveFromRoot] %s driver cannot derive subsessions", root)
	}

	if err := rootSess.Acquire(ctx); err != nil {
		return nil, errors.Wrap(err, "[Store.deriveFromRoot] acquire root session")
	}
	defer rootSess.Release()

	sess, err := deriver.DeriveSubsession(ctx, rootSess, target)
	if err != nil {
		return nil, errors.Wrapf(err, "[Store.deriveFromRoot] derive %s", target)
	}
	return sess, nil
}

func (st *Store) closeContext(sess *Session) {
	if sess.Browser == nil {
		return
	}
	if err := sess.Browser.Close(); err != nil {
		st.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("closing browser context")
	}
}

func (st *Store) acquireLock(ctx context.Context) error {
	select {
	case st.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (st *Store) releaseLock() {
	<-st.lock
}
