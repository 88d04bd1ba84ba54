// Package aggregator routes "list coursework for platform X" requests
// through the session store and the extractor, and owns the retry
// policy: extraction failures get one session refresh, authentication
// and dependency failures surface immediately.
package aggregator

import (
	"context"
	"iter"
	"time"

	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/records"
	"github.com/eduassist/portalsync/sessions"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultOperationTimeout = 90 * time.Second

// SessionStore is the slice of sessions.Store the service depends on.
type SessionStore interface {
	GetOrCreate(ctx context.Context, userID string, p platform.Platform) (*sessions.Session, error)
	Invalidate(ctx context.Context, userID string, p platform.Platform) error
}

// Extractor is the slice of scrape.Extractor the service depends on.
type Extractor interface {
	Assignments(ctx context.Context, sess *sessions.Session, pageURL string) (iter.Seq[records.Assignment], error)
	Courses(ctx context.Context, sess *sessions.Session, pageURL string) (iter.Seq[records.Course], error)
}

// AppLister lists the Clever dashboard applications of a root session.
// Implemented by drivers.CleverDriver.
type AppLister interface {
	Applications(ctx context.Context, root *sessions.Session) ([]records.App, error)
}

// Service is the orchestrator.
type Service struct {
	store     SessionStore
	extractor Extractor
	apps      AppLister
	logger    zerolog.Logger

	opTimeout time.Duration

	// Optional per-platform page URLs to navigate before extraction.
	// Empty means "extract from the page the session landed on".
	assignmentPages map[platform.Platform]string
	coursePages     map[platform.Platform]string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithOperationTimeout bounds every list operation end to end.
func WithOperationTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.opTimeout = d }
}

// WithAssignmentPage routes a platform's assignment extraction to a
// specific page.
func WithAssignmentPage(p platform.Platform, url string) ServiceOption {
	return func(s *Service) { s.assignmentPages[p] = url }
}

// WithCoursePage routes a platform's course extraction to a specific
// page.
func WithCoursePage(p platform.Platform, url string) ServiceOption {
	return func(s *Service) { s.coursePages[p] = url }
}

// NewService wires the orchestrator.
func NewService(store SessionStore, extractor Extractor, apps AppLister, logger zerolog.Logger, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, pkgerrors.New("[NewService] session store is required")
	}
	if extractor == nil {
		return nil, pkgerrors.New("[NewService] extractor is required")
	}

	s := &Service{
		store:           store,
		extractor:       extractor,
		apps:            apps,
		logger:          logger,
		opTimeout:       defaultOperationTimeout,
		assignmentPages: make(map[platform.Platform]string),
		coursePages:     make(map[platform.Platform]string),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// ListAssignments returns the normalized assignments for one user on
// one platform.
func (s *Service) ListAssignments(ctx context.Context, userID string, p platform.Platform) ([]records.Assignment, error) {
	if p == platform.Clever {
		// Clever is a launcher, not a coursework host.
		return []records.Assignment{}, nil
	}

	return listWithRefresh(ctx, s, userID, p, func(ctx context.Context, sess *sessions.Session) ([]records.Assignment, error) {
		seq, err := s.extractor.Assignments(ctx, sess, s.assignmentPages[p])
		if err != nil {
			return nil, err
		}
		return collect(seq), nil
	})
}

// ListCourses returns the normalized courses for one user on one
// platform.
func (s *Service) ListCourses(ctx context.Context, userID string, p platform.Platform) ([]records.Course, error) {
	if p == platform.Clever {
		return []records.Course{}, nil
	}

	return listWithRefresh(ctx, s, userID, p, func(ctx context.Context, sess *sessions.Session) ([]records.Course, error) {
		seq, err := s.extractor.Courses(ctx, sess, s.coursePages[p])
		if err != nil {
			return nil, err
		}
		return collect(seq), nil
	})
}

// ListCleverApps lists the application tiles on the user's Clever
// dashboard.
func (s *Service) ListCleverApps(ctx context.Context, userID string) ([]records.App, error) {
	if s.apps == nil {
		return nil, pkgerrors.New("[Service.ListCleverApps] no app lister configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	sess, err := s.store.GetOrCreate(ctx, userID, platform.Clever)
	if err != nil {
		return nil, err
	}
	if err := sess.Acquire(ctx); err != nil {
		return nil, err
	}
	defer sess.Release()

	return s.apps.Applications(ctx, sess)
}

// listWithRefresh runs one extraction pass, and on an extraction
// failure invalidates the session and retries exactly once with a fresh
// one. This covers sessions that expired without telling anyone: the
// first symptom of a dead portal session is markup that no longer
// parses.
func listWithRefresh[T any](ctx context.Context, s *Service, userID string, p platform.Platform, pass func(context.Context, *sessions.Session) ([]T, error)) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	out, err := runPass(ctx, s, userID, p, pass)
	if err == nil {
		return out, nil
	}
	if !errors.IsExtraction(err) {
		return nil, err
	}

	s.logger.Warn().Err(err).
		Str("user_id", userID).
		Str("platform", string(p)).
		Msg("extraction failed, refreshing session and retrying once")
	if invErr := s.store.Invalidate(ctx, userID, p); invErr != nil {
		return nil, pkgerrors.Wrap(invErr, "[listWithRefresh] invalidate session")
	}

	out, retryErr := runPass(ctx, s, userID, p, pass)
	if retryErr == nil {
		return out, nil
	}
	if errors.IsExtraction(retryErr) {
		return nil, errors.Wrapf(errors.ErrPlatformUnavailable, "[listWithRefresh] %s failed twice: %v", p, retryErr)
	}
	return nil, retryErr
}

func runPass[T any](ctx context.Context, s *Service, userID string, p platform.Platform, pass func(context.Context, *sessions.Session) ([]T, error)) ([]T, error) {
	sess, err := s.store.GetOrCreate(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	if err := sess.Acquire(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrapf(errors.ErrTimeout, "[runPass] waiting for %s session", p)
		}
		return nil, err
	}
	defer sess.Release()

	return pass(ctx, sess)
}

func collect[T any](seq iter.Seq[T]) []T {
	out := []T{}
	for item := range seq {
		out = append(out, item)
	}
	return out
}
