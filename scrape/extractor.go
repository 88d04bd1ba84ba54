// Package scrape turns rendered portal pages and Classroom API payloads
// into normalized records. One call is one extraction pass over one
// page: the returned sequences are lazy, finite and non-restartable.
package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/records"
	"github.com/eduassist/portalsync/sessions"
	"github.com/rs/zerolog"
)

// Extractor reads assignment and course records out of authenticated
// sessions. Portal platforms are scraped from the rendered DOM; Google
// Classroom is fetched over its REST API.
type Extractor struct {
	logger    zerolog.Logger
	classroom *classroomClient
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClassroomBaseURL points the Classroom API client somewhere else
// (tests).
func WithClassroomBaseURL(base string) Option {
	return func(e *Extractor) { e.classroom.baseURL = base }
}

func New(logger zerolog.Logger, options ...Option) *Extractor {
	e := &Extractor{
		logger:    logger,
		classroom: newClassroomClient(logger),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Assignments extracts assignment records from the session's platform.
// pageURL, when non-empty, is navigated to first; otherwise the pass
// reads the page the session already sits on. The caller must hold the
// session's exclusive-use lock for portal platforms.
func (e *Extractor) Assignments(ctx context.Context, sess *sessions.Session, pageURL string) (iter.Seq[records.Assignment], error) {
	if sess.Platform == platform.GoogleClassroom {
		return e.classroom.assignments(ctx, sess)
	}

	fm, ok := assignmentMaps[sess.Platform]
	if !ok {
		return nil, errors.Wrapf(errors.ErrExtraction, "[Extractor.Assignments] no assignment view for %s", sess.Platform)
	}

	doc, err := e.renderedDoc(ctx, sess, pageURL)
	if err != nil {
		return nil, err
	}
	return e.assignmentSeq(doc, sess.Platform, fm)
}

// Courses extracts course records. Same contract as Assignments.
func (e *Extractor) Courses(ctx context.Context, sess *sessions.Session, pageURL string) (iter.Seq[records.Course], error) {
	if sess.Platform == platform.GoogleClassroom {
		return e.classroom.courses(ctx, sess)
	}

	fm, ok := courseMaps[sess.Platform]
	if !ok {
		return nil, errors.Wrapf(errors.ErrExtraction, "[Extractor.Courses] no course view for %s", sess.Platform)
	}

	doc, err := e.renderedDoc(ctx, sess, pageURL)
	if err != nil {
		return nil, err
	}
	return e.courseSeq(doc, sess.Platform, fm)
}

func (e *Extractor) renderedDoc(ctx context.Context, sess *sessions.Session, pageURL string) (*goquery.Document, error) {
	if sess.Browser == nil {
		return nil, errors.Wrapf(errors.ErrSessionInvalid, "[Extractor.renderedDoc] %s session has no browser context", sess.Platform)
	}

	if pageURL != "" {
		if err := sess.Browser.Navigate(ctx, pageURL); err != nil {
			return nil, e.mapBrowserErr(err, "navigate")
		}
	}
	if err := sess.Browser.WaitReady(ctx); err != nil {
		return nil, e.mapBrowserErr(err, "wait for content")
	}

	html, err := sess.Browser.HTML(ctx)
	if err != nil {
		return nil, e.mapBrowserErr(err, "read DOM")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrExtraction, "[Extractor.renderedDoc] parse DOM: %v", err)
	}
	return doc, nil
}

func (e *Extractor) mapBrowserErr(err error, step string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(errors.ErrTimeout, "[Extractor] %s", step)
	}
	return errors.Wrapf(errors.ErrExtraction, "[Extractor] %s: %v", step, err)
}

// assignmentSeq builds the lazy pass over matched containers. The
// container strategy is resolved eagerly so a markup mismatch fails the
// call, not the iteration; individual bad records are skipped during
// iteration.
func (e *Extractor) assignmentSeq(doc *goquery.Document, p platform.Platform, fm FieldMap) (iter.Seq[records.Assignment], error) {
	nodes, tabular, err := e.containers(doc, p, fm)
	if err != nil {
		return nil, err
	}

	var used atomic.Bool
	return func(yield func(records.Assignment) bool) {
		if !used.CompareAndSwap(false, true) {
			e.logger.Warn().Str("platform", string(p)).Msg("extraction sequence ranged twice, yielding nothing")
			return
		}

		seen := make(map[string]struct{}, nodes.Length())
		nodes.EachWithBreak(func(_ int, node *goquery.Selection) bool {
			a, ok := e.assignmentFrom(node, p, fm, tabular)
			if !ok {
				return true
			}
			if _, dup := seen[a.ExternalID]; dup {
				return true
			}
			seen[a.ExternalID] = struct{}{}
			return yield(a)
		})
	}, nil
}

func (e *Extractor) courseSeq(doc *goquery.Document, p platform.Platform, fm FieldMap) (iter.Seq[records.Course], error) {
	nodes, _, err := e.containers(doc, p, fm)
	if err != nil {
		return nil, err
	}

	var used atomic.Bool
	return func(yield func(records.Course) bool) {
		if !used.CompareAndSwap(false, true) {
			e.logger.Warn().Str("platform", string(p)).Msg("extraction sequence ranged twice, yielding nothing")
			return
		}

		seen := make(map[string]struct{}, nodes.Length())
		nodes.EachWithBreak(func(_ int, node *goquery.Selection) bool {
			name := strings.TrimSpace(node.Find(fm.TitleSelector).First().Text())
			c := records.Course{
				SourcePlatform: p,
				Name:           name,
				ExternalID:     externalID(p, name, node.Find(fm.LinkSelector).AttrOr("href", "")),
			}
			if !c.Valid() {
				e.logger.Debug().Str("platform", string(p)).Msg("skipping malformed course record")
				return true
			}
			if _, dup := seen[c.ExternalID]; dup {
				return true
			}
			seen[c.ExternalID] = struct{}{}
			return yield(c)
		})
	}, nil
}

// containers resolves the first matching container strategy, falling
// back to table rows when the map allows it. No match at all is an
// extraction error: the markup no longer looks like anything we know.
func (e *Extractor) containers(doc *goquery.Document, p platform.Platform, fm FieldMap) (*goquery.Selection, bool, error) {
	for _, sel := range fm.ContainerSelectors {
		nodes := doc.Find(sel)
		if nodes.Length() > 0 {
			e.logger.Debug().Str("platform", string(p)).Str("selector", sel).Int("count", nodes.Length()).Msg("container strategy matched")
			return nodes, false, nil
		}
	}

	if fm.TableFallback {
		rows := doc.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
			return row.Find("td").Length() >= 2
		})
		if rows.Length() > 0 {
			return rows, true, nil
		}
	}

	return nil, false, errors.Wrapf(errors.ErrExtraction, "[Extractor.containers] no %s container selector matched", p)
}

// headerWords are row titles that mean "this is the header, not data".
var headerWords = map[string]struct{}{"title": {}, "name": {}, "assignment": {}, "due date": {}}

func (e *Extractor) assignmentFrom(node *goquery.Selection, p platform.Platform, fm FieldMap, tabular bool) (records.Assignment, bool) {
	var a records.Assignment
	a.SourcePlatform = p

	if tabular {
		cells := node.Find("td")
		title := strings.TrimSpace(cells.Eq(0).Text())
		if _, header := headerWords[strings.ToLower(title)]; header || title == "" {
			return a, false
		}
		a.Title = title
		a.DueAt = records.ParseDueDate(cells.Eq(1).Text())
		a.RawURL = cells.Eq(0).Find("a").AttrOr("href", "")
	} else {
		a.Title = strings.TrimSpace(node.Find(fm.TitleSelector).First().Text())
		a.DueAt = records.ParseDueDate(node.Find(fm.DueSelector).First().Text())
		a.RawURL = node.Find(fm.LinkSelector).First().AttrOr("href", "")
		if fm.CourseSelector != "" {
			a.CourseRef = strings.TrimSpace(node.Find(fm.CourseSelector).First().Text())
		}
		if fm.DescriptionSelector != "" {
			a.Description = strings.TrimSpace(node.Find(fm.DescriptionSelector).First().Text())
		}
	}

	a.ExternalID = externalID(p, a.Title, a.RawURL)
	if !a.Valid() {
		e.logger.Debug().Str("platform", string(p)).Msg("skipping malformed assignment record")
		return a, false
	}
	return a, true
}

// externalID derives a stable identifier for portals that expose none
// of their own. Same title and link on a later pass means the same
// record.
func externalID(p platform.Platform, title, link string) string {
	if strings.TrimSpace(title) == "" && link == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(string(p) + "\x00" + title + "\x00" + link))
	return hex.EncodeToString(sum[:8])
}
