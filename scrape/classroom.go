package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/internal/utils"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/records"
	"github.com/eduassist/portalsync/sessions"
	"github.com/rs/zerolog"
)

const (
	defaultClassroomBaseURL = "https://classroom.googleapis.com"
	classroomPageSize       = 20
)

// classroomClient fetches courses and coursework from the Google
// Classroom REST API through a session's self-refreshing HTTP client.
// No scraping here: Google is the one platform with a real contract.
type classroomClient struct {
	baseURL string
	logger  zerolog.Logger
}

func newClassroomClient(logger zerolog.Logger) *classroomClient {
	return &classroomClient{baseURL: defaultClassroomBaseURL, logger: logger}
}

type classroomCourse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type classroomDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type classroomTimeOfDay struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

type classroomCourseWork struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	AlternateURL string              `json:"alternateLink"`
	DueDate      *classroomDate      `json:"dueDate"`
	DueTime      *classroomTimeOfDay `json:"dueTime"`
}

func (cc *classroomClient) courses(ctx context.Context, sess *sessions.Session) (iter.Seq[records.Course], error) {
	list, err := cc.listCourses(ctx, sess)
	if err != nil {
		return nil, err
	}

	out := make([]records.Course, 0, len(list))
	for _, c := range list {
		course := records.Course{
			SourcePlatform: platform.GoogleClassroom,
			ExternalID:     c.ID,
			Name:           c.Name,
		}
		if !course.Valid() {
			cc.logger.Debug().Str("course_id", c.ID).Msg("skipping malformed classroom course")
			continue
		}
		out = append(out, course)
	}
	return onceSeq(cc.logger, out), nil
}

func (cc *classroomClient) assignments(ctx context.Context, sess *sessions.Session) (iter.Seq[records.Assignment], error) {
	courses, err := cc.listCourses(ctx, sess)
	if err != nil {
		return nil, err
	}

	var out []records.Assignment
	seen := make(map[string]struct{})
	for _, course := range courses {
		var page struct {
			CourseWork []classroomCourseWork `json:"courseWork"`
		}
		path := fmt.Sprintf("/v1/courses/%s/courseWork?pageSize=%d&orderBy=dueDate%%20desc", course.ID, classroomPageSize)
		if err := cc.get(ctx, sess, path, &page); err != nil {
			return nil, err
		}

		for _, work := range page.CourseWork {
			a := records.Assignment{
				SourcePlatform: platform.GoogleClassroom,
				ExternalID:     work.ID,
				Title:          work.Title,
				Description:    work.Description,
				DueAt:          classroomDue(work.DueDate, work.DueTime),
				CourseRef:      course.Name,
				RawURL:         work.AlternateURL,
			}
			if !a.Valid() {
				cc.logger.Debug().Str("course_id", course.ID).Msg("skipping malformed classroom assignment")
				continue
			}
			if _, dup := seen[a.ExternalID]; dup {
				continue
			}
			seen[a.ExternalID] = struct{}{}
			out = append(out, a)
		}
	}
	return onceSeq(cc.logger, out), nil
}

func (cc *classroomClient) listCourses(ctx context.Context, sess *sessions.Session) ([]classroomCourse, error) {
	var page struct {
		Courses []classroomCourse `json:"courses"`
	}
	path := fmt.Sprintf("/v1/courses?pageSize=%d&courseStates=ACTIVE", classroomPageSize)
	if err := cc.get(ctx, sess, path, &page); err != nil {
		return nil, err
	}
	return page.Courses, nil
}

func (cc *classroomClient) get(ctx context.Context, sess *sessions.Session, path string, out interface{}) error {
	if sess.Client == nil {
		return errors.Wrapf(errors.ErrSessionInvalid, "[classroomClient.get] session has no API client")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cc.baseURL+path, nil)
	if err != nil {
		return errors.Wrapf(errors.ErrExtraction, "[classroomClient.get] build request: %v", err)
	}

	resp, err := sess.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return errors.Wrapf(errors.ErrTimeout, "[classroomClient.get] %s", path)
		}
		return errors.Wrapf(errors.ErrExtraction, "[classroomClient.get] %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(errors.ErrExtraction, "[classroomClient.get] read %s: %v", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(errors.ErrAuthentication, "[classroomClient.get] %s: status %d", path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return errors.Wrapf(errors.ErrExtraction, "[classroomClient.get] %s: status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(errors.ErrExtraction, "[classroomClient.get] decode %s: %v", path, err)
	}
	return nil
}

// classroomDue assembles the API's split date/time into one timestamp.
func classroomDue(d *classroomDate, t *classroomTimeOfDay) *time.Time {
	if d == nil || d.Year == 0 {
		return nil
	}
	hours, minutes := 0, 0
	if t != nil {
		hours, minutes = t.Hours, t.Minutes
	}
	return utils.Ptr(time.Date(d.Year, time.Month(d.Month), d.Day, hours, minutes, 0, 0, time.UTC))
}

// onceSeq wraps a slice in a single-use sequence, matching the
// one-pass contract of the DOM extraction path.
func onceSeq[T any](logger zerolog.Logger, items []T) iter.Seq[T] {
	var used atomic.Bool
	return func(yield func(T) bool) {
		if !used.CompareAndSwap(false, true) {
			logger.Warn().Msg("extraction sequence ranged twice, yielding nothing")
			return
		}
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}
