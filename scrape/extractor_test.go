package scrape_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eduassist/portalsync/browser/browserfakes"
	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/records"
	"github.com/eduassist/portalsync/scrape"
	"github.com/eduassist/portalsync/sessions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const assignmentsURL = "https://connected.mcgraw-hill.com/assignments"

const mcgrawCardsHTML = `
<html><body>
  <div class="assignment">
    <h3 class="title">Chapter 3 Quiz</h3>
    <span class="due-date">2026-09-01</span>
    <span class="course">Algebra I</span>
    <a href="/assignments/ch3-quiz">open</a>
  </div>
  <div class="assignment">
    <h3 class="title">Reading Log</h3>
    <a href="/assignments/reading-log">open</a>
  </div>
  <div class="assignment">
    <span class="due-date">2026-09-02</span>
  </div>
  <div class="assignment">
    <h3 class="title">Chapter 3 Quiz</h3>
    <span class="due-date">2026-09-01</span>
    <a href="/assignments/ch3-quiz">open</a>
  </div>
</body></html>`

func portalSession(t *testing.T, p platform.Platform, pageHTML string) *sessions.Session {
	t.Helper()

	fc := browserfakes.NewFakeContext()
	fc.SetPage(assignmentsURL, pageHTML)

	sess := sessions.NewSession("student-1", p)
	sess.Browser = fc
	return sess
}

func collectAssignments(t *testing.T, e *scrape.Extractor, sess *sessions.Session) []records.Assignment {
	t.Helper()

	seq, err := e.Assignments(context.Background(), sess, assignmentsURL)
	require.NoError(t, err)

	var out []records.Assignment
	for a := range seq {
		out = append(out, a)
	}
	return out
}

func TestExtractorAssignments(t *testing.T) {
	e := scrape.New(zerolog.Nop())

	t.Run("cards with one malformed and one duplicate", func(t *testing.T) {
		sess := portalSession(t, platform.McGrawHill, mcgrawCardsHTML)
		got := collectAssignments(t, e, sess)

		// Four cards on the page: one has no title (skipped), one is a
		// duplicate (dropped), leaving two.
		require.Len(t, got, 2)
		require.Equal(t, "Chapter 3 Quiz", got[0].Title)
		require.Equal(t, "Algebra I", got[0].CourseRef)
		require.NotNil(t, got[0].DueAt)
		require.Equal(t, "/assignments/ch3-quiz", got[0].RawURL)

		require.Equal(t, "Reading Log", got[1].Title)
		require.Nil(t, got[1].DueAt, "missing due date is not an error")
		require.NotEqual(t, got[0].ExternalID, got[1].ExternalID)
	})

	t.Run("stable external ids across passes", func(t *testing.T) {
		first := collectAssignments(t, e, portalSession(t, platform.McGrawHill, mcgrawCardsHTML))
		second := collectAssignments(t, e, portalSession(t, platform.McGrawHill, mcgrawCardsHTML))
		require.Equal(t, first, second)
	})

	t.Run("table fallback skips header row", func(t *testing.T) {
		sess := portalSession(t, platform.McGrawHill, `
<html><body><table>
  <tr><td>Title</td><td>Due Date</td></tr>
  <tr><td><a href="/hw/5">Worksheet 5</a></td><td>2026-09-03</td></tr>
  <tr><td>Worksheet 6</td><td></td></tr>
</table></body></html>`)
		got := collectAssignments(t, e, sess)

		require.Len(t, got, 2)
		require.Equal(t, "Worksheet 5", got[0].Title)
		require.Equal(t, "/hw/5", got[0].RawURL)
		require.NotNil(t, got[0].DueAt)
		require.Equal(t, "Worksheet 6", got[1].Title)
	})

	t.Run("edpuzzle video cards", func(t *testing.T) {
		sess := portalSession(t, platform.Edpuzzle, `
<html><body>
  <div class="assignment-item">
    <h4 class="video-title">Cell Division</h4>
    <span class="teacher-name">Ms. Rivera</span>
    <span class="due-date">2026-09-04</span>
    <a href="https://edpuzzle.com/assignments/abc">watch</a>
  </div>
</body></html>`)
		got := collectAssignments(t, e, sess)

		require.Len(t, got, 1)
		require.Equal(t, "Cell Division", got[0].Title)
		require.Equal(t, "Ms. Rivera", got[0].CourseRef)
	})

	t.Run("markup mismatch is extraction error", func(t *testing.T) {
		sess := portalSession(t, platform.McGrawHill, `<html><body><p>nothing here</p></body></html>`)
		_, err := e.Assignments(context.Background(), sess, assignmentsURL)
		require.ErrorIs(t, err, errors.ErrExtraction)
	})

	t.Run("sequence is not restartable", func(t *testing.T) {
		sess := portalSession(t, platform.McGrawHill, mcgrawCardsHTML)
		seq, err := e.Assignments(context.Background(), sess, assignmentsURL)
		require.NoError(t, err)

		var first, second int
		for range seq {
			first++
		}
		for range seq {
			second++
		}
		require.Equal(t, 2, first)
		require.Zero(t, second)
	})

	t.Run("early break stops the pass", func(t *testing.T) {
		sess := portalSession(t, platform.McGrawHill, mcgrawCardsHTML)
		seq, err := e.Assignments(context.Background(), sess, assignmentsURL)
		require.NoError(t, err)

		var got []records.Assignment
		for a := range seq {
			got = append(got, a)
			break
		}
		require.Len(t, got, 1)
	})
}

func TestExtractorCourses(t *testing.T) {
	e := scrape.New(zerolog.Nop())

	sess := portalSession(t, platform.McGrawHill, `
<html><body>
  <div class="chapter"><h3 class="title">Unit 1: Expressions</h3><a href="/units/1">go</a></div>
  <div class="chapter"><h3 class="title">Unit 2: Equations</h3><a href="/units/2">go</a></div>
  <div class="chapter"></div>
</body></html>`)

	seq, err := e.Courses(context.Background(), sess, assignmentsURL)
	require.NoError(t, err)

	var got []records.Course
	for c := range seq {
		got = append(got, c)
	}
	require.Len(t, got, 2)
	require.Equal(t, "Unit 1: Expressions", got[0].Name)
	require.Equal(t, platform.McGrawHill, got[0].SourcePlatform)
}

func classroomFixture(t *testing.T, handler http.Handler) (*scrape.Extractor, *sessions.Session) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	e := scrape.New(zerolog.Nop(), scrape.WithClassroomBaseURL(srv.URL))
	sess := sessions.NewSession("student-1", platform.GoogleClassroom)
	sess.Client = srv.Client()
	return e, sess
}

func TestClassroomAssignments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"courses":[{"id":"c-1","name":"Biology"}]}`))
	})
	mux.HandleFunc("/v1/courses/c-1/courseWork", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"courseWork":[
			{"id":"w-1","title":"Lab Report","description":"Mitosis lab",
			 "alternateLink":"https://classroom.google.com/w-1",
			 "dueDate":{"year":2026,"month":9,"day":10},"dueTime":{"hours":23,"minutes":59}},
			{"id":"w-2","title":"Untimed Essay"}
		]}`))
	})

	e, sess := classroomFixture(t, mux)
	seq, err := e.Assignments(context.Background(), sess, "")
	require.NoError(t, err)

	var got []records.Assignment
	for a := range seq {
		got = append(got, a)
	}
	require.Len(t, got, 2)
	require.Equal(t, "w-1", got[0].ExternalID)
	require.Equal(t, "Biology", got[0].CourseRef)
	require.NotNil(t, got[0].DueAt)
	require.Equal(t, 23, got[0].DueAt.Hour())
	require.Nil(t, got[1].DueAt)
}

func TestClassroomCourses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"courses":[{"id":"c-1","name":"Biology"},{"id":"c-2","name":"History"}]}`))
	})

	e, sess := classroomFixture(t, mux)
	seq, err := e.Courses(context.Background(), sess, "")
	require.NoError(t, err)

	var got []records.Course
	for c := range seq {
		got = append(got, c)
	}
	require.Len(t, got, 2)
	require.Equal(t, "c-2", got[1].ExternalID)
}

func TestClassroomAuthFailure(t *testing.T) {
	e, sess := classroomFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))

	_, err := e.Assignments(context.Background(), sess, "")
	require.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestClassroomServerError(t *testing.T) {
	e, sess := classroomFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := e.Courses(context.Background(), sess, "")
	require.ErrorIs(t, err, errors.ErrExtraction)
}
