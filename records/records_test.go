package records_test

import (
	"testing"
	"time"

	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/records"
	"github.com/stretchr/testify/require"
)

func TestAssignmentValid(t *testing.T) {
	valid := records.Assignment{
		SourcePlatform: platform.McGrawHill,
		ExternalID:     "a-1",
		Title:          "Chapter 3 Quiz",
	}
	require.True(t, valid.Valid())

	t.Run("missing title", func(t *testing.T) {
		a := valid
		a.Title = "   "
		require.False(t, a.Valid())
	})

	t.Run("missing external id", func(t *testing.T) {
		a := valid
		a.ExternalID = ""
		require.False(t, a.Valid())
	})

	t.Run("missing due date is fine", func(t *testing.T) {
		a := valid
		a.DueAt = nil
		require.True(t, a.Valid())
	})
}

func TestParseDueDate(t *testing.T) {
	t.Run("iso date", func(t *testing.T) {
		due := records.ParseDueDate("2026-03-15")
		require.NotNil(t, due)
		require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *due)
	})

	t.Run("iso datetime", func(t *testing.T) {
		due := records.ParseDueDate("2026-03-15 23:59:00")
		require.NotNil(t, due)
		require.Equal(t, 23, due.Hour())
	})

	t.Run("us format with Due prefix", func(t *testing.T) {
		due := records.ParseDueDate("Due: 03/15/2026")
		require.NotNil(t, due)
		require.Equal(t, time.March, due.Month())
	})

	t.Run("long format", func(t *testing.T) {
		due := records.ParseDueDate("Jan 2, 2026")
		require.NotNil(t, due)
		require.Equal(t, 2026, due.Year())
	})

	t.Run("yearless format pinned to current year", func(t *testing.T) {
		due := records.ParseDueDate("Mon, Jan 2")
		require.NotNil(t, due)
		require.Equal(t, time.Now().Year(), due.Year())
	})

	t.Run("empty", func(t *testing.T) {
		require.Nil(t, records.ParseDueDate(""))
		require.Nil(t, records.ParseDueDate("  "))
	})

	t.Run("garbage", func(t *testing.T) {
		require.Nil(t, records.ParseDueDate("whenever you get to it"))
	})
}
