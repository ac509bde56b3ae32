package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyticsRepoMock(t *testing.T) (*AnalyticsRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	// postgres bind type so sqlx.In placeholders are rebound to $n like in production.
	return NewAnalyticsRepository(sqlx.NewDb(db, "postgres")), mock, func() { db.Close() }
}

var goalColumnNames = []string{"id", "student_id", "created_at", "completed_at", "target_date", "is_completed"}

func TestAnalyticsRepositoryGoalActivity(t *testing.T) {
	repo, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 8, 2, 9, 0, 0, 0, time.UTC)
	completed := time.Date(2025, 8, 5, 10, 0, 0, 0, time.UTC)
	target := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(goalColumnNames).
		AddRow("goal-1", "student-1", created, completed, target, true).
		AddRow("goal-2", "student-2", created, nil, nil, false).
		AddRow("goal-3", "student-2", created, nil, nil, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM goals g")).
		WithArgs(start, end.AddDate(0, 0, 1)).
		WillReturnRows(rows)

	records, err := repo.GoalActivity(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.True(t, records[0].IsCompleted)
	require.NotNil(t, records[0].CompletedAt)
	assert.Equal(t, completed, *records[0].CompletedAt)
	require.NotNil(t, records[0].TargetDate)
	assert.Equal(t, target, *records[0].TargetDate)

	assert.False(t, records[1].IsCompleted)
	assert.Nil(t, records[1].TargetDate)

	// completed flag without a completion timestamp is read as open
	assert.False(t, records[2].IsCompleted)
	assert.Nil(t, records[2].CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryOpenGoals(t *testing.T) {
	repo, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()

	asOf := time.Date(2025, 9, 25, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE g.is_completed = FALSE AND g.created_at < $1")).
		WithArgs(asOf.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows(goalColumnNames).
			AddRow("goal-1", "student-1", asOf.AddDate(0, 0, -3), nil, nil, false))

	records, err := repo.OpenGoals(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "student-1", records[0].StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryStudentNames(t *testing.T) {
	repo, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name FROM students WHERE id IN ($1, $2)")).
		WithArgs("student-1", "student-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name"}).
			AddRow("student-1", "Ayu Lestari").
			AddRow("student-2", "Budi Santoso"))

	names, err := repo.StudentNames(context.Background(), []string{"student-1", "student-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"student-1": "Ayu Lestari", "student-2": "Budi Santoso"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryStudentNamesEmpty(t *testing.T) {
	repo, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()

	names, err := repo.StudentNames(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryAttendanceError(t *testing.T) {
	repo, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance a")).
		WithArgs(start, end).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.AttendanceBetween(context.Background(), start, end)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query attendance")
	assert.NoError(t, mock.ExpectationsWereMet())
}
