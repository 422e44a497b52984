package booking

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Insert(t *testing.T) {
	iv := span(17, 18)

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "success",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
					WithArgs(advisoryLockKey).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
					WithArgs(iv.Start, iv.End).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
				mock.ExpectExec(`INSERT INTO bookings`).
					WithArgs(sqlmock.AnyArg(), "Meeting", "", iv.Start, iv.End, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "conflict rolls back",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
					WithArgs(advisoryLockKey).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
					WithArgs(iv.Start, iv.End).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
				mock.ExpectRollback()
			},
			wantErr: ErrConflict,
		},
		{
			name: "insert failure rolls back",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
				mock.ExpectExec(`INSERT INTO bookings`).
					WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
			wantErr: ErrStoreUnavailable,
		},
		{
			name: "begin failure",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
			},
			wantErr: ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			s := NewPostgresStore(db)

			rec, err := s.Insert(context.Background(), "Meeting", "", iv)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, rec.ID)
				assert.True(t, rec.Start.Equal(iv.Start))
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_Overlaps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	iv := span(9, 12)
	mock.ExpectQuery(`SELECT id, summary, description, start_at, end_at, created_at`).
		WithArgs(iv.Start, iv.End).
		WillReturnRows(sqlmock.NewRows([]string{"id", "summary", "description", "start_at", "end_at", "created_at"}).
			AddRow("evt_1", "Standup", "", at(9, 0), at(10, 0), at(8, 0)).
			AddRow("evt_2", "Review", "Q3", at(11, 0), at(12, 0), at(8, 0)))

	got, err := NewPostgresStore(db).Overlaps(context.Background(), iv)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "evt_1", got[0].ID)
	assert.Equal(t, "Q3", got[1].Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListForDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dayStart, dayEnd := at(0, 0), at(0, 0).AddDate(0, 0, 1)
	mock.ExpectQuery(`SELECT start_at, end_at`).
		WithArgs(dayStart, dayEnd).
		WillReturnRows(sqlmock.NewRows([]string{"start_at", "end_at"}).
			AddRow(at(9, 0), at(10, 0)).
			AddRow(at(14, 0), at(15, 0)))

	got, err := NewPostgresStore(db).ListForDay(context.Background(), dayStart, dayEnd)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[1].Start.Equal(at(14, 0)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryFailureIsUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT start_at, end_at`).WillReturnError(errors.New("timeout"))

	_, err = NewPostgresStore(db).ListForDay(context.Background(), at(0, 0), at(23, 0))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
