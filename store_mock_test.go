package lemystere

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := newStoreWithDB(db)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestStore_CreatePostErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "unique violation maps to slug conflict",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO posts`).
					WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: posts.slug (2067)"))
			},
			wantErr: ErrSlugConflict,
		},
		{
			name: "driver error passes through",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO posts`).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: sql.ErrConnDone,
		},
		{
			name: "success",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO posts`).
					WithArgs(sqlmock.AnyArg(), "hello", "Hello", nil, nil, "body", 1,
						"2026-01-01T12:00:00.000000Z", "2026-01-01T12:00:00.000000Z").
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.mock(mock)
			_, err := s.CreatePost(ctx, PostDraft{Title: "Hello", Content: "body", Published: true})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_InvalidDraftMakesNoQuery(t *testing.T) {
	s, mock := newMockStore(t)
	_, err := s.CreatePost(context.Background(), PostDraft{Title: "   "})
	require.True(t, IsValidationError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteEventNoRows(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM events WHERE id = \?`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, s.DeleteEvent(context.Background(), "missing"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListEventsBadTimestamp(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "title", "start_at", "end_at", "location", "description", "image_url", "created_at"}).
		AddRow("ev-1", "Broken", "yesterday-ish", nil, nil, nil, nil, "2026-01-01T00:00:00.000000Z")
	mock.ExpectQuery(`SELECT .* FROM events ORDER BY start_at ASC`).WillReturnRows(rows)

	_, err := s.ListEvents(context.Background())
	require.ErrorContains(t, err, "ev-1 start_at")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetPostByIDNoRows(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM posts WHERE id = \?`).
		WithArgs("abc").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetPostByID(context.Background(), "abc")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdatePostConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE posts SET`).
		WillReturnError(errors.New("UNIQUE constraint failed: posts.slug"))

	_, err := s.UpdatePost(context.Background(), "p1", PostDraft{Title: "T", Slug: "taken", Content: "c"})
	require.ErrorIs(t, err, ErrSlugConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
