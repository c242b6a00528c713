package course

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryhan5/aicademy/internal/testutil"
)

func TestDBRepository_FindByID(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		want      *Course
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "topic", "content", "created_at", "updated_at"}).
					AddRow("c1", "React", "React is a UI library.", now, now)
				mock.ExpectQuery("SELECT id, topic, content, created_at, updated_at FROM courses WHERE id = \\?").
					WithArgs("c1").
					WillReturnRows(rows)
			},
			want: &Course{ID: "c1", Topic: "React", Content: "React is a UI library.", CreatedAt: now, UpdatedAt: now},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT .* FROM courses WHERE id = \\?").
					WithArgs("c1").
					WillReturnRows(sqlmock.NewRows([]string{"id", "topic", "content", "created_at", "updated_at"}))
			},
			wantErr: ErrNotFound,
		},
		{
			name: "db error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT .* FROM courses WHERE id = \\?").
					WithArgs("c1").
					WillReturnError(fmt.Errorf("connection refused"))
			},
			wantErr: fmt.Errorf("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			repo := NewDBRepository(sqlx.NewDb(db, "mysql"))
			tt.setupMock(mock)

			got, err := repo.FindByID(context.Background(), "c1")
			if tt.wantErr != nil {
				assert.ErrorContains(t, err, tt.wantErr.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewDBRepository(testutil.NewSQLiteDB(t))

	_, err := repo.Create(ctx, "   ", "")
	assert.Error(t, err)

	created, err := repo.Create(ctx, " Go concurrency ", "Goroutines and channels.")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Go concurrency", created.Topic)

	got, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Topic, got.Topic)
	assert.Equal(t, created.Content, got.Content)

	courses, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, created.ID, courses[0].ID)
}
