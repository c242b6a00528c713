package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ryhan5/aicademy/internal/database"
)

// Repository defines the persistence operations of the generation state machine.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Record, error)
	FindByCourseAndType(ctx context.Context, courseID string, contentType ContentType) (*Record, error)
	FindByCourse(ctx context.Context, courseID string) ([]Record, error)
	// Begin moves the (course, type) record into Generating, inserting it when
	// absent and otherwise resetting it in place with a new attempt number.
	Begin(ctx context.Context, courseID string, contentType ContentType) (*Record, error)
	// Complete stores content and Ready if attempt is still the current Generating attempt.
	Complete(ctx context.Context, id string, attempt int, content json.RawMessage) error
	// Fail stores message and Error if attempt is still the current Generating attempt.
	Fail(ctx context.Context, id string, attempt int, message string) error
}

// DBRepository implements Repository over sqlx.
type DBRepository struct {
	db    *sqlx.DB
	now   func() time.Time
	newID func() string
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

const selectColumns = "SELECT id, course_id, content_type, status, content, error_message, attempt, created_at, updated_at FROM content_records"

// FindByID returns the record with id or ErrNotFound.
func (r *DBRepository) FindByID(ctx context.Context, id string) (*Record, error) {
	var rec row
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(selectColumns+" WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(content_record) > %w", err)
	}
	return rec.toRecord(), nil
}

// FindByCourseAndType returns the single record of the pair or ErrNotFound.
func (r *DBRepository) FindByCourseAndType(ctx context.Context, courseID string, contentType ContentType) (*Record, error) {
	return findByPair(ctx, r.db, courseID, contentType)
}

// FindByCourse returns every record of a course ordered by content type.
func (r *DBRepository) FindByCourse(ctx context.Context, courseID string) ([]Record, error) {
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(selectColumns+" WHERE course_id = ? ORDER BY content_type"), courseID); err != nil {
		return nil, fmt.Errorf("db.SelectContext(content_records) > %w", err)
	}
	records := make([]Record, 0, len(rows))
	for _, rw := range rows {
		records = append(records, *rw.toRecord())
	}
	return records, nil
}

// Begin implements Repository. The reset is a compare-and-swap on attempt so
// two writers racing on the same row cannot both claim the same attempt.
func (r *DBRepository) Begin(ctx context.Context, courseID string, contentType ContentType) (*Record, error) {
	const maxTries = 3

	var began *Record
	var lastErr error
	for try := 0; try < maxTries; try++ {
		err := database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
			now := r.now()
			existing, err := findByPair(ctx, tx, courseID, contentType)
			if errors.Is(err, ErrNotFound) {
				rec := &Record{
					ID:          r.newID(),
					CourseID:    courseID,
					ContentType: contentType,
					Status:      StatusGenerating,
					Content:     EmptyContent(contentType),
					Attempt:     1,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if _, err := tx.ExecContext(ctx, tx.Rebind(
					"INSERT INTO content_records (id, course_id, content_type, status, content, error_message, attempt, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
					rec.ID, rec.CourseID, rec.ContentType, rec.Status, string(rec.Content), "", rec.Attempt, rec.CreatedAt, rec.UpdatedAt,
				); err != nil {
					return fmt.Errorf("tx.ExecContext(insert content_record) > %w", err)
				}
				began = rec
				return nil
			}
			if err != nil {
				return err
			}

			next := existing.Attempt + 1
			result, err := tx.ExecContext(ctx, tx.Rebind(
				"UPDATE content_records SET status = ?, content = ?, error_message = ?, attempt = ?, updated_at = ? WHERE id = ? AND attempt = ?"),
				StatusGenerating, string(EmptyContent(contentType)), "", next, now, existing.ID, existing.Attempt,
			)
			if err != nil {
				return fmt.Errorf("tx.ExecContext(reset content_record) > %w", err)
			}
			if err := expectOneRow(result); err != nil {
				return err
			}
			existing.Status = StatusGenerating
			existing.Content = EmptyContent(contentType)
			existing.Error = ""
			existing.Attempt = next
			existing.UpdatedAt = now
			began = existing
			return nil
		})
		if err == nil {
			return began, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("begin content_record(%s, %s) > %w", courseID, contentType, lastErr)
}

// Complete implements Repository.
func (r *DBRepository) Complete(ctx context.Context, id string, attempt int, content json.RawMessage) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE content_records SET status = ?, content = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ? AND attempt = ?"),
		StatusReady, string(content), "", r.now(), id, StatusGenerating, attempt,
	)
	if err != nil {
		return fmt.Errorf("db.ExecContext(complete content_record) > %w", err)
	}
	return expectOneRow(result)
}

// Fail implements Repository.
func (r *DBRepository) Fail(ctx context.Context, id string, attempt int, message string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(
		"UPDATE content_records SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ? AND attempt = ?"),
		StatusError, message, r.now(), id, StatusGenerating, attempt,
	)
	if err != nil {
		return fmt.Errorf("db.ExecContext(fail content_record) > %w", err)
	}
	return expectOneRow(result)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

func findByPair(ctx context.Context, q queryer, courseID string, contentType ContentType) (*Record, error) {
	var rec row
	err := q.GetContext(ctx, &rec, q.Rebind(selectColumns+" WHERE course_id = ? AND content_type = ?"), courseID, contentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetContext(content_record by course and type) > %w", err)
	}
	return rec.toRecord(), nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("result.RowsAffected() > %w", err)
	}
	if n == 0 {
		return ErrStaleAttempt
	}
	return nil
}
