package visitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for visitor records. The service
// enforces lifecycle invariants on top of these primitives.
type Repository interface {
	ListAll(ctx context.Context) ([]Record, error)
	// ListByDateRange filters on created_at within [start, end] inclusive;
	// zero time values leave that bound open. The projection omits the image
	// and OCR bookkeeping fields.
	ListByDateRange(ctx context.Context, start, end time.Time) ([]Record, error)
	GetByID(ctx context.Context, id string) (Record, error)
	// FindOpen returns the open visit for an identification, nil when none.
	FindOpen(ctx context.Context, identification string) (*Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	// Checkout conditionally closes an open visit and reports rows affected;
	// zero rows on an existing record means it was already checked out.
	Checkout(ctx context.Context, id string, at time.Time, stay string) (int64, error)
	// Delete removes a record and reports rows affected.
	Delete(ctx context.Context, id string) (int64, error)
}

// PostgresRepository persists visitor records in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const visitorColumns = `id, identification, firstname, surname, birth_date, age, gender,
	checkin, checkout, stay, purpose, where_from, where_to, image, ocr_success, ocr_message,
	created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var stay sql.NullString
	err := row.Scan(
		&rec.ID, &rec.Identification, &rec.Firstname, &rec.Surname, &rec.BirthDate,
		&rec.Age, &rec.Gender, &rec.Checkin, &rec.Checkout, &stay,
		&rec.Purpose, &rec.WhereFrom, &rec.WhereTo, &rec.Image,
		&rec.OCRSuccess, &rec.OCRMessage, &rec.CreatedAt, &rec.UpdatedAt,
	)
	rec.Stay = stay.String
	return rec, err
}

// ListAll returns every record, newest created_at first.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list visitors failed: %w", err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ListByDateRange returns records created within the range, newest first.
// The image and OCR fields stay out of this projection so report exports do
// not drag base64 blobs along.
func (r *PostgresRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]Record, error) {
	query := `
		SELECT id, identification, firstname, surname, birth_date, age, gender,
			checkin, checkout, stay, purpose, where_from, where_to, created_at, updated_at
		FROM visitors`
	args := []any{}
	clauses := []string{}
	if !start.IsZero() {
		args = append(args, start)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !end.IsZero() {
		args = append(args, end)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visitors by range failed: %w", err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		var stay sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.Identification, &rec.Firstname, &rec.Surname, &rec.BirthDate,
			&rec.Age, &rec.Gender, &rec.Checkin, &rec.Checkout, &stay,
			&rec.Purpose, &rec.WhereFrom, &rec.WhereTo, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rec.Stay = stay.String
		res = append(res, rec)
	}
	return res, rows.Err()
}

// GetByID returns a single record.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors WHERE id = $1
	`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("fetch visitor %s failed: %w", id, err)
	}
	return rec, nil
}

// FindOpen returns the open visit for an identification, if any.
func (r *PostgresRepository) FindOpen(ctx context.Context, identification string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		WHERE identification = $1 AND checkout IS NULL
		LIMIT 1
	`, identification)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open visit failed: %w", err)
	}
	return &rec, nil
}

// Insert writes a new record, assigning its id.
func (r *PostgresRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO visitors (id, identification, firstname, surname, birth_date, age, gender,
			checkin, checkout, stay, purpose, where_from, where_to, image, ocr_success, ocr_message,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL,NULL,$9,$10,$11,$12,$13,$14,$15,$16)
	`, rec.ID, rec.Identification, rec.Firstname, rec.Surname, rec.BirthDate, rec.Age, rec.Gender,
		rec.Checkin, rec.Purpose, rec.WhereFrom, rec.WhereTo, rec.Image,
		rec.OCRSuccess, rec.OCRMessage, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("insert visitor failed: %w", err)
	}
	return rec, nil
}

// Update replaces the mutable fields of an existing record. Checkin,
// checkout, and stay are not touched here.
func (r *PostgresRepository) Update(ctx context.Context, rec Record) (Record, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE visitors
		SET identification = $2, firstname = $3, surname = $4, birth_date = $5, age = $6,
			gender = $7, purpose = $8, where_from = $9, where_to = $10, updated_at = $11
		WHERE id = $1
	`, rec.ID, rec.Identification, rec.Firstname, rec.Surname, rec.BirthDate, rec.Age,
		rec.Gender, rec.Purpose, rec.WhereFrom, rec.WhereTo, rec.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("update visitor %s failed: %w", rec.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Record{}, err
	}
	if affected == 0 {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Checkout closes an open visit. The checkout IS NULL guard makes the write
// conditional, so a raced or repeated checkout shows up as zero rows.
func (r *PostgresRepository) Checkout(ctx context.Context, id string, at time.Time, stayStr string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE visitors
		SET checkout = $2, stay = $3, updated_at = $2
		WHERE id = $1 AND checkout IS NULL
	`, id, at, stayStr)
	if err != nil {
		return 0, fmt.Errorf("checkout visitor %s failed: %w", id, err)
	}
	return res.RowsAffected()
}

// Delete removes a record.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM visitors WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete visitor %s failed: %w", id, err)
	}
	return res.RowsAffected()
}
