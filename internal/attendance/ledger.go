package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Record is one attendance entry. UserID and QRCodeUsed are immutable after
// creation; QRCodeUsed is kept for audit, not as a live token reference.
type Record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Class      string    `json:"class"`
	MarkedAt   time.Time `json:"marked_at"`
	Status     string    `json:"status"`
	QRCodeUsed string    `json:"qr_code_used"`
	DeviceID   string    `json:"device_id"`
	SelfieRef  *string   `json:"selfie_ref,omitempty"`
	Verified   bool      `json:"verified"`
	Remarks    string    `json:"remarks"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Record statuses.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

func validStatus(s string) bool {
	return s == StatusPresent || s == StatusAbsent || s == StatusLate
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	UserID string
	Class  string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Patch holds the fields an explicit update may touch. Everything else on a
// record is immutable post-creation.
type Patch struct {
	Status   *string
	Remarks  *string
	Verified *bool
}

// Ledger is the durable attendance store. The one-record-per-user-per-class-
// per-day invariant is enforced by a unique index in Postgres, so concurrent
// appends across any number of API instances stay linearizable without an
// application lock.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger over an open Postgres handle.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

const recordColumns = `id, user_id, class, marked_at, status, qr_code_used, device_id, selfie_ref, verified, remarks, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Class, &rec.MarkedAt, &rec.Status,
		&rec.QRCodeUsed, &rec.DeviceID, &rec.SelfieRef, &rec.Verified, &rec.Remarks,
		&rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

// Append inserts a new record. The check-and-insert is a single statement;
// a same-day record for the same user and class fails with
// ErrDuplicateAttendance via the unique index, never a silent overwrite.
func (l *Ledger) Append(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	row := l.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, user_id, class, marked_at, status, qr_code_used, device_id, selfie_ref, verified, remarks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at
	`, rec.ID, rec.UserID, rec.Class, rec.MarkedAt, rec.Status, rec.QRCodeUsed,
		rec.DeviceID, rec.SelfieRef, rec.Verified, rec.Remarks)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return Record{}, ErrDuplicateAttendance
		}
		return Record{}, storageErr(err)
	}
	return rec, nil
}

// GetByID returns one record.
func (l *Ledger) GetByID(ctx context.Context, id string) (Record, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, storageErr(err)
	}
	return rec, nil
}

// List returns records matching the filter, newest first. Re-issuing the
// same filter restarts the sequence.
func (l *Ledger) List(ctx context.Context, f Filter) ([]Record, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if f.UserID != "" {
		args = append(args, f.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Class != "" {
		args = append(args, f.Class)
		clauses = append(clauses, fmt.Sprintf("class = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		clauses = append(clauses, fmt.Sprintf("marked_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		clauses = append(clauses, fmt.Sprintf("marked_at < $%d", len(args)))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += fmt.Sprintf(" ORDER BY marked_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Update applies an explicit patch. Disallowed fields are simply not part of
// Patch, so user_id and qr_code_used cannot change here.
func (l *Ledger) Update(ctx context.Context, id string, p Patch) (Record, error) {
	if p.Status != nil && !validStatus(*p.Status) {
		return Record{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
	}
	row := l.db.QueryRowContext(ctx, `
		UPDATE attendance_records SET
			status     = COALESCE($2, status),
			remarks    = COALESCE($3, remarks),
			verified   = COALESCE($4, verified),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordColumns+`
	`, id, p.Status, p.Remarks, p.Verified)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, storageErr(err)
	}
	return rec, nil
}

// Delete removes a record. Authorization is the caller's concern.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// storageErr tags infrastructure faults so callers can answer 503 and let
// clients retry with backoff.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
