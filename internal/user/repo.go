package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists users in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, name, email, password_hash, role, roll_number, class, phone, parent_email, selfie_ref, last_login, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.RollNumber,
		&u.Class, &u.Phone, &u.ParentEmail, &u.SelfieRef, &u.LastLogin, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Insert writes a new user. Email and roll number are unique; collisions
// surface as ErrExists.
func (r *Repository) Insert(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, roll_number, class, phone, parent_email)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.RollNumber, u.Class, u.Phone, u.ParentEmail)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrExists
		}
		return User{}, err
	}
	u.IsActive = true
	return u, nil
}

// GetByID returns a user by id.
func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// List returns all users ordered by roll number.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY roll_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update applies a profile patch. Nil fields are left untouched.
func (r *Repository) Update(ctx context.Context, id string, p Patch) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			name          = COALESCE($2, name),
			email         = COALESCE($3, email),
			password_hash = COALESCE($4, password_hash),
			role          = COALESCE($5, role),
			class         = COALESCE($6, class),
			phone         = COALESCE($7, phone),
			parent_email  = COALESCE($8, parent_email),
			selfie_ref    = COALESCE($9, selfie_ref),
			updated_at    = NOW()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, id, p.Name, p.Email, p.PasswordHash, p.Role, p.Class, p.Phone, p.ParentEmail, p.SelfieRef)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if isUniqueViolation(err) {
		return User{}, ErrExists
	}
	return u, err
}

// Deactivate soft-deletes a user; records and bindings are kept.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLogin stamps the last successful login time. Best effort.
func (r *Repository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
