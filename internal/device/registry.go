package device

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotRegistered means no active binding exists for the device.
	ErrNotRegistered = errors.New("device not registered")
	// ErrBoundElsewhere means the device identifier belongs to another user.
	ErrBoundElsewhere = errors.New("device bound to another user")
)

// Binding ties a device identifier to exactly one user.
type Binding struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"device_name"`
	IPAddress *string   `json:"ip_address,omitempty"`
	LastUsed  time.Time `json:"last_used"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry persists device bindings in Postgres. The device_id column is
// unique system-wide, which is what keeps one device from serving two users.
type Registry struct {
	db *sql.DB
}

// NewRegistry creates a registry.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Register binds a device to a user. A user holds at most one active
// binding, so any previous device of theirs is retired in the same
// transaction. Re-registering the same pair refreshes the binding; a
// device held by a different user is rejected.
func (r *Registry) Register(ctx context.Context, userID, deviceID, name string, ip *string) (Binding, error) {
	if name == "" {
		name = "Unknown Device"
	}
	b := Binding{ID: uuid.NewString(), UserID: userID, DeviceID: deviceID, Name: name, IPAddress: ip}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Binding{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE device_bindings SET is_active = FALSE
		WHERE user_id = $1 AND device_id <> $2 AND is_active
	`, userID, deviceID); err != nil {
		return Binding{}, err
	}

	// ON CONFLICT only updates when the existing row belongs to the same
	// user; a conflict row owned by someone else yields no RETURNING row.
	row := tx.QueryRowContext(ctx, `
		INSERT INTO device_bindings (id, user_id, device_id, device_name, ip_address, last_used)
		VALUES ($1,$2,$3,$4,$5,NOW())
		ON CONFLICT (device_id) DO UPDATE SET
			device_name = EXCLUDED.device_name,
			ip_address  = COALESCE(EXCLUDED.ip_address, device_bindings.ip_address),
			last_used   = NOW(),
			is_active   = TRUE
		WHERE device_bindings.user_id = EXCLUDED.user_id
		RETURNING id, last_used, is_active, created_at
	`, b.ID, b.UserID, b.DeviceID, b.Name, b.IPAddress)
	if err := row.Scan(&b.ID, &b.LastUsed, &b.IsActive, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Binding{}, ErrBoundElsewhere
		}
		return Binding{}, err
	}
	if err := tx.Commit(); err != nil {
		return Binding{}, err
	}
	return b, nil
}

// Lookup returns the binding for a device identifier.
func (r *Registry) Lookup(ctx context.Context, deviceID string) (Binding, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, device_id, device_name, ip_address, last_used, is_active, created_at
		FROM device_bindings WHERE device_id = $1
	`, deviceID)
	var b Binding
	err := row.Scan(&b.ID, &b.UserID, &b.DeviceID, &b.Name, &b.IPAddress, &b.LastUsed, &b.IsActive, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Binding{}, ErrNotRegistered
	}
	return b, err
}

// Touch stamps last_used. Best-effort telemetry, callers may ignore the error.
func (r *Registry) Touch(ctx context.Context, deviceID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE device_bindings SET last_used = $2 WHERE device_id = $1`, deviceID, at)
	return err
}

// Deactivate retires a binding. The identifier stays reserved for audit;
// bindings are never silently reused.
func (r *Registry) Deactivate(ctx context.Context, deviceID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE device_bindings SET is_active = FALSE WHERE device_id = $1`, deviceID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotRegistered
	}
	return nil
}
