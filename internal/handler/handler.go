// Package handler holds the gin HTTP handlers and the single place where
// error kinds become HTTP statuses.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartattend/internal/attendance"
	"smartattend/internal/device"
	"smartattend/internal/qrtoken"
	"smartattend/internal/user"
)

// UserService is the account surface handlers need.
type UserService interface {
	Register(ctx context.Context, in user.RegisterInput) (user.User, error)
	Authenticate(ctx context.Context, email, password string) (user.User, error)
	Get(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, id string, p user.Patch, newPassword *string) (user.User, error)
	Deactivate(ctx context.Context, id string) error
}

// DeviceService binds devices to users.
type DeviceService interface {
	Register(ctx context.Context, userID, deviceID, name string, ip *string) (device.Binding, error)
}

// QRIssuer opens class sessions.
type QRIssuer interface {
	Issue(class, teacherID string, now time.Time) (string, qrtoken.Session, error)
}

// MarkService runs the verification workflow.
type MarkService interface {
	Mark(ctx context.Context, in attendance.MarkInput) (attendance.Record, error)
}

// LedgerReader is the Ledger's query and maintenance surface.
type LedgerReader interface {
	GetByID(ctx context.Context, id string) (attendance.Record, error)
	List(ctx context.Context, f attendance.Filter) ([]attendance.Record, error)
	Update(ctx context.Context, id string, p attendance.Patch) (attendance.Record, error)
	Delete(ctx context.Context, id string) error
}

// Publisher pushes post-mark notifications to the worker.
type Publisher interface {
	Publish(ctx context.Context, typ string, body []byte) error
}

// Handler carries the wired services.
type Handler struct {
	users   UserService
	devices DeviceService
	qr      QRIssuer
	marks   MarkService
	ledger  LedgerReader
	notify  Publisher
	log     *zap.Logger

	jwtIssuer string
	jwtKey    string
	accessTTL time.Duration
}

// New creates a handler set. notify may be nil when no queue is configured.
func New(users UserService, devices DeviceService, qr QRIssuer, marks MarkService,
	ledger LedgerReader, notify Publisher, jwtIssuer, jwtKey string,
	accessTTL time.Duration, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		users:     users,
		devices:   devices,
		qr:        qr,
		marks:     marks,
		ledger:    ledger,
		notify:    notify,
		log:       log,
		jwtIssuer: jwtIssuer,
		jwtKey:    jwtKey,
		accessTTL: accessTTL,
	}
}

// timeNow is swapped out in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// fail writes the stable error shape: HTTP status plus machine-readable kind
// and human message. Unrecognized errors become an opaque 500.
func (h *Handler) fail(c *gin.Context, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, attendance.ErrValidation):
		return http.StatusBadRequest, "ValidationError"
	case errors.Is(err, attendance.ErrDeviceNotRegistered), errors.Is(err, device.ErrNotRegistered):
		return http.StatusBadRequest, "DeviceNotRegistered"
	case errors.Is(err, attendance.ErrInvalidOrExpired):
		return http.StatusBadRequest, "InvalidOrExpiredToken"
	case errors.Is(err, attendance.ErrSelfieFailed):
		return http.StatusBadRequest, "SelfieVerificationFailed"
	case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, user.ErrInactive):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, attendance.ErrDuplicateAttendance):
		return http.StatusConflict, "DuplicateAttendance"
	case errors.Is(err, user.ErrExists), errors.Is(err, device.ErrBoundElsewhere):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, attendance.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "StorageUnavailable"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}
