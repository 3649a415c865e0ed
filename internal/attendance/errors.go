package attendance

import "errors"

// The verification error taxonomy. Handlers map these to stable HTTP
// statuses; everything unlisted is an internal fault.
var (
	ErrDeviceNotRegistered = errors.New("device not registered")
	ErrInvalidOrExpired    = errors.New("invalid or expired QR code")
	ErrSelfieFailed        = errors.New("selfie verification failed")
	ErrDuplicateAttendance = errors.New("attendance already marked for today")
	ErrNotFound            = errors.New("attendance record not found")
	ErrValidation          = errors.New("invalid request")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)
