package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartattend/internal/device"
	"smartattend/internal/qrtoken"
	"smartattend/internal/selfie"
	"smartattend/internal/user"
)

// IdentityStore resolves the requesting account.
type IdentityStore interface {
	GetActive(ctx context.Context, userID string) (user.User, error)
}

// DeviceRegistry checks device bindings and records usage.
type DeviceRegistry interface {
	Lookup(ctx context.Context, deviceID string) (device.Binding, error)
	Touch(ctx context.Context, deviceID string, at time.Time) error
}

// TokenDecoder validates QR session tokens.
type TokenDecoder interface {
	Decode(token string) (qrtoken.Session, error)
}

// Appender is the Ledger's write side.
type Appender interface {
	Append(ctx context.Context, rec Record) (Record, error)
}

// MarkInput is a validated mark-attendance request.
type MarkInput struct {
	UserID    string
	QRToken   string
	DeviceID  string
	SelfieRef *string
	ClassHint string
}

// Service validates a mark-attendance request end-to-end and produces exactly
// one Record, or fails without a Ledger write.
type Service struct {
	identity IdentityStore
	devices  DeviceRegistry
	tokens   TokenDecoder
	ledger   Appender
	verifier selfie.Verifier

	selfieVerify bool
	grace        time.Duration
	log          *zap.Logger
	now          func() time.Time
}

// NewService wires the verification pipeline. grace is how long after the
// session opens a mark still counts as present rather than late.
func NewService(identity IdentityStore, devices DeviceRegistry, tokens TokenDecoder,
	ledger Appender, verifier selfie.Verifier, selfieVerify bool, grace time.Duration,
	log *zap.Logger) *Service {
	if grace <= 0 {
		grace = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		identity:     identity,
		devices:      devices,
		tokens:       tokens,
		ledger:       ledger,
		verifier:     verifier,
		selfieVerify: selfieVerify,
		grace:        grace,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Mark runs the verification workflow: device binding, session token, selfie
// (when enabled), then one atomic Ledger append. The device and token checks
// have no data dependency and run concurrently; both must pass before the
// append. On success the device's last-seen stamp is refreshed best-effort.
func (s *Service) Mark(ctx context.Context, in MarkInput) (Record, error) {
	if in.UserID == "" || in.QRToken == "" || in.DeviceID == "" {
		return Record{}, fmt.Errorf("%w: user, QR token, and device are required", ErrValidation)
	}

	u, err := s.identity.GetActive(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) || errors.Is(err, user.ErrInactive) {
			return Record{}, fmt.Errorf("%w: unknown or inactive user", ErrValidation)
		}
		markAttempts.WithLabelValues(outcomeError).Inc()
		return Record{}, storageErr(err)
	}

	var (
		binding device.Binding
		sess    qrtoken.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.devices.Lookup(gctx, in.DeviceID)
		if err != nil {
			if errors.Is(err, device.ErrNotRegistered) {
				markAttempts.WithLabelValues(outcomeDevice).Inc()
				return ErrDeviceNotRegistered
			}
			// Registry fault, not a rejection: stays retryable.
			markAttempts.WithLabelValues(outcomeError).Inc()
			return storageErr(err)
		}
		if !b.IsActive || b.UserID != u.ID {
			markAttempts.WithLabelValues(outcomeDevice).Inc()
			return ErrDeviceNotRegistered
		}
		binding = b
		return nil
	})
	g.Go(func() error {
		decoded, err := s.tokens.Decode(in.QRToken)
		if err != nil {
			markAttempts.WithLabelValues(outcomeToken).Inc()
			return ErrInvalidOrExpired
		}
		if decoded.Class != u.Class {
			markAttempts.WithLabelValues(outcomeToken).Inc()
			return fmt.Errorf("%w: session is for another class", ErrInvalidOrExpired)
		}
		if in.ClassHint != "" && in.ClassHint != decoded.Class {
			markAttempts.WithLabelValues(outcomeToken).Inc()
			return fmt.Errorf("%w: class mismatch", ErrInvalidOrExpired)
		}
		sess = decoded
		return nil
	})
	if err := g.Wait(); err != nil {
		return Record{}, err
	}

	if s.selfieVerify {
		if err := s.checkSelfie(ctx, u, in.SelfieRef); err != nil {
			markAttempts.WithLabelValues(outcomeSelfie).Inc()
			return Record{}, err
		}
	}

	now := s.now()
	status := StatusPresent
	if now.Sub(sess.IssuedAt) > s.grace {
		status = StatusLate
	}

	rec, err := s.ledger.Append(ctx, Record{
		UserID:     u.ID,
		Class:      sess.Class,
		MarkedAt:   now,
		Status:     status,
		QRCodeUsed: in.QRToken,
		DeviceID:   in.DeviceID,
		SelfieRef:  in.SelfieRef,
		Verified:   true,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateAttendance) {
			markAttempts.WithLabelValues(outcomeDuplicate).Inc()
		} else {
			markAttempts.WithLabelValues(outcomeError).Inc()
		}
		return Record{}, err
	}

	// Telemetry only; a missed stamp carries no correctness obligation.
	if err := s.devices.Touch(ctx, binding.DeviceID, now); err != nil {
		s.log.Warn("device last-seen update failed",
			zap.String("device_id", binding.DeviceID), zap.Error(err))
	}

	markAttempts.WithLabelValues(outcomeSuccess).Inc()
	s.log.Info("attendance marked",
		zap.String("user_id", u.ID),
		zap.String("class", sess.Class),
		zap.String("status", status))
	return rec, nil
}

func (s *Service) checkSelfie(ctx context.Context, u user.User, selfieRef *string) error {
	if selfieRef == nil || *selfieRef == "" {
		return fmt.Errorf("%w: selfie required", ErrSelfieFailed)
	}
	if u.SelfieRef == nil || *u.SelfieRef == "" {
		return fmt.Errorf("%w: no reference image on file", ErrSelfieFailed)
	}
	res, err := s.verifier.Verify(ctx, *selfieRef, *u.SelfieRef)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSelfieFailed, err)
	}
	if !res.Match {
		return ErrSelfieFailed
	}
	return nil
}
