// Package qrtoken issues and validates the short-lived class-session tokens
// encoded into the QR codes students scan. The token is the session: its
// issue time marks the session start and its expiry bounds the scan window.
package qrtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid covers expired, malformed, or tampered session tokens.
var ErrInvalid = errors.New("invalid or expired session token")

// Session is the decoded content of a QR session token.
type Session struct {
	Class     string
	TeacherID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	Class string `json:"class"`
	jwt.RegisteredClaims
}

const audience = "qr-session"

// Issuer signs session tokens with a dedicated HS256 key.
type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer creates an issuer. ttl bounds how long an issued code scans.
func NewIssuer(key, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Issuer{key: []byte(key), issuer: issuer, ttl: ttl}
}

// TTL reports the configured validity window.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for a class session opened by the given teacher.
func (i *Issuer) Issue(class, teacherID string, now time.Time) (string, Session, error) {
	sess := Session{
		Class:     class,
		TeacherID: teacherID,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	claims := sessionClaims{
		Class: class,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   teacherID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", Session{}, err
	}
	return signed, sess, nil
}

// Decode validates a token and returns its session. Expiry, signature, and
// audience failures all collapse to ErrInvalid; callers get no distinction a
// client could probe.
func (i *Issuer) Decode(token string) (Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithAudience(audience))
	if err != nil {
		return Session{}, ErrInvalid
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.Class == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Session{}, ErrInvalid
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Session{}, ErrInvalid
	}
	return Session{
		Class:     claims.Class,
		TeacherID: claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
