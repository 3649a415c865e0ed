package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles understood by the system.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrExists             = errors.New("email or roll number already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("account deactivated")
)

// User is a registered account. PasswordHash never leaves the package
// boundary in API responses.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	RollNumber   string     `json:"roll_number"`
	Class        string     `json:"class"`
	Phone        *string    `json:"phone,omitempty"`
	ParentEmail  *string    `json:"parent_email,omitempty"`
	SelfieRef    *string    `json:"selfie_ref,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Patch holds optional profile updates; nil means leave as-is.
type Patch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *string
	Class        *string
	Phone        *string
	ParentEmail  *string
	SelfieRef    *string
}

// Service handles registration and credential checks.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// RegisterInput is the validated registration payload.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Role        string
	RollNumber  string
	Class       string
	Phone       *string
	ParentEmail *string
}

// Register hashes the password and creates the account. Role defaults to
// student when empty.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	role := in.Role
	if role == "" {
		role = RoleStudent
	}
	if role != RoleStudent && role != RoleTeacher && role != RoleAdmin {
		return User{}, errors.New("unknown role: " + role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Insert(ctx, User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         role,
		RollNumber:   in.RollNumber,
		Class:        in.Class,
		Phone:        in.Phone,
		ParentEmail:  in.ParentEmail,
	})
}

// Authenticate verifies credentials and stamps last login.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !u.IsActive {
		return User{}, ErrInactive
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	now := time.Now().UTC()
	_ = s.repo.TouchLogin(ctx, u.ID, now)
	u.LastLogin = &now
	return u, nil
}

// Get returns an account, active or not.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetActive returns an account only when it is active.
func (s *Service) GetActive(ctx context.Context, id string) (User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !u.IsActive {
		return User{}, ErrInactive
	}
	return u, nil
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Update applies a profile patch, hashing a new password when present.
func (s *Service) Update(ctx context.Context, id string, p Patch, newPassword *string) (User, error) {
	if newPassword != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*newPassword), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		h := string(hash)
		p.PasswordHash = &h
	}
	return s.repo.Update(ctx, id, p)
}

// Deactivate soft-deletes an account.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}
