package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/storage"
)

var (
	// ErrUnauthenticated covers missing, malformed, expired and revoked
	// credentials alike; callers get no finer detail.
	ErrUnauthenticated = errors.New("invalid or expired credentials")

	// ErrDuplicateEmail is returned by Register for a taken address.
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrValidation marks malformed registration input.
	ErrValidation = errors.New("invalid input")

	// ErrUserNotFound is returned by profile and admin lookups.
	ErrUserNotFound = errors.New("user not found")
)

const minPasswordLen = 6

// Verdict is what the rest of the system learns about a caller. Other
// components trust it verbatim for authorization.
type Verdict struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
}

// Service issues and validates credentials. A valid credential is a signed
// token with a matching live session and an active account behind it.
type Service struct {
	Users    storage.UserStore
	Sessions SessionStore
	Tokens   *TokenIssuer
}

// Register creates an account. Drivers must supply a phone number so
// passengers can reach them after confirmation.
func (s *Service) Register(ctx context.Context, email, password, name, role, phone string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email required", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}
	r, ok := models.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if r == models.RoleDriver && strings.TrimSpace(phone) == "" {
		return nil, fmt.Errorf("%w: phone number is required for drivers", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         r,
		Phone:        strings.TrimSpace(phone),
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := s.Users.Insert(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return u, nil
}

// Login checks the password and opens a session bound to a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (token string, u *models.User, err error) {
	u, err = s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrUnauthenticated
		}
		return "", nil, err
	}
	if !u.Active {
		return "", nil, ErrUnauthenticated
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrUnauthenticated
	}
	token, err = s.Tokens.Issue(u)
	if err != nil {
		return "", nil, err
	}
	if err := s.Sessions.Put(ctx, token, u.ID, s.Tokens.TTL()); err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Logout revokes the session; the token is dead even before its signed
// expiry.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.Sessions.Delete(ctx, token)
}

// Verify validates a bearer token: signature, live session, active account.
// Any failure collapses to ErrUnauthenticated.
func (s *Service) Verify(ctx context.Context, token string) (*Verdict, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	userID, ok, err := s.Sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok || userID != claims.UserID {
		return nil, ErrUnauthenticated
	}
	u, err := s.Users.Get(ctx, claims.UserID)
	if err != nil || !u.Active {
		return nil, ErrUnauthenticated
	}
	return &Verdict{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}, nil
}

// Profile returns the public fields of an active account.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.Users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// ListUsers returns every account, newest first. Admin only; the handler
// gates on role.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.Users.List(ctx)
}

// Deactivate disables an account. Existing sessions die on the next Verify.
func (s *Service) Deactivate(ctx context.Context, userID string) (*models.User, error) {
	ok, err := s.Users.SetActive(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.Users.Get(ctx, userID)
}

func newID() string { b := make([]byte, 12); _, _ = rand.Read(b); return hex.EncodeToString(b) }
