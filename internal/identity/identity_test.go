package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/storage"
)

func newService() *Service {
	return &Service{
		Users:    storage.NewMemoryStore().Users(),
		Sessions: NewMemorySessions(),
		Tokens:   NewTokenIssuer("test-secret", time.Hour),
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newService()
	ctx := context.Background()

	cases := []struct {
		name                             string
		email, password, nm, role, phone string
	}{
		{"bad email", "nope", "secret1", "A", "passenger", ""},
		{"short password", "a@example.com", "123", "A", "passenger", ""},
		{"empty name", "a@example.com", "secret1", "", "passenger", ""},
		{"unknown role", "a@example.com", "secret1", "A", "pilot", ""},
		{"driver without phone", "a@example.com", "secret1", "A", "driver", ""},
	}
	for _, tc := range cases {
		if _, err := s.Register(ctx, tc.email, tc.password, tc.nm, tc.role, tc.phone); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newService()
	ctx := context.Background()

	if _, err := s.Register(ctx, "a@example.com", "secret1", "A", "passenger", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.Register(ctx, "A@Example.com", "secret1", "A2", "driver", "555"); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestLoginVerifyLogout(t *testing.T) {
	s := newService()
	ctx := context.Background()

	u, err := s.Register(ctx, "d@example.com", "secret1", "Dana", "driver", "555-0101")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, _, err := s.Login(ctx, "d@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	v, err := s.Verify(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.UserID != u.ID || v.Role != models.RoleDriver {
		t.Fatalf("bad verdict: %+v", v)
	}

	if err := s.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := s.Verify(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after logout, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	s := newService()
	ctx := context.Background()
	s.Register(ctx, "a@example.com", "secret1", "A", "passenger", "")

	if _, _, err := s.Login(ctx, "a@example.com", "wrong"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, _, err := s.Login(ctx, "missing@example.com", "secret1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for unknown user, got %v", err)
	}
}

func TestVerifyExpiredSession(t *testing.T) {
	s := newService()
	ctx := context.Background()
	u, _ := s.Register(ctx, "a@example.com", "secret1", "A", "passenger", "")

	token, err := s.Tokens.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// session already past its deadline
	s.Sessions.Put(ctx, token, u.ID, -time.Second)

	if _, err := s.Verify(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired session, got %v", err)
	}
}

func TestVerifyTokenWithoutSession(t *testing.T) {
	s := newService()
	ctx := context.Background()
	u, _ := s.Register(ctx, "a@example.com", "secret1", "A", "passenger", "")

	// signed but never logged in
	token, _ := s.Tokens.Issue(u)
	if _, err := s.Verify(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated without session, got %v", err)
	}
}

func TestDeactivateKillsVerify(t *testing.T) {
	s := newService()
	ctx := context.Background()
	u, _ := s.Register(ctx, "a@example.com", "secret1", "A", "passenger", "")
	token, _, _ := s.Login(ctx, "a@example.com", "secret1")

	if _, err := s.Deactivate(ctx, u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := s.Verify(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after deactivation, got %v", err)
	}
	if _, err := s.Profile(ctx, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for inactive profile, got %v", err)
	}
	if _, _, err := s.Login(ctx, "a@example.com", "secret1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated login for inactive user, got %v", err)
	}
}

func TestPasswordNotStoredPlain(t *testing.T) {
	s := newService()
	ctx := context.Background()
	u, _ := s.Register(ctx, "a@example.com", "secret1", "A", "passenger", "")
	if u.PasswordHash == "secret1" || u.PasswordHash == "" {
		t.Fatalf("password stored badly: %q", u.PasswordHash)
	}
}
