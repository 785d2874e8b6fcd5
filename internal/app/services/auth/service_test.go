package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stampd-app/stampd/internal/app/domain/session"
	"github.com/stampd-app/stampd/internal/app/storage/memory"
)

const testSecret = "test-secret-at-least-16-bytes"

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := New(store, store, []byte(testSecret), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func TestNew_RejectsShortSecret(t *testing.T) {
	store := memory.New()
	if _, err := New(store, store, []byte("short"), nil); err == nil {
		t.Fatalf("expected error for short secret")
	}
}

func TestSignUp_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "not-an-email", "password123", session.AccountCustomer); err == nil {
		t.Fatalf("expected error for bad email")
	}
	if _, err := svc.SignUp(ctx, "a@b.com", "short", session.AccountCustomer); err == nil {
		t.Fatalf("expected error for short password")
	}
	if _, err := svc.SignUp(ctx, "a@b.com", "password123", "admin"); err == nil {
		t.Fatalf("expected error for unknown account type")
	}

	user, err := svc.SignUp(ctx, "  A@B.com ", "password123", session.AccountBusiness)
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Email != "a@b.com" || user.AccountType != session.AccountBusiness {
		t.Fatalf("unexpected user: %#v", user)
	}
	if user.PasswordHash == "password123" || user.PasswordHash == "" {
		t.Fatalf("password stored unhashed")
	}
}

func TestSignInAuthenticateSignOut(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "a@b.com", "password123", session.AccountCustomer)
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	if _, _, err := svc.SignIn(ctx, "a@b.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "nobody@b.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	token, signedIn, err := svc.SignIn(ctx, "a@b.com", "password123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if token == "" || signedIn.ID != user.ID {
		t.Fatalf("unexpected sign-in result")
	}

	identity, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.UserID != user.ID || identity.AccountType != session.AccountCustomer {
		t.Fatalf("unexpected identity: %#v", identity)
	}

	if err := svc.SignOut(ctx, token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after sign-out, got %v", err)
	}

	// Signing out again is a no-op.
	if err := svc.SignOut(ctx, token); err != nil {
		t.Fatalf("repeat sign out: %v", err)
	}
}

func TestAuthenticate_RejectsGarbageToken(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Authenticate(context.Background(), "not.a.jwt"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestAuthenticate_ExpiredSession(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "a@b.com", "password123", session.AccountCustomer); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	// Issue the session in the past so it is already expired.
	svc.now = func() time.Time { return time.Now().UTC().Add(-48 * time.Hour) }
	token, _, err := svc.SignIn(ctx, "a@b.com", "password123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	svc.now = func() time.Time { return time.Now().UTC() }
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "a@b.com", "password123", session.AccountCustomer)
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := store.CreateSession(ctx, session.Session{
		UserID:    user.ID,
		TokenHash: "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("seed stale session: %v", err)
	}

	removed, err := svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}
