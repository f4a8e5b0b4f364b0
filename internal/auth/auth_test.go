package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/therapy-booking/internal/booking"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(Config{Secret: []byte("test-secret"), Issuer: "therapy-booking"})
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	return a
}

func TestIssueAndParse(t *testing.T) {
	a := newTestAuthenticator(t)
	want := booking.Caller{ID: uuid.New(), Role: booking.RolePatient}

	token, err := a.Issue(want, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := a.ParseHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseRejects(t *testing.T) {
	a := newTestAuthenticator(t)
	caller := booking.Caller{ID: uuid.New(), Role: booking.RoleAdmin}

	expired, _ := a.Issue(caller, -time.Minute)

	other, _ := NewAuthenticator(Config{Secret: []byte("other"), Issuer: "therapy-booking"})
	wrongKey, _ := other.Issue(caller, time.Hour)

	wrongIssuer, _ := (&Authenticator{cfg: Config{Secret: []byte("test-secret"), Issuer: "elsewhere"}, now: time.Now}).Issue(caller, time.Hour)

	badRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID.String(),
			Issuer:    "therapy-booking",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "therapist",
	}).SignedString([]byte("test-secret"))

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "therapy-booking",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "patient",
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing", "", ErrMissingToken},
		{"not bearer", "Basic abc", ErrInvalidToken},
		{"garbage", "Bearer not.a.token", ErrInvalidToken},
		{"expired", "Bearer " + expired, ErrInvalidToken},
		{"wrong key", "Bearer " + wrongKey, ErrInvalidToken},
		{"wrong issuer", "Bearer " + wrongIssuer, ErrInvalidToken},
		{"unknown role", "Bearer " + badRole, ErrInvalidToken},
		{"non uuid subject", "Bearer " + badSubject, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.ParseHeader(tt.header); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCallerContext(t *testing.T) {
	if _, ok := CallerFrom(context.Background()); ok {
		t.Error("empty context should have no caller")
	}
	c := booking.Caller{ID: uuid.New(), Role: booking.RoleAdmin}
	got, ok := CallerFrom(WithCaller(context.Background(), c))
	if !ok || got != c {
		t.Errorf("got %+v %v", got, ok)
	}
}
