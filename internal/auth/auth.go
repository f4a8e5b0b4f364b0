package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/therapy-booking/internal/booking"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey string

const callerKey contextKey = "caller"

// Claims are issued by the practice's identity service. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type Config struct {
	Secret []byte
	Issuer string
}

// Authenticator validates HS256 bearer tokens.
type Authenticator struct {
	cfg Config
	now func() time.Time
}

func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &Authenticator{cfg: cfg, now: time.Now}, nil
}

// Parse validates a raw token and returns the caller it identifies.
func (a *Authenticator) Parse(tokenStr string) (booking.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.cfg.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return booking.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return booking.Caller{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	role := booking.Role(claims.Role)
	if role != booking.RolePatient && role != booking.RoleAdmin {
		return booking.Caller{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return booking.Caller{ID: id, Role: role}, nil
}

// ParseHeader accepts an Authorization header value of the form "Bearer <token>".
func (a *Authenticator) ParseHeader(header string) (booking.Caller, error) {
	if header == "" {
		return booking.Caller{}, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return booking.Caller{}, fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	return a.Parse(strings.TrimSpace(token))
}

// Issue mints a token for caller. Used by tooling and tests; production
// tokens come from the identity service.
func (a *Authenticator) Issue(caller booking.Caller, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID.String(),
			Issuer:    a.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(caller.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.Secret)
}

func WithCaller(ctx context.Context, c booking.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func CallerFrom(ctx context.Context) (booking.Caller, bool) {
	c, ok := ctx.Value(callerKey).(booking.Caller)
	return c, ok
}
