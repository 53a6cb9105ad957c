// Package auth verifies bearer JWTs issued by the identity provider and
// carries the authenticated user ID through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/quotereality/internal/errs"
)

// Leeway tolerated on exp/nbf/iat checks.
const Leeway = 30 * time.Second

// Verifier validates HS256 access tokens and yields their subject.
type Verifier struct {
	key      []byte
	issuer   string
	audience string
}

// NewVerifier constructs a Verifier. Empty issuer or audience disables that check.
func NewVerifier(key []byte, issuer, audience string) *Verifier {
	return &Verifier{key: key, issuer: issuer, audience: audience}
}

// Verify parses tok and returns the subject as the user ID.
func (v *Verifier) Verify(tok string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.key, nil
	}, v.parserOptions()...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", fmt.Errorf("%w: empty subject", errs.ErrUnauthorized)
	}
	return sub, nil
}

func (v *Verifier) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithLeeway(Leeway), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	return opts
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	v := strings.TrimSpace(header)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: no bearer token", errs.ErrUnauthorized)
}

// Issuer mints access tokens. The server only uses it for local development tokens.
type Issuer struct {
	key      []byte
	ttl      time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(key []byte, ttl time.Duration, issuer, audience string) *Issuer {
	return &Issuer{key: key, ttl: ttl, issuer: issuer, audience: audience, now: time.Now}
}

// Issue creates a signed HS256 JWT for the given subject.
func (i *Issuer) Issue(subject string) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", errs.ErrValidation)
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.key)
	return signed, exp, err
}

type ctxKey string

const userIDKey ctxKey = "qr.userID"

// WithUserID stores authenticated user ID in context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches user ID from context.
func UserIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
