// Package auth issues and verifies bearer credentials and answers role
// questions about the authenticated caller.  Roles are always read from the
// user store, never from token claims.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

// TokenTTL is the fixed validity window of every issued credential.
const TokenTTL = time.Hour

// Identity is the decoded payload of a verified credential.  Email is the
// lower-cased caller email; Claims holds every claim as issued.
type Identity struct {
	Email  string
	Claims jwt.MapClaims
}

// RoleLookup is the part of the user store the gate needs.
type RoleLookup interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
}

// Gate verifies HS256 credentials signed with a server-held secret.
type Gate struct {
	secret []byte
	users  RoleLookup
	now    func() time.Time
}

// NewGate returns a Gate.  users may be nil when only Issue/Authenticate are
// needed; role checks then always report false.
func NewGate(secret string, users RoleLookup) *Gate {
	return &Gate{secret: []byte(secret), users: users, now: time.Now}
}

// Issue signs claims into a credential valid for TokenTTL.  Caller-supplied
// exp, iat and nbf are overwritten.  The issuing endpoint is unauthenticated,
// so whoever can reach it can mint a credential for any email.
func (g *Gate) Issue(claims map[string]any) (string, time.Time, error) {
	email, _ := claims["email"].(string)
	if strings.TrimSpace(email) == "" {
		return "", time.Time{}, apperr.New(apperr.KindInvalidInput, "email claim is required")
	}
	now := g.now().UTC()
	exp := now.Add(TokenTTL)

	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	delete(mc, "nbf")
	mc["email"] = strings.ToLower(strings.TrimSpace(email))
	mc["iat"] = now.Unix()
	mc["exp"] = exp.Unix()

	// Create a new token object specifying the signing method (HS256).
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.KindInternal, "could not sign token", err)
	}
	return signed, exp, nil
}

// Authenticate verifies an Authorization header value.  The header is split
// on whitespace and the second field is the credential.  Any failure is
// reported as unauthorized without detail.
func (g *Gate) Authenticate(header string) (Identity, error) {
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return Identity{}, apperr.New(apperr.KindUnauthorized, "unauthorized access")
	}
	raw := fields[1]

	// Only HMAC-SHA256 is accepted and exp must be present.
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !tok.Valid {
		return Identity{}, apperr.Wrap(apperr.KindUnauthorized, "unauthorized access", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, apperr.New(apperr.KindUnauthorized, "unauthorized access")
	}
	email, _ := claims["email"].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Identity{}, apperr.New(apperr.KindUnauthorized, "unauthorized access")
	}
	return Identity{Email: email, Claims: claims}, nil
}

// IsAdmin reports whether email belongs to the caller and is stored with the
// admin role.  Asking about another user's email yields false without a
// store lookup.
func (g *Gate) IsAdmin(ctx context.Context, id Identity, email string) (bool, error) {
	return g.HasRole(ctx, id, email, model.RoleAdmin)
}

// IsInstructor is IsAdmin for the instructor role.
func (g *Gate) IsInstructor(ctx context.Context, id Identity, email string) (bool, error) {
	return g.HasRole(ctx, id, email, model.RoleInstructor)
}

// HasRole is the shared self-scoped check behind IsAdmin and IsInstructor.
// An unknown user is not an error; it simply has no role.
func (g *Gate) HasRole(ctx context.Context, id Identity, email string, role model.Role) (bool, error) {
	if id.Email == "" || id.Email != strings.ToLower(strings.TrimSpace(email)) || g.users == nil {
		return false, nil
	}
	return g.storedRoleIs(ctx, id.Email, role)
}

// RoleOf returns the stored role of the caller, or RoleNone when the caller
// has never registered.
func (g *Gate) RoleOf(ctx context.Context, id Identity) (model.Role, error) {
	if g.users == nil || id.Email == "" {
		return model.RoleNone, nil
	}
	u, err := g.users.FindByEmail(ctx, id.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return model.RoleNone, nil
	}
	if err != nil {
		return model.RoleNone, err
	}
	return u.Role, nil
}

func (g *Gate) storedRoleIs(ctx context.Context, email string, role model.Role) (bool, error) {
	got, err := g.RoleOf(ctx, Identity{Email: email})
	if err != nil {
		return false, err
	}
	return got == role, nil
}
