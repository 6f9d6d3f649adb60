/*
auth.go - Credentials, bearer tokens and the role gate

PURPOSE:
  Everything the HTTP layer needs to answer "who is calling and may they do
  this". The accounting core never sees tokens or passwords; it receives an
  already-authorized StaffMember.

FLOW:
  1. Authenticator.Authenticate checks username + password (bcrypt) and
     refuses deactivated accounts.
  2. TokenIssuer.Issue signs an HS256 JWT: sub = staff id, role claim.
  3. On each request TokenIssuer.Parse recovers the Identity; the caller
     reloads the account so deactivation and reassignment apply at once.
  4. Authorize compares the identity's role with the route's role.

ERRORS:
  Bad credentials, inactive accounts and bad tokens all map to
  ledger.ErrUnauthenticated. Role mismatches map to ledger.ErrForbidden.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/sbu-ledger/ledger"
	"golang.org/x/crypto/bcrypt"
)

// Identity is the authenticated caller.
type Identity struct {
	StaffID  ledger.StaffID
	Username string
	Role     ledger.Role
}

// =============================================================================
// PASSWORDS
// =============================================================================

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is required", ledger.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticator verifies login credentials against the staff registry.
type Authenticator struct {
	staff ledger.StaffReader
}

func NewAuthenticator(staff ledger.StaffReader) *Authenticator {
	return &Authenticator{staff: staff}
}

// Authenticate returns the identity for valid credentials of an active account.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	member, err := a.staff.GetStaffByUsername(ctx, username)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup staff: %w", err)
	}
	if member == nil {
		return Identity{}, fmt.Errorf("%w: incorrect username or password", ledger.ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		return Identity{}, fmt.Errorf("%w: incorrect username or password", ledger.ErrUnauthenticated)
	}
	if !member.Active {
		return Identity{}, fmt.Errorf("%w: account is deactivated", ledger.ErrUnauthenticated)
	}
	return Identity{StaffID: member.ID, Username: member.Username, Role: member.Role}, nil
}

// =============================================================================
// TOKENS
// =============================================================================

// Claims is the JWT payload.
type Claims struct {
	Username string      `json:"username"`
	Role     ledger.Role `json:"role"`
	jwt.RegisteredClaims
}

const issuer = "sbu-ledger"

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. A non-positive ttl defaults to one hour.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns how long issued tokens stay valid.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a token for id.
func (t *TokenIssuer) Issue(id Identity) (string, error) {
	now := t.now()
	claims := &Claims{
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(id.StaffID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry and returns the identity.
func (t *TokenIssuer) Parse(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, fmt.Errorf("%w: token is expired", ledger.ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Identity{}, fmt.Errorf("%w: token is malformed", ledger.ErrUnauthenticated)
		}
		return Identity{}, fmt.Errorf("%w: %v", ledger.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: invalid token", ledger.ErrUnauthenticated)
	}

	return Identity{
		StaffID:  ledger.StaffID(claims.Subject),
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// =============================================================================
// ROLE GATE
// =============================================================================

// Authorize fails with ErrForbidden unless id holds the required role.
func Authorize(id Identity, required ledger.Role) error {
	if id.Role != required {
		return fmt.Errorf("%w: %s access required", ledger.ErrForbidden, required)
	}
	return nil
}
