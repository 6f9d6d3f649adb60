package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/sbu-ledger/ledger"
	"github.com/warp/sbu-ledger/ledger/store"
)

const secret = "unit-test-signing-secret"

func seedAccount(t *testing.T, mem *store.Memory, username, password string, active bool) {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, mem.SaveStaff(context.Background(), ledger.StaffMember{
		ID: ledger.StaffID("id-" + username), FullName: username, Username: username,
		PasswordHash: hash, Role: ledger.RoleStaff, Active: active,
	}))
}

func TestAuthenticate(t *testing.T) {
	mem := store.NewMemory()
	seedAccount(t, mem, "kemi", "s3cret!", true)
	seedAccount(t, mem, "old", "s3cret!", false)
	a := NewAuthenticator(mem)
	ctx := context.Background()

	id, err := a.Authenticate(ctx, "kemi", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, ledger.StaffID("id-kemi"), id.StaffID)
	assert.Equal(t, ledger.RoleStaff, id.Role)

	_, err = a.Authenticate(ctx, "kemi", "wrong")
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)

	_, err = a.Authenticate(ctx, "nobody", "s3cret!")
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)

	_, err = a.Authenticate(ctx, "old", "s3cret!")
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(secret, 0)
	assert.Equal(t, time.Hour, issuer.TTL())

	in := Identity{StaffID: "s-1", Username: "kemi", Role: ledger.RoleAdmin}
	token, err := issuer.Issue(in)
	require.NoError(t, err)

	out, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer(secret, time.Minute)
	issuer.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	token, err := issuer.Issue(Identity{StaffID: "s-1", Role: ledger.RoleStaff})
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Date(2025, 1, 1, 12, 2, 0, 0, time.UTC) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
}

func TestTokenIssuer_RejectsForeignTokens(t *testing.T) {
	issuer := NewTokenIssuer(secret, time.Hour)

	other := NewTokenIssuer("a-completely-different-secret", time.Hour)
	forged, err := other.Issue(Identity{StaffID: "s-1", Role: ledger.RoleAdmin})
	require.NoError(t, err)
	_, err = issuer.Parse(forged)
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)

	_, err = issuer.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: ledger.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
}

func TestAuthorize(t *testing.T) {
	admin := Identity{StaffID: "a", Role: ledger.RoleAdmin}
	staff := Identity{StaffID: "s", Role: ledger.RoleStaff}

	assert.NoError(t, Authorize(admin, ledger.RoleAdmin))
	assert.NoError(t, Authorize(staff, ledger.RoleStaff))
	assert.ErrorIs(t, Authorize(staff, ledger.RoleAdmin), ledger.ErrForbidden)
	assert.ErrorIs(t, Authorize(admin, ledger.RoleStaff), ledger.ErrForbidden)
}
