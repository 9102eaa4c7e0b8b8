package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHS256_SignVerify(t *testing.T) {
	ts, err := NewHS256Service("secret", "repfinds", time.Hour)
	require.NoError(t, err)

	tok, err := ts.Sign("ops", RoleAdmin)
	require.NoError(t, err)
	id, err := ts.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{Subject: "ops", Role: RoleAdmin}, id)
	assert.True(t, id.IsAdmin())

	_, err = ts.Sign("", RoleAdmin)
	assert.ErrorIs(t, err, ErrEmptySubject)
}

func TestHS256_Rejects(t *testing.T) {
	ts, _ := NewHS256Service("secret", "repfinds", time.Hour)
	other, _ := NewHS256Service("secret", "someone-else", time.Hour)
	wrongKey, _ := NewHS256Service("other", "repfinds", time.Hour)

	tok, _ := other.Sign("ops", RoleAdmin)
	_, err := ts.Verify(tok)
	assert.Error(t, err, "issuer mismatch")

	tok, _ = wrongKey.Sign("ops", RoleAdmin)
	_, err = ts.Verify(tok)
	assert.Error(t, err, "signature mismatch")

	tok, _ = ts.SignWithTTL("ops", RoleAdmin, -time.Minute)
	id, err := ts.Verify(tok)
	assert.NoError(t, err, "non-positive ttl falls back to default")
	assert.Equal(t, "ops", id.Subject)

	_, err = ts.Verify("not.a.jwt")
	assert.Error(t, err)
}

func TestNewHS256Service_Validation(t *testing.T) {
	_, err := NewHS256Service("", "i", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
	_, err = NewHS256Service("s", "", time.Hour)
	assert.ErrorIs(t, err, ErrEmptyIssuer)
	_, err = NewHS256Service("s", "i", 0)
	assert.ErrorIs(t, err, ErrBadTTL)
}

func TestIdentityContext(t *testing.T) {
	_, ok := GetIdentity(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Subject: "a", Role: "viewer"})
	id, ok := GetIdentity(ctx)
	require.True(t, ok)
	assert.False(t, id.IsAdmin())
}
