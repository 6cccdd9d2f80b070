package totp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticLookup(secret string) SecretLookup {
	return func(context.Context, string) (string, error) {
		return secret, nil
	}
}

func TestNewVerifier_RequiresLookup(t *testing.T) {
	t.Parallel()

	_, err := NewVerifier(nil)
	assert.Error(t, err)
}

func TestVerify_ValidCode(t *testing.T) {
	t.Parallel()

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "sessiond-test",
		AccountName: "user@example.com",
	})
	require.NoError(t, err)

	v, err := NewVerifier(staticLookup(key.Secret()))
	require.NoError(t, err)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), "user-1", code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_WrongCode(t *testing.T) {
	t.Parallel()

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "sessiond-test",
		AccountName: "user@example.com",
	})
	require.NoError(t, err)

	v, err := NewVerifier(staticLookup(key.Secret()))
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), "user-1", "000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_EmptyCodeIsNotValid(t *testing.T) {
	t.Parallel()

	lookupCalled := false
	v, err := NewVerifier(func(context.Context, string) (string, error) {
		lookupCalled = true
		return "irrelevant", nil
	})
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, lookupCalled, "empty code should short-circuit before lookup")
}

func TestVerify_LookupErrorPropagates(t *testing.T) {
	t.Parallel()

	lookupErr := errors.New("db unavailable")
	v, err := NewVerifier(func(context.Context, string) (string, error) {
		return "", lookupErr
	})
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), "user-1", "123456")
	assert.False(t, ok)
	assert.ErrorIs(t, err, lookupErr)
}

func TestVerify_MissingSecretIsError(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(staticLookup(""))
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), "user-1", "123456")
	assert.False(t, ok)
	assert.Error(t, err)
}
