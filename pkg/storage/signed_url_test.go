package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("file-1", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	grant, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "file-1", grant.FileID)
	require.Equal(t, "user-1", grant.Subject)
	require.WithinDuration(t, expiresAt, grant.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return base }
	token, _, err := signer.Generate("file-1", "user-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	grant, err := signer.Parse(token)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.Equal(t, "file-1", grant.FileID)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("file-1", "user-1")
	require.NoError(t, err)

	tampered := "file-2" + strings.TrimPrefix(token, "file-1")
	_, err = signer.Parse(tampered)
	require.ErrorIs(t, err, ErrTokenInvalid)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = signer.Parse("garbage")
	require.ErrorIs(t, err, ErrTokenInvalid)
}
