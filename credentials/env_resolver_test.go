package credentials_test

import (
	"context"
	"testing"

	"github.com/eduassist/portalsync/credentials"
	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/stretchr/testify/require"
)

func TestEnvResolver(t *testing.T) {
	resolver := credentials.EnvResolver{}

	t.Run("portal credentials", func(t *testing.T) {
		t.Setenv("CLEVER_USERNAME", "student@district.org")
		t.Setenv("CLEVER_PASSWORD", "s3cret")

		cred, secret, err := resolver.Resolve(context.Background(), "student-1", platform.Clever)
		require.NoError(t, err)
		require.Equal(t, "student@district.org", cred.Identifier)
		require.Equal(t, credentials.Secret("s3cret"), secret)
	})

	t.Run("google refresh token wins over auth code", func(t *testing.T) {
		t.Setenv("GOOGLE_REFRESH_TOKEN", "tok-123")
		t.Setenv("GOOGLE_AUTH_CODE", "code-456")

		_, secret, err := resolver.Resolve(context.Background(), "student-1", platform.GoogleClassroom)
		require.NoError(t, err)
		require.Equal(t, credentials.Secret("refresh_token:tok-123"), secret)
	})

	t.Run("missing credential", func(t *testing.T) {
		_, _, err := resolver.Resolve(context.Background(), "student-1", platform.Edpuzzle)
		require.ErrorIs(t, err, errors.ErrCredentialNotFound)
	})
}
