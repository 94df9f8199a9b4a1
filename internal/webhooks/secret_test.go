package webhooks

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/despachantemarcelino/hookd/internal/config"
)

func TestAuthenticator_Verify(t *testing.T) {
	auth := NewAuthenticator(StaticSecret("s3cret"))

	require.True(t, auth.Verify("s3cret"))
	require.False(t, auth.Verify(""))
	require.False(t, auth.Verify("s3cre"))
	require.False(t, auth.Verify("s3cret "))
	require.False(t, auth.Verify("S3CRET"))
}

func TestAuthenticator_EmptySecretRejectsAll(t *testing.T) {
	auth := NewAuthenticator(StaticSecret(""))

	require.False(t, auth.Configured())
	require.False(t, auth.Verify(""))
	require.False(t, auth.Verify("anything"))
}

func TestEnvSecret(t *testing.T) {
	t.Setenv("HOOKD_SECRET_TEST", "from-env")
	require.Equal(t, "from-env", EnvSecret("HOOKD_SECRET_TEST").Secret())
	require.Empty(t, EnvSecret("HOOKD_SECRET_TEST_UNSET").Secret())
}

func TestExtractSecret(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	require.Empty(t, ExtractSecret(req))

	req.Header.Set(HeaderAuthorization, "auth-value")
	require.Equal(t, "auth-value", ExtractSecret(req))

	req.Header.Set(HeaderSecret, "header-value")
	require.Equal(t, "header-value", ExtractSecret(req))
}

func TestNewSecretSource(t *testing.T) {
	t.Setenv("HOOKD_SOURCE_TEST", "env-value")

	cfg := &config.WebhookConfig{SecretEnv: "HOOKD_SOURCE_TEST"}
	require.Equal(t, "env-value", NewSecretSource(cfg).Secret())

	cfg.Secret = "static-value"
	require.Equal(t, "static-value", NewSecretSource(cfg).Secret())
}
