package webhooks

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/despachantemarcelino/hookd/internal/config"
)

// Secret headers, in lookup order.
const (
	HeaderSecret        = "X-Webhook-Secret"
	HeaderAuthorization = "Authorization"
)

// SecretSource yields the expected shared secret. It is consulted on every
// request so rotating the environment value takes effect without a restart.
type SecretSource interface {
	Secret() string
}

// EnvSecret reads the secret from an environment variable.
type EnvSecret string

func (e EnvSecret) Secret() string {
	return os.Getenv(string(e))
}

// StaticSecret is a fixed secret, typically from the config file.
type StaticSecret string

func (s StaticSecret) Secret() string {
	return string(s)
}

// NewSecretSource returns the static secret from cfg when set, otherwise the
// environment variable cfg names.
func NewSecretSource(cfg *config.WebhookConfig) SecretSource {
	if cfg.Secret != "" {
		return StaticSecret(cfg.Secret)
	}
	return EnvSecret(cfg.SecretEnv)
}

// ExtractSecret returns the caller's secret: X-Webhook-Secret when present,
// otherwise the raw Authorization header.
func ExtractSecret(r *http.Request) string {
	if s := r.Header.Get(HeaderSecret); s != "" {
		return s
	}
	return r.Header.Get(HeaderAuthorization)
}

// Authenticator checks presented secrets against a SecretSource.
type Authenticator struct {
	source SecretSource
}

func NewAuthenticator(source SecretSource) *Authenticator {
	return &Authenticator{source: source}
}

// Verify reports whether presented matches the configured secret. An empty
// configured secret matches nothing. Both sides are hashed first so the
// comparison time does not depend on either length.
func (a *Authenticator) Verify(presented string) bool {
	expected := a.source.Secret()
	if expected == "" || presented == "" {
		return false
	}

	want := sha256.Sum256([]byte(expected))
	got := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// Configured reports whether a secret is currently available.
func (a *Authenticator) Configured() bool {
	return a.source.Secret() != ""
}

// Authenticate checks the secret carried by r.
func (a *Authenticator) Authenticate(r *http.Request) bool {
	return a.Verify(ExtractSecret(r))
}
