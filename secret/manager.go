package secret

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"regexp"

	"github.com/jonwraymond/llmguard/observe"
)

var credentialPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{32,128}$`)

// fingerprintLength is how much of the hash is ever logged or exposed.
const fingerprintLength = 8

// Manager holds the hash of the upstream credential. The plaintext is
// never retained.
type Manager struct {
	hash   string
	logger observe.Logger
}

// NewManager validates credential and stores its hash.
func NewManager(credential string, logger observe.Logger) (*Manager, error) {
	if logger == nil {
		logger = observe.NopLogger()
	}
	logger = logger.With(observe.Field{Key: "component", Value: "secret"})

	if !credentialPattern.MatchString(credential) {
		logger.Error(context.Background(), "credential format validation failed")
		return nil, ErrInvalidCredential
	}

	m := &Manager{hash: hashCredential(credential), logger: logger}
	logger.Info(context.Background(), "credential configured",
		observe.Field{Key: "fingerprint", Value: m.Fingerprint()},
	)
	return m, nil
}

// Validate reports whether candidate matches the stored credential.
func (m *Manager) Validate(ctx context.Context, candidate string) error {
	got := hashCredential(candidate)
	if subtle.ConstantTimeCompare([]byte(got), []byte(m.hash)) != 1 {
		m.logger.Warn(ctx, "credential validation failed")
		return ErrCredentialMismatch
	}
	return nil
}

// Fingerprint returns a short prefix of the credential hash, safe to log.
func (m *Manager) Fingerprint() string {
	return m.hash[:fingerprintLength]
}

func hashCredential(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}
