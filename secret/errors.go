package secret

import "errors"

// Sentinel errors.
var (
	// ErrInvalidCredential means the credential does not have the expected
	// format. It is a configuration error.
	ErrInvalidCredential = errors.New("secret: invalid credential format")

	// ErrCredentialMismatch means a candidate did not match the stored
	// credential.
	ErrCredentialMismatch = errors.New("secret: credential mismatch")

	ErrProviderNotRegistered = errors.New("secret: provider not registered")
	ErrInvalidRegistration   = errors.New("secret: invalid provider registration")
	ErrInvalidRef            = errors.New("secret: invalid secret reference")
	ErrEmptySecret           = errors.New("secret: provider returned empty value")
	ErrSecretNotFound        = errors.New("secret: secret not found")
	ErrMissingEnv            = errors.New("secret: missing required environment variables")
)
