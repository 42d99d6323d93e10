package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Built-in provider names.
const (
	EnvProviderName   = "env"
	FileProviderName  = "file"
	VaultProviderName = "vault"
)

// EnvProvider resolves a ref as an environment variable name.
type EnvProvider struct{}

// NewEnvProvider creates an EnvProvider.
func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

func newEnvProviderFromConfig(map[string]any) (Provider, error) {
	return NewEnvProvider(), nil
}

// Name implements Provider.
func (*EnvProvider) Name() string { return EnvProviderName }

// Resolve returns the variable's value.
func (*EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrSecretNotFound, ref)
	}
	return v, nil
}

// Close implements Provider.
func (*EnvProvider) Close() error { return nil }

// FileProvider resolves a ref as a file path, the way mounted secrets are
// delivered. Trailing newlines are trimmed.
type FileProvider struct {
	baseDir string
}

// NewFileProvider creates a FileProvider. When baseDir is set, refs are
// relative to it and may not escape it.
func NewFileProvider(baseDir string) *FileProvider {
	return &FileProvider{baseDir: baseDir}
}

func newFileProviderFromConfig(cfg map[string]any) (Provider, error) {
	return NewFileProvider(stringOption(cfg, "base_dir")), nil
}

// Name implements Provider.
func (*FileProvider) Name() string { return FileProviderName }

// Resolve reads the file named by ref.
func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path := filepath.Clean(ref)
	if p.baseDir != "" {
		base := filepath.Clean(p.baseDir)
		path = filepath.Join(base, ref)
		if path != base && !strings.HasPrefix(path, base+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: path escapes base directory", ErrInvalidRef)
		}
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is operator configuration
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %s", ErrSecretNotFound, ref)
		}
		return "", fmt.Errorf("secret: read file: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// Close implements Provider.
func (*FileProvider) Close() error { return nil }
