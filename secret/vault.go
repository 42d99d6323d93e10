package secret

import (
	"context"
	"fmt"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

// DefaultVaultField is read when a vault ref names no field.
const DefaultVaultField = "value"

// VaultConfig configures a VaultProvider.
type VaultConfig struct {
	// Address of the Vault server. Empty uses VAULT_ADDR.
	Address string

	// Token authenticates requests. Empty uses VAULT_TOKEN.
	Token string

	// Namespace is the Vault Enterprise namespace, if any.
	Namespace string

	// KVVersion is the KV secrets engine version, 1 or 2.
	// Default: 2
	KVVersion int

	// Timeout bounds each request.
	// Default: 10s
	Timeout time.Duration
}

// VaultProvider resolves refs from a Vault KV secrets engine.
//
// A ref has the form <mount>/<path>#<field>, for example
// "secret/llm#api_key". The field defaults to DefaultVaultField.
type VaultProvider struct {
	client    *vaultapi.Client
	kvVersion int
}

// NewVaultProvider creates a VaultProvider.
func NewVaultProvider(cfg VaultConfig) (*VaultProvider, error) {
	if cfg.KVVersion == 0 {
		cfg.KVVersion = 2
	}
	if cfg.KVVersion != 1 && cfg.KVVersion != 2 {
		return nil, fmt.Errorf("secret: unsupported vault KV version %d", cfg.KVVersion)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	apiConfig := vaultapi.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, fmt.Errorf("secret: vault config: %w", apiConfig.Error)
	}
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}
	apiConfig.Timeout = cfg.Timeout

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("secret: create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	return &VaultProvider{client: client, kvVersion: cfg.KVVersion}, nil
}

func newVaultProviderFromConfig(cfg map[string]any) (Provider, error) {
	vc := VaultConfig{
		Address:   stringOption(cfg, "address"),
		Token:     stringOption(cfg, "token"),
		Namespace: stringOption(cfg, "namespace"),
	}
	if v, ok := cfg["kv_version"].(int); ok {
		vc.KVVersion = v
	}
	return NewVaultProvider(vc)
}

// Name implements Provider.
func (*VaultProvider) Name() string { return VaultProviderName }

// Resolve reads one field of a KV secret.
func (p *VaultProvider) Resolve(ctx context.Context, ref string) (string, error) {
	mount, path, field, err := parseVaultRef(ref)
	if err != nil {
		return "", err
	}

	fullPath := mount + "/" + path
	if p.kvVersion == 2 {
		fullPath = mount + "/data/" + path
	}

	s, err := p.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return "", fmt.Errorf("secret: vault read %s: %w", fullPath, err)
	}
	if s == nil || s.Data == nil {
		return "", fmt.Errorf("%w: vault %s", ErrSecretNotFound, fullPath)
	}

	data := s.Data
	if p.kvVersion == 2 {
		// KV v2 nests the payload under "data"; a soft-deleted secret has
		// data: null.
		nested, ok := s.Data["data"].(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: vault %s", ErrSecretNotFound, fullPath)
		}
		data = nested
	}

	v, ok := data[field]
	if !ok {
		return "", fmt.Errorf("%w: vault %s field %q", ErrSecretNotFound, fullPath, field)
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("secret: vault %s field %q is not a string", fullPath, field)
	}
	return str, nil
}

// Close implements Provider.
func (p *VaultProvider) Close() error {
	p.client.ClearToken()
	return nil
}

func parseVaultRef(ref string) (mount, path, field string, err error) {
	loc, field, _ := strings.Cut(ref, "#")
	if field == "" {
		field = DefaultVaultField
	}
	mount, path, ok := strings.Cut(strings.Trim(loc, "/"), "/")
	if !ok || mount == "" || path == "" {
		return "", "", "", fmt.Errorf("%w: vault ref %q must be <mount>/<path>[#field]", ErrInvalidRef, ref)
	}
	return mount, path, field, nil
}
