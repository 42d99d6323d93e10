package secret

import (
	"errors"
	"slices"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func(map[string]any) (Provider, error) {
		return &stubProvider{name: "stub"}, nil
	}

	if err := r.Register("stub", factory); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("stub", factory); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("duplicate Register() error = %v", err)
	}
	if err := r.Register(" ", factory); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("blank Register() error = %v", err)
	}
	if err := r.Register("nil", nil); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("nil factory Register() error = %v", err)
	}

	p, err := r.Create("stub", nil)
	if err != nil || p.Name() != "stub" {
		t.Fatalf("Create() = %v, %v", p, err)
	}
	if _, err := r.Create("nope", nil); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("Create(nope) error = %v", err)
	}
}

func TestNewBuiltinRegistry(t *testing.T) {
	r := NewBuiltinRegistry()

	want := []string{EnvProviderName, FileProviderName, VaultProviderName}
	if got := r.List(); !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	for _, name := range []string{EnvProviderName, FileProviderName} {
		p, err := r.Create(name, nil)
		if err != nil {
			t.Fatalf("Create(%q) error = %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Name() = %q, want %q", p.Name(), name)
		}
	}

	p, err := r.Create(VaultProviderName, map[string]any{"address": "http://127.0.0.1:8200", "token": "t"})
	if err != nil {
		t.Fatalf("Create(vault) error = %v", err)
	}
	_ = p.Close()

	if _, err := r.Create(VaultProviderName, map[string]any{"kv_version": 3}); err == nil {
		t.Error("Create(vault) with kv_version 3 should fail")
	}
}
