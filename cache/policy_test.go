package cache

import (
	"testing"
	"time"
)

func TestPolicy(t *testing.T) {
	tests := []struct {
		name        string
		policy      Policy
		override    time.Duration
		shouldCache bool
		wantTTL     time.Duration
	}{
		{name: "default", policy: DefaultPolicy(), shouldCache: true, wantTTL: 5 * time.Minute},
		{name: "override", policy: DefaultPolicy(), override: 10 * time.Minute, shouldCache: true, wantTTL: 10 * time.Minute},
		{name: "clamped", policy: DefaultPolicy(), override: 2 * time.Hour, shouldCache: true, wantTTL: time.Hour},
		{name: "no cache", policy: NoCachePolicy()},
		{name: "disabled with ttl", policy: Policy{TTL: time.Minute}, wantTTL: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.ShouldCache(); got != tt.shouldCache {
				t.Errorf("ShouldCache() = %v, want %v", got, tt.shouldCache)
			}
			if got := tt.policy.EffectiveTTL(tt.override); got != tt.wantTTL {
				t.Errorf("EffectiveTTL(%v) = %v, want %v", tt.override, got, tt.wantTTL)
			}
		})
	}
}
