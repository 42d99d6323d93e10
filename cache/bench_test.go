package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func BenchmarkMemoryCache_Get_Hit(b *testing.B) {
	c := NewMemoryCache(MemoryOptions{})
	ctx := context.Background()
	_ = c.Set(ctx, "key", []byte("value"), time.Hour)

	for b.Loop() {
		_, _ = c.Get(ctx, "key")
	}
}

// Writes past MaxEntries, so every Set after the first 256 evicts.
func BenchmarkMemoryCache_SetEvicting(b *testing.B) {
	c := NewMemoryCache(MemoryOptions{MaxEntries: 256})
	ctx := context.Background()
	value := []byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)

	i := 0
	for b.Loop() {
		_ = c.Set(ctx, fmt.Sprintf("chat:%032x", i), value, time.Duration(i%60+1)*time.Second)
		i++
	}
}

func BenchmarkMemoryCache_Parallel(b *testing.B) {
	c := NewMemoryCache(MemoryOptions{MaxEntries: 1000})
	ctx := context.Background()
	for i := range 1000 {
		_ = c.Set(ctx, fmt.Sprintf("key-%d", i), []byte("v"), time.Hour)
	}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = c.Get(ctx, fmt.Sprintf("key-%d", i%1000))
			i++
		}
	})
}

func BenchmarkChatKeyer_Key(b *testing.B) {
	k := NewChatKeyer()
	msgs := []message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "explain goroutines"}}

	for b.Loop() {
		_, _ = k.Key("deepseek-chat", msgs, 0.7, 4096)
	}
}
