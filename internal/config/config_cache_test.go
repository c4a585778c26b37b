package config

import (
	"strings"
	"testing"
)

// TestCacheConfig_Validate covers the cache backend selection rules
func TestCacheConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cache   *CacheConfig
		wantErr string
	}{
		{
			name:  "nil sections default to enabled local cache",
			cache: &CacheConfig{},
		},
		{
			name:  "explicit local backend",
			cache: &CacheConfig{Backend: "local", Local: &LocalCache{Dir: "/var/cache/warren"}},
		},
		{
			name:  "redis backend with addr",
			cache: &CacheConfig{Backend: "redis", Redis: &RedisConfig{Addr: "localhost:6379"}},
		},
		{
			name:    "redis backend without addr",
			cache:   &CacheConfig{Backend: "redis"},
			wantErr: "requires redis.addr",
		},
		{
			name:    "unknown backend",
			cache:   &CacheConfig{Backend: "s3"},
			wantErr: "invalid cache backend: s3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cache.Validate()
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCacheConfig_Defaults(t *testing.T) {
	cc := &CacheConfig{}
	if err := cc.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !*cc.Enabled {
		t.Error("cache should default to enabled")
	}
	if !*cc.Write {
		t.Error("cache writes should default to enabled")
	}
	if cc.Backend != "local" {
		t.Errorf("backend should default to local, got %s", cc.Backend)
	}
	if cc.Local.Dir != DefaultCacheDir {
		t.Errorf("local dir should default to %s, got %s", DefaultCacheDir, cc.Local.Dir)
	}
}

func TestCacheConfig_RedisNamespaceDefault(t *testing.T) {
	cc := &CacheConfig{Backend: "redis", Redis: &RedisConfig{Addr: "localhost:6379"}}
	if err := cc.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cc.Redis.Namespace != "default" {
		t.Errorf("namespace should default to 'default', got %s", cc.Redis.Namespace)
	}
}
