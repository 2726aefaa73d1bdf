package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedis struct {
	setFn    func(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	existsFn func(ctx context.Context, keys ...string) *redis.IntCmd
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return m.setFn(ctx, key, value, expiration)
}

func (m *mockRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	return m.existsFn(ctx, keys...)
}

func TestRedisDenylist_Revoke_SetsKeyWithTTL(t *testing.T) {
	var gotKey string
	var gotTTL time.Duration
	d := NewRedisDenylist(&mockRedis{
		setFn: func(_ context.Context, key string, _ interface{}, expiration time.Duration) *redis.StatusCmd {
			gotKey, gotTTL = key, expiration
			return redis.NewStatusResult("OK", nil)
		},
	})

	if err := d.Revoke(context.Background(), "jti-1", 30*time.Minute); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if gotKey != "sharebnb:revoked:jti-1" {
		t.Errorf("key = %q", gotKey)
	}
	if gotTTL != 30*time.Minute {
		t.Errorf("ttl = %v, want 30m", gotTTL)
	}
}

func TestRedisDenylist_Revoke_SkipsExpiredTokens(t *testing.T) {
	d := NewRedisDenylist(&mockRedis{
		setFn: func(context.Context, string, interface{}, time.Duration) *redis.StatusCmd {
			t.Error("Set should not be called for an already expired token")
			return redis.NewStatusResult("OK", nil)
		},
	})

	if err := d.Revoke(context.Background(), "jti-1", -time.Second); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
}

func TestRedisDenylist_IsRevoked(t *testing.T) {
	tests := []struct {
		name    string
		result  *redis.IntCmd
		want    bool
		wantErr bool
	}{
		{name: "revoked", result: redis.NewIntResult(1, nil), want: true},
		{name: "not revoked", result: redis.NewIntResult(0, nil), want: false},
		{name: "redis error", result: redis.NewIntResult(0, errors.New("connection refused")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewRedisDenylist(&mockRedis{
				existsFn: func(context.Context, ...string) *redis.IntCmd { return tt.result },
			})

			got, err := d.IsRevoked(context.Background(), "jti-1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("IsRevoked error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsRevoked = %v, want %v", got, tt.want)
			}
		})
	}
}
