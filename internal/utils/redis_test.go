package utils

import (
	"context"
	"testing"
)

func TestOpenRedisFromEnvDisabled(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HOST", "")
	if rc := OpenRedisFromEnv(); rc != nil {
		t.Fatalf("expected nil client without redis settings")
	}
	if rc := PingOrDisable(context.Background(), nil); rc != nil {
		t.Fatalf("nil client must stay nil")
	}
}

func TestOpenRedisFromEnvURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://:secret@cache.internal:6380/3")
	rc := OpenRedisFromEnv()
	if rc == nil {
		t.Fatal("expected a client")
	}
	defer rc.Close()
	opt := rc.Options()
	if opt.Addr != "cache.internal:6380" || opt.DB != 3 || opt.Password != "secret" {
		t.Fatalf("unexpected options addr=%s db=%d", opt.Addr, opt.DB)
	}
}

func TestOpenRedisFromEnvHost(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HOST", "10.0.0.5")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_DB", "bogus")
	rc := OpenRedisFromEnv()
	if rc == nil {
		t.Fatal("expected a client")
	}
	defer rc.Close()
	if opt := rc.Options(); opt.Addr != "10.0.0.5:6379" || opt.DB != 0 {
		t.Fatalf("unexpected options addr=%s db=%d", opt.Addr, opt.DB)
	}
}

func TestPingOrDisableUnreachable(t *testing.T) {
	rc := OpenRedis("127.0.0.1:1", "")
	if got := PingOrDisable(context.Background(), rc); got != nil {
		t.Fatalf("unreachable redis must be disabled")
	}
}
