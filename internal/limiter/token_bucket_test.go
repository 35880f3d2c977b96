package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// mockRedisClient 模拟令牌桶脚本：按桶内剩余令牌判定放行。
// 嵌入接口以满足 redis.Cmdable，测试只覆盖 Eval 和 Del。
type mockRedisClient struct {
	redis.Cmdable
	tokens  map[string]int64
	evalErr error
}

func newMockRedisClient(burst int64) *mockRedisClient {
	return &mockRedisClient{tokens: map[string]int64{"": burst}}
}

func (m *mockRedisClient) bucket(key string, capacity int64) int64 {
	if v, ok := m.tokens[key]; ok {
		return v
	}
	m.tokens[key] = capacity
	return capacity
}

func (m *mockRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx, "eval")
	if m.evalErr != nil {
		cmd.SetErr(m.evalErr)
		return cmd
	}

	capacity := args[0].(int64)
	requested := args[3].(int64)

	tokens := m.bucket(keys[0], capacity)
	if tokens >= requested {
		tokens -= requested
		m.tokens[keys[0]] = tokens
		cmd.SetVal([]interface{}{int64(1), tokens, int64(0)})
	} else {
		cmd.SetVal([]interface{}{int64(0), tokens, int64(30)})
	}
	return cmd
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	count := int64(0)
	for _, key := range keys {
		if _, ok := m.tokens[key]; ok {
			delete(m.tokens, key)
			count++
		}
	}
	cmd.SetVal(count)
	return cmd
}

func testLimiterConfig(burst int64) *Config {
	return &Config{
		Rate:      10,
		Window:    time.Minute,
		Burst:     burst,
		KeyPrefix: "test:tb",
	}
}

func TestNewTokenBucketLimiter_DefaultPrefix(t *testing.T) {
	tb := NewTokenBucketLimiter(newMockRedisClient(10), &Config{Rate: 10, Window: time.Minute, Burst: 10})
	if tb.keyPrefix != "limiter:tb" {
		t.Errorf("expected default prefix limiter:tb, got %s", tb.keyPrefix)
	}

	tb = NewTokenBucketLimiter(newMockRedisClient(10), testLimiterConfig(10))
	if got := tb.getKey("user:1"); got != "test:tb:user:1" {
		t.Errorf("unexpected key: %s", got)
	}
}

func TestTokenBucketLimiter_AllowUntilExhausted(t *testing.T) {
	tb := NewTokenBucketLimiter(newMockRedisClient(3), testLimiterConfig(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := tb.Allow(ctx, "user:1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
		if result.Remaining != int64(2-i) {
			t.Errorf("expected %d remaining, got %d", 2-i, result.Remaining)
		}
	}

	result, err := tb.Allow(ctx, "user:1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Error("expected exhausted bucket to deny")
	}
	if result.RetryAfter != 30*time.Second {
		t.Errorf("expected retry after 30s, got %v", result.RetryAfter)
	}
}

func TestTokenBucketLimiter_KeysAreIndependent(t *testing.T) {
	tb := NewTokenBucketLimiter(newMockRedisClient(1), testLimiterConfig(1))
	ctx := context.Background()

	if result, _ := tb.Allow(ctx, "user:1"); !result.Allowed {
		t.Fatal("expected first key to be allowed")
	}
	if result, _ := tb.Allow(ctx, "user:2"); !result.Allowed {
		t.Error("expected second key to have its own bucket")
	}
	if result, _ := tb.Allow(ctx, "user:1"); result.Allowed {
		t.Error("expected first key to be exhausted")
	}
}

func TestTokenBucketLimiter_Reset(t *testing.T) {
	client := newMockRedisClient(1)
	tb := NewTokenBucketLimiter(client, testLimiterConfig(1))
	ctx := context.Background()

	if result, _ := tb.Allow(ctx, "user:1"); !result.Allowed {
		t.Fatal("expected first request allowed")
	}
	if result, _ := tb.Allow(ctx, "user:1"); result.Allowed {
		t.Fatal("expected bucket exhausted")
	}

	if err := tb.Reset(ctx, "user:1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if result, _ := tb.Allow(ctx, "user:1"); !result.Allowed {
		t.Error("expected request allowed after reset")
	}
}

func TestTokenBucketLimiter_RedisError(t *testing.T) {
	client := newMockRedisClient(10)
	client.evalErr = errors.New("connection refused")
	tb := NewTokenBucketLimiter(client, testLimiterConfig(10))

	if _, err := tb.Allow(context.Background(), "user:1"); err == nil {
		t.Error("expected error when redis is unavailable")
	}
}
