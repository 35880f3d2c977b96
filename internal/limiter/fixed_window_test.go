package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// mockWindowClient 模拟固定窗口脚本：按key累计计数判定放行
type mockWindowClient struct {
	redis.Cmdable
	counts map[string]int64
}

func newMockWindowClient() *mockWindowClient {
	return &mockWindowClient{counts: make(map[string]int64)}
}

func (m *mockWindowClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx, "eval")

	limit := args[0].(int64)
	requested := args[2].(int64)

	current := m.counts[keys[0]]
	if current+requested > limit {
		cmd.SetVal([]interface{}{int64(0), limit - current, int64(15)})
	} else {
		m.counts[keys[0]] = current + requested
		cmd.SetVal([]interface{}{int64(1), limit - m.counts[keys[0]], int64(0)})
	}
	return cmd
}

func TestFixedWindowLimiter_AllowUntilLimit(t *testing.T) {
	fw := NewFixedWindowLimiter(newMockWindowClient(), &Config{
		Rate:      2,
		Window:    time.Minute,
		KeyPrefix: "test:fw",
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := fw.Allow(ctx, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}

	result, err := fw.Allow(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Error("expected request over the window limit to be denied")
	}
	if result.RetryAfter != 15*time.Second {
		t.Errorf("expected retry after 15s, got %v", result.RetryAfter)
	}
}

func TestFixedWindowLimiter_DefaultPrefix(t *testing.T) {
	fw := NewFixedWindowLimiter(newMockWindowClient(), &Config{Rate: 10, Window: time.Minute})
	if got := fw.getKey("ip:1.2.3.4"); got != "limiter:fw:ip:1.2.3.4" {
		t.Errorf("unexpected key: %s", got)
	}
}
