package httpclient

import (
	"context"
	"sync"
	"time"
)

// 文档注释：令牌桶限速（每秒）
// 背景：整站爬取会连续请求同一上游；按秒补满令牌，令牌耗尽时等待下一秒而不是丢弃请求。
// 约束：capacity<=0 表示不限速。
type tokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
	now      func() time.Time
}

func newTokenBucket(perSec int) *tokenBucket {
	return &tokenBucket{capacity: perSec, now: time.Now}
}

// take：取一个令牌；失败时返回距下一秒的等待时间
func (tb *tokenBucket) take() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := tb.now()
	if sec := now.Unix(); tb.lastSec != sec {
		tb.lastSec = sec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}
	return false, time.Unix(tb.lastSec+1, 0).Sub(now)
}

func (tb *tokenBucket) wait(ctx context.Context) error {
	if tb == nil || tb.capacity <= 0 {
		return nil
	}
	for {
		ok, d := tb.take()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}
