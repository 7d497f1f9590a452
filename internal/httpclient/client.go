// 包 httpclient：目录爬取与资源下载共用的 HTTP 客户端
// 背景：上游为静态文件站点，偶发连接重置与超时；仅对传输层错误做有限次重试，HTTP 状态码由调用方判定。
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mapoc/internal/logger"
	"mapoc/internal/metrics"
	"net"
	"net/http"
	"net/url"
	"time"
)

// StatusError：非 200 响应
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("could not fetch resource (status code: %d): %s", e.StatusCode, e.URL)
}

type Client struct {
	client    *http.Client
	attempts  int
	backoff   time.Duration
	userAgent string
	limiter   *tokenBucket
}

// New：timeout 为单次请求总超时；attempts 为传输层最大尝试次数（含首次），小于 1 时按 1 处理
func New(timeout time.Duration, attempts int) *Client {
	if attempts < 1 {
		attempts = 1
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		client:    &http.Client{Transport: transport, Timeout: timeout},
		attempts:  attempts,
		backoff:   500 * time.Millisecond,
		userAgent: "mapoc/1.0 (+https://github.com/mapoc)",
	}
}

// SetBackoff：重试间隔基数，第 n 次重试前等待 n*d
func (c *Client) SetBackoff(d time.Duration) { c.backoff = d }

// SetRate：每秒最多发出 perSec 个请求（含重试），<=0 不限速
func (c *Client) SetRate(perSec int) { c.limiter = newTokenBucket(perSec) }

// Get：发起 GET，传输层失败时按次数重试；返回的响应可能为任意状态码
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			metrics.HTTPRetriesTotal.Inc()
			logger.L().Debug("http_retry", "url", rawURL, "attempt", attempt, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.backoff):
			}
		}
		if err := c.limiter.wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		t0 := time.Now()
		resp, err := c.client.Do(req)
		metrics.HTTPDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("get %s: %d attempts: %w", rawURL, c.attempts, lastErr)
}

// GetBody：读取完整响应体（上限 limit 字节），非 200 返回 *StatusError
func (c *Client) GetBody(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, "", err
	}
	return b, resp.Header.Get("Content-Type"), nil
}

// Download：将响应体写入 w，非 200 返回 *StatusError
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return io.Copy(w, resp.Body)
}

// IsStatus：判断 err 是否为指定状态码的 StatusError
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
