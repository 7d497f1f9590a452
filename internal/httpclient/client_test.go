package httpclient

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// dropConn closes the connection without writing a response.
func dropConn(t *testing.T, w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Error("hijack unsupported")
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Errorf("hijack: %v", err)
		return
	}
	conn.Close()
}

func TestGetRetriesTransportErrors(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			dropConn(t, w)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := New(5*time.Second, 5)
	c.SetBackoff(time.Millisecond)
	body, _, err := c.GetBody(context.Background(), ts.URL, 1024)
	if err != nil {
		t.Fatalf("get err: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 hits, got %d", hits)
	}
}

func TestGetGivesUpAfterAttempts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dropConn(t, w)
	}))
	defer ts.Close()

	c := New(5*time.Second, 2)
	c.SetBackoff(time.Millisecond)
	if _, err := c.Get(context.Background(), ts.URL); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestStatusNotRetried(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := New(5*time.Second, 3)
	c.SetBackoff(time.Millisecond)
	var buf bytes.Buffer
	_, err := c.Download(context.Background(), ts.URL, &buf)
	if !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("want 404 status error, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("status errors must not be retried, hits=%d", hits)
	}
}

func TestInvalidURL(t *testing.T) {
	c := New(time.Second, 1)
	if _, err := c.Get(context.Background(), "not a url"); err == nil {
		t.Fatal("expected invalid url error")
	}
}

func TestTokenBucketRefillsPerSecond(t *testing.T) {
	now := time.Unix(100, 0)
	tb := newTokenBucket(2)
	tb.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := tb.take(); !ok {
			t.Fatalf("take %d should succeed", i)
		}
	}
	ok, d := tb.take()
	if ok {
		t.Fatalf("third take in the same second should fail")
	}
	if d != time.Second {
		t.Fatalf("wait = %v, want 1s", d)
	}
	now = now.Add(time.Second)
	if ok, _ := tb.take(); !ok {
		t.Fatalf("bucket should refill in the next second")
	}
}

func TestUnlimitedBucketNeverWaits(t *testing.T) {
	var tb *tokenBucket
	if err := tb.wait(context.Background()); err != nil {
		t.Fatalf("nil bucket: %v", err)
	}
	if err := newTokenBucket(0).wait(context.Background()); err != nil {
		t.Fatalf("zero bucket: %v", err)
	}
}
