package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetupWriterJSONAndLevel(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	SetupWriter(&buf)

	Component("crawler").Info("crawl_page", "url", "https://example.test/")
	Component("crawler").Warn("crawl_page_error", "url", "https://example.test/x.html")

	out := buf.String()
	if strings.Contains(out, `"crawl_page"`) {
		t.Fatalf("info event must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"crawl_page_error"`) || !strings.Contains(out, `"component":"crawler"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}
