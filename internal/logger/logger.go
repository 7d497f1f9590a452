// 包 logger：命令行工具共用的结构化日志；stdout 只输出命令结果，日志一律写 stderr
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Setup：按 LOG_LEVEL / LOG_FORMAT 初始化默认日志器，写标准错误
func Setup() *slog.Logger {
	return SetupWriter(os.Stderr)
}

// SetupWriter：同 Setup，输出到 w；LOG_FORMAT=json 便于长时间爬取后用 jq 过滤失败事件
func SetupWriter(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level(os.Getenv("LOG_LEVEL"))}
	var h slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	defaultLogger = slog.New(h)
	return defaultLogger
}

func level(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// L：默认日志器；未初始化时回退到 Setup
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup()
	}
	return defaultLogger
}

// Component：带 component 字段的日志器（crawler、fetcher、locate），区分同一进程内各阶段的事件
func Component(name string) *slog.Logger {
	return L().With("component", name)
}
