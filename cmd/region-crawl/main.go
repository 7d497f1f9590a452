package main

import (
	"context"
	"mapoc/internal/config"
	"mapoc/internal/crawler"
	"mapoc/internal/httpclient"
	"mapoc/internal/logger"
	"mapoc/internal/metrics"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"
)

// 文档注释：离线爬取区域目录
// 背景：从 CATALOG_URL 下降整站目录，写出区域树（YAML）、可读转储与链接索引；设置 METRICS_ADDR 时同时暴露 /metrics。
// 约束：输出文件整体替换写入；根页面不可用时不覆盖旧文件。
func main() {
	config.LoadEnvFiles()
	l := logger.Setup()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: logger.AccessMiddleware(l)(mux), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			l.Info("metrics_listen", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				l.Error("metrics_listen_error", "err", err)
			}
		}()
		defer srv.Close()
	}

	client := httpclient.New(cfg.HTTPTimeout, cfg.HTTPRetries)
	client.SetRate(cfg.HTTPRate)
	b := crawler.NewBuilder(client)
	if os.Getenv("CRAWL_PROGRESS") != "false" {
		b.Progress = os.Stderr
	}

	l.Info("crawl_begin", "url", cfg.CatalogURL)
	t0 := time.Now()
	res, err := b.Build(ctx, cfg.CatalogURL)
	if err != nil {
		l.Error("crawl_error", "err", err)
		os.Exit(1)
	}

	for _, p := range []string{cfg.TreeFile, cfg.TreeDumpFile, cfg.URLIndexFile} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			l.Error("output_dir_error", "path", p, "err", err)
			os.Exit(1)
		}
	}
	if err := res.Tree.Save(cfg.TreeFile); err != nil {
		l.Error("tree_write_error", "path", cfg.TreeFile, "err", err)
		os.Exit(1)
	}
	if err := res.Tree.SaveDump(cfg.TreeDumpFile); err != nil {
		l.Error("tree_dump_write_error", "path", cfg.TreeDumpFile, "err", err)
		os.Exit(1)
	}
	if err := res.URLs.Save(cfg.URLIndexFile); err != nil {
		l.Error("urls_write_error", "path", cfg.URLIndexFile, "err", err)
		os.Exit(1)
	}
	l.Info("crawl_written",
		"tree", cfg.TreeFile,
		"dump", cfg.TreeDumpFile,
		"urls", cfg.URLIndexFile,
		"nodes", res.Tree.Len(),
		"page_failures", res.Stats.PageFailures,
		"polygon_failures", res.Stats.PolygonFailures,
		"elapsed_ms", time.Since(t0).Milliseconds(),
	)
}
