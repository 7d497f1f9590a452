package main

import (
	"context"
	"io"
	"mapoc/internal/catalog"
	"mapoc/internal/config"
	"mapoc/internal/locate"
	"mapoc/internal/logger"
	"mapoc/internal/matcher"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/goccy/go-json"
)

// 文档注释：批量计算地名库每个城市所在的目录区域
// 背景：离线生成 城市名 → 区域名列表 的 JSON，供检查目录多边形覆盖情况；输出路径由 CITY_REGIONS_FILE 指定。
func main() {
	config.LoadEnvFiles()
	l := logger.Setup()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cat, err := catalog.Load(ctx, cfg)
	if err != nil {
		l.Error("catalog_load_error", "err", err)
		os.Exit(1)
	}
	var progress io.Writer
	if os.Getenv("CRAWL_PROGRESS") != "false" {
		progress = os.Stderr
	}
	res, err := locate.CityRegions(ctx, cat, matcher.New(cat.Tree), progress)
	if err != nil {
		l.Error("city_regions_error", "err", err)
		os.Exit(1)
	}
	out := os.Getenv("CITY_REGIONS_FILE")
	if out == "" {
		out = filepath.Join(cfg.DataRoot, "city_regions.json")
	}
	b, err := json.Marshal(res)
	if err != nil {
		l.Error("city_regions_encode_error", "err", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		l.Error("city_regions_write_error", "path", out, "err", err)
		os.Exit(1)
	}
	l.Info("city_regions_written", "path", out, "cities", len(res))
}
