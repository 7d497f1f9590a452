package main

import (
	"context"
	"mapoc/internal/config"
	"mapoc/internal/gazetteer"
	"mapoc/internal/logger"
	"mapoc/internal/migrate"
	"mapoc/internal/store"
	"mapoc/internal/utils"
	"os"
	"time"
)

// 文档注释：将地名库 CSV（或 GeoNames 原始导出）导入 PostgreSQL
// 背景：多台机器共享同一份地名库时使用，之后以 GAZETTEER_SOURCE=postgres 运行定位命令。
// 约束：整表替换；CITIES_FILE/COUNTRIES_FILE 覆盖默认路径。
func main() {
	config.LoadEnvFiles()
	l := logger.Setup()
	cfg := config.Load()

	t, err := gazetteer.LoadFiles(cfg.CitiesFile, cfg.CountriesFile)
	if err != nil {
		l.Error("gazetteer_read_error", "cities", cfg.CitiesFile, "countries", cfg.CountriesFile, "err", err)
		os.Exit(1)
	}
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
		os.Exit(1)
	}
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	n, err := store.AttachDB(db).ImportTable(ctx, t)
	if err != nil {
		l.Error("gazetteer_import_error", "err", err)
		os.Exit(1)
	}
	l.Info("gazetteer_ingest_done", "cities", n, "countries", len(t.Countries))
}
