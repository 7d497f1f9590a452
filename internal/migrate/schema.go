package migrate

import (
	"database/sql"
	"mapoc/internal/logger"
)

// 背景：首次导入前自动创建地名库表与索引
// 约束：使用 IF NOT EXISTS，可重复执行；两张表的 seq 均保留文件行序，人口同分排序与国家名首个匹配都依赖它
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gazetteer_countries (
            seq BIGINT PRIMARY KEY,
            code TEXT NOT NULL,
            name TEXT NOT NULL
        )`,
		`ALTER TABLE gazetteer_countries ADD COLUMN IF NOT EXISTS seq BIGINT`,
		`CREATE TABLE IF NOT EXISTS gazetteer_cities (
            seq BIGINT PRIMARY KEY,
            geoname_id TEXT NOT NULL,
            name TEXT NOT NULL,
            ascii_name TEXT NOT NULL,
            country_code TEXT NOT NULL,
            latitude DOUBLE PRECISION NOT NULL,
            longitude DOUBLE PRECISION NOT NULL,
            population BIGINT NOT NULL DEFAULT 0,
            extra TEXT NOT NULL DEFAULT '{}'
        )`,
		`CREATE INDEX IF NOT EXISTS idx_gazetteer_cities_ascii ON gazetteer_cities(lower(ascii_name))`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
