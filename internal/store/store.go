// 包 store: PostgreSQL 地名库，供多台机器共享同一份城市表与国家表
package store

import (
	"context"
	"database/sql"
	"fmt"
	"mapoc/internal/gazetteer"
	"mapoc/internal/logger"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
)

// Store: 数据库访问入口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：整表替换导入地名库
// 背景：单事务内清空后以 COPY 批量写入，失败时回滚，读方不会看到半张表。
// 返回：写入的城市行数。
func (s *Store) ImportTable(ctx context.Context, t *gazetteer.Table) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "TRUNCATE gazetteer_cities, gazetteer_countries"); err != nil {
		return 0, fmt.Errorf("truncate: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("gazetteer_countries", "seq", "code", "name"))
	if err != nil {
		return 0, err
	}
	for i, c := range t.Countries {
		if _, err := stmt.ExecContext(ctx, int64(i), c.Code, c.Name); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copy country %s: %w", c.Code, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, err
	}
	stmt.Close()

	stmt, err = tx.PrepareContext(ctx, pq.CopyIn("gazetteer_cities",
		"seq", "geoname_id", "name", "ascii_name", "country_code", "latitude", "longitude", "population", "extra"))
	if err != nil {
		return 0, err
	}
	for i, c := range t.Cities {
		extra := []byte("{}")
		if len(c.Extra) > 0 {
			if extra, err = json.Marshal(c.Extra); err != nil {
				stmt.Close()
				return 0, err
			}
		}
		if _, err := stmt.ExecContext(ctx, int64(i), c.GeonameID, c.Name, c.ASCIIName, c.CountryCode,
			c.Latitude, c.Longitude, c.Population, string(extra)); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copy city %s: %w", c.Name, err)
		}
		if (i+1)%50000 == 0 {
			logger.L().Debug("gazetteer_copy_progress", "rows", i+1)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, err
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logger.L().Info("gazetteer_imported", "cities", len(t.Cities), "countries", len(t.Countries))
	return len(t.Cities), nil
}

// LoadTable: 按导入行序读回整张地名库（城市与国家均按 seq）
func (s *Store) LoadTable(ctx context.Context) (*gazetteer.Table, error) {
	t := &gazetteer.Table{}
	rows, err := s.db.QueryContext(ctx, "SELECT code, name FROM gazetteer_countries ORDER BY seq")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c gazetteer.Country
		if err := rows.Scan(&c.Code, &c.Name); err != nil {
			rows.Close()
			return nil, err
		}
		t.Countries = append(t.Countries, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT geoname_id, name, ascii_name, country_code, latitude, longitude, population, extra
        FROM gazetteer_cities ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, name, ascii, cc, extra string
			lat, lon                   float64
			pop                        int64
		)
		if err := rows.Scan(&id, &name, &ascii, &cc, &lat, &lon, &pop, &extra); err != nil {
			return nil, err
		}
		c := gazetteer.NewCity(id, name, ascii, cc, lat, lon, pop)
		if extra != "" && extra != "{}" {
			if err := json.Unmarshal([]byte(extra), &c.Extra); err != nil {
				logger.L().Warn("gazetteer_extra_decode_error", "geoname_id", id, "err", err)
			}
		}
		t.Cities = append(t.Cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("gazetteer_db_loaded", "cities", len(t.Cities), "countries", len(t.Countries))
	return t, nil
}
