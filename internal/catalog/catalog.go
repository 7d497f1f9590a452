// 包 catalog：一次运行共享的只读数据上下文（区域树、链接索引、地名库）
// 约束：加载一次后只读，显式传给 resolver、matcher 与 fetcher。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"mapoc/internal/config"
	"mapoc/internal/gazetteer"
	"mapoc/internal/logger"
	"mapoc/internal/regiontree"
	"mapoc/internal/store"
	"mapoc/internal/utils"
	"os"
)

var ErrMissingData = errors.New("missing data file")

// MissingDataError：缺失的数据文件及生成它的命令
type MissingDataError struct {
	Path     string
	Producer string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s: %s (produce it with %s)", ErrMissingData, e.Path, e.Producer)
}

func (e *MissingDataError) Is(target error) bool { return target == ErrMissingData }

type Catalog struct {
	Tree      *regiontree.Tree
	URLs      regiontree.URLIndex
	Gazetteer *gazetteer.Table
}

// 文档注释：按配置加载目录上下文
// 背景：区域树与链接索引由 region-crawl 生成；地名库来自 CSV 文件，或 GAZETTEER_SOURCE=postgres 时来自数据库。
// 异常：文件缺失返回 *MissingDataError（errors.Is ErrMissingData）。
func Load(ctx context.Context, cfg config.Config) (*Catalog, error) {
	if err := requireFiles(cfg); err != nil {
		return nil, err
	}
	tree, err := regiontree.Load(cfg.TreeFile)
	if err != nil {
		return nil, fmt.Errorf("load region tree: %w", err)
	}
	urls, err := regiontree.LoadURLIndex(cfg.URLIndexFile)
	if err != nil {
		return nil, fmt.Errorf("load url index: %w", err)
	}
	gz, err := loadGazetteer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.L().Info("catalog_loaded",
		"nodes", tree.Len(),
		"url_regions", len(urls),
		"cities", len(gz.Cities),
		"countries", len(gz.Countries),
		"gazetteer_source", cfg.GazetteerSource,
	)
	return &Catalog{Tree: tree, URLs: urls, Gazetteer: gz}, nil
}

func requireFiles(cfg config.Config) error {
	need := []MissingDataError{
		{Path: cfg.TreeFile, Producer: "region-crawl"},
		{Path: cfg.URLIndexFile, Producer: "region-crawl"},
	}
	if cfg.GazetteerSource != "postgres" {
		need = append(need,
			MissingDataError{Path: cfg.CitiesFile, Producer: "a GeoNames cities export"},
			MissingDataError{Path: cfg.CountriesFile, Producer: "a Name,Code country list"},
		)
	}
	for i := range need {
		if _, err := os.Stat(need[i].Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return &need[i]
			}
			return err
		}
	}
	return nil
}

func loadGazetteer(ctx context.Context, cfg config.Config) (*gazetteer.Table, error) {
	if cfg.GazetteerSource != "postgres" {
		t, err := gazetteer.LoadFiles(cfg.CitiesFile, cfg.CountriesFile)
		if err != nil {
			return nil, fmt.Errorf("load gazetteer: %w", err)
		}
		return t, nil
	}
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	st := store.AttachDB(db)
	defer st.Close()
	t, err := st.LoadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gazetteer from postgres: %w", err)
	}
	return t, nil
}
