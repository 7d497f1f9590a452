// 包 config：集中读取运行配置（环境变量 + .env），替代散落在各模块的路径常量
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultCatalogURL：区域目录的源站（Geofabrik 下载页）
const DefaultCatalogURL = "https://download.geofabrik.de/"

// Config：一次运行所需的全部路径与参数
// 约束：路径均为绝对或相对当前工作目录；DataRoot 下的文件由 region-crawl 与数据脚本生成
type Config struct {
	DataRoot      string
	TreeFile      string
	TreeDumpFile  string
	URLIndexFile  string
	CitiesFile    string
	CountriesFile string
	ShpCacheDir   string

	CatalogURL  string
	HTTPTimeout time.Duration
	HTTPRetries int
	HTTPRate    int

	GazetteerSource string // file | postgres
	LocateCacheTTL  time.Duration
	MetricsAddr     string
}

// LoadEnvFiles：加载工作目录与数据目录下的 .env；文件缺失时静默忽略
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(dataRoot(), ".env"))
}

// Load：读取环境变量构建配置，未设置的项使用默认值
func Load() Config {
	root := dataRoot()
	c := Config{
		DataRoot:        root,
		TreeFile:        envOr("REGION_TREE_FILE", filepath.Join(root, "geofabrik_tree.yaml")),
		TreeDumpFile:    envOr("REGION_TREE_DUMP", filepath.Join(root, "geofabrik_tree.txt")),
		URLIndexFile:    envOr("REGION_URLS_FILE", filepath.Join(root, "geofabrik_urls.json")),
		CitiesFile:      envOr("CITIES_FILE", filepath.Join(root, "cities_geonames_1000.csv")),
		CountriesFile:   envOr("COUNTRIES_FILE", filepath.Join(root, "countries.csv")),
		ShpCacheDir:     envOr("SHP_CACHE_DIR", filepath.Join(root, "shp")),
		CatalogURL:      envOr("CATALOG_URL", DefaultCatalogURL),
		HTTPTimeout:     time.Duration(envInt("HTTP_TIMEOUT_S", 60)) * time.Second,
		HTTPRetries:     envInt("HTTP_RETRIES", 3),
		HTTPRate:        envInt("HTTP_RATE_PER_SEC", 0),
		GazetteerSource: envOr("GAZETTEER_SOURCE", "file"),
		LocateCacheTTL:  time.Duration(envInt("LOCATE_CACHE_TTL_S", 86400)) * time.Second,
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
	}
	if c.HTTPRetries < 1 {
		c.HTTPRetries = 1
	}
	return c
}

func dataRoot() string {
	if v := os.Getenv("MAPOC_DATA_ROOT"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mapoc"
	}
	return filepath.Join(home, ".mapoc")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envInt：解析失败时回退默认值，与 REDIS_DB 等旧配置保持同样的宽松策略
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
