package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CrawlPagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapoc_crawl_pages_total",
		Help: "Total catalog listing pages fetched",
	})
	CrawlPageFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapoc_crawl_page_fail_total",
		Help: "Catalog listing pages skipped after a failure",
	})
	PolygonFetchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapoc_polygon_fetch_total",
		Help: "Boundary polygon files fetched",
	})
	PolygonFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapoc_polygon_fail_total",
		Help: "Boundary polygon fetch failures",
	})
	PolygonParseFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapoc_polygon_parse_fail_total",
		Help: "Boundary polygon texts that failed to parse",
	})
	HTTPRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapoc_http_retries_total",
		Help: "Transport-level request retries",
	})
	HTTPDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapoc_http_duration_ms",
		Help:    "Outbound HTTP request duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	})
	ResolveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapoc_resolve_total",
		Help: "Place resolutions by outcome",
	}, []string{"outcome"})
	FetchCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapoc_fetch_cache_hits_total",
		Help: "Bundle fetches served from the extraction cache",
	})
	FetchCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapoc_fetch_cache_misses_total",
		Help: "Bundle fetches that required a download",
	})
	LocateCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapoc_locate_redis_hits_total",
		Help: "Region decisions served from redis",
	})
)

func init() {
	prometheus.MustRegister(CrawlPagesTotal)
	prometheus.MustRegister(CrawlPageFailTotal)
	prometheus.MustRegister(PolygonFetchTotal)
	prometheus.MustRegister(PolygonFailTotal)
	prometheus.MustRegister(PolygonParseFailTotal)
	prometheus.MustRegister(HTTPRetriesTotal)
	prometheus.MustRegister(HTTPDurationMs)
	prometheus.MustRegister(ResolveTotal)
	prometheus.MustRegister(FetchCacheHitsTotal)
	prometheus.MustRegister(FetchCacheMissesTotal)
	prometheus.MustRegister(LocateCacheHitsTotal)
}

// 文档注释：返回 Prometheus 指标处理器
// 背景：region-crawl 运行时间较长，设置 METRICS_ADDR 后挂载到 /metrics 以观察进度与失败数。
func Handler() http.Handler { return promhttp.Handler() }
