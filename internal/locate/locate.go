// 包 locate：地名 → 目录区域 → 本地数据目录的完整流程
// 背景：区域决策（区域名 + 下载地址）可选缓存在 Redis；本地目录只由 fetcher 的磁盘缓存决定。
package locate

import (
	"context"
	"errors"
	"fmt"
	"mapoc/internal/catalog"
	"mapoc/internal/fetcher"
	"mapoc/internal/logger"
	"mapoc/internal/matcher"
	"mapoc/internal/metrics"
	"mapoc/internal/regiontree"
	"mapoc/internal/resolver"
	"mapoc/internal/textfold"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
)

// 交互模式下最近质心候选的数量
const nearestChoices = 5

var ErrNoRegion = errors.New("no region for place")

type Request struct {
	City    string
	Country string
	// Interactive：多个同名城市或最近区域交由 Chooser 选择；结果不写入缓存
	Interactive bool
	// Scoped：在国家子树内做点入多边形判定，否则全树最近质心
	Scoped bool
}

type Answer struct {
	Place       resolver.Place
	Region      string
	DownloadURL string
	Dir         string
	Cached      bool
}

// decision：缓存中的区域决策
type decision struct {
	Region      string  `json:"region"`
	DownloadURL string  `json:"download_url"`
	Lon         float64 `json:"lon"`
	Lat         float64 `json:"lat"`
	City        string  `json:"city"`
	CountryCode string  `json:"country_code"`
}

type Locator struct {
	cat      *catalog.Catalog
	resolver *resolver.Resolver
	matcher  *matcher.Matcher
	fetcher  *fetcher.Fetcher
	chooser  resolver.Chooser

	rc  *redis.Client
	ttl time.Duration
}

// New：chooser 为 nil 时总选第一项；rc 为 nil 时不缓存
func New(cat *catalog.Catalog, f *fetcher.Fetcher, chooser resolver.Chooser, rc *redis.Client, ttl time.Duration) *Locator {
	if chooser == nil {
		chooser = resolver.FirstChooser{}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Locator{
		cat:      cat,
		resolver: resolver.New(cat.Gazetteer, chooser),
		matcher:  matcher.New(cat.Tree),
		fetcher:  f,
		chooser:  chooser,
		rc:       rc,
		ttl:      ttl,
	}
}

// 文档注释：定位并准备区域数据
// 背景：解析城市 → 选区域 → 解析下载地址 → 下载解压（幂等）。
// 异常：无匹配城市返回 *resolver.NoMatchError；无区域返回 ErrNoRegion；无下载地址返回 *fetcher.NoDownloadError。
func (l *Locator) Locate(ctx context.Context, req Request) (*Answer, error) {
	key := cacheKey(req)
	if l.rc != nil && !req.Interactive {
		if s, _ := l.rc.Get(ctx, key).Result(); s != "" {
			var d decision
			if err := json.Unmarshal([]byte(s), &d); err == nil && d.DownloadURL != "" {
				metrics.LocateCacheHitsTotal.Inc()
				logger.Component("locate").Debug("locate_cache_hit", "key", key, "region", d.Region)
				return l.finish(ctx, d, true)
			}
		}
	}

	place, err := l.resolver.ResolveOne(req.City, req.Country, resolver.Options{
		Interactive: req.Interactive,
		FirstOnly:   !req.Interactive,
	})
	if err != nil {
		return nil, err
	}
	region, err := l.pickRegion(place, req)
	if err != nil {
		return nil, err
	}
	name := l.cat.Tree.Node(region).Name
	u, err := fetcher.ResolveDownloadURL(l.cat.URLs, name)
	if err != nil {
		return nil, err
	}
	d := decision{
		Region:      name,
		DownloadURL: u,
		Lon:         place.Point.Lon(),
		Lat:         place.Point.Lat(),
		City:        place.City.Name,
		CountryCode: place.City.CountryCode,
	}
	logger.Component("locate").Info("locate_region", "city", d.City, "country_code", d.CountryCode, "region", name, "scoped", req.Scoped)
	if l.rc != nil && !req.Interactive {
		b, _ := json.Marshal(d)
		_ = l.rc.Set(ctx, key, string(b), l.ttl).Err()
	}
	return l.finish(ctx, d, false)
}

func (l *Locator) finish(ctx context.Context, d decision, cached bool) (*Answer, error) {
	dir, err := l.fetcher.Fetch(ctx, d.DownloadURL)
	if err != nil {
		return nil, err
	}
	a := &Answer{Region: d.Region, DownloadURL: d.DownloadURL, Dir: dir, Cached: cached}
	a.Place.Point = pointOf(d.Lon, d.Lat)
	a.Place.City.Name = d.City
	a.Place.City.CountryCode = d.CountryCode
	return a, nil
}

// pickRegion：限定国家时在城市所属国家（按国家表名称）子树内取包含该点的最深节点（层序最后一个）；否则取最近质心叶子
func (l *Locator) pickRegion(place resolver.Place, req Request) (regiontree.NodeID, error) {
	if req.Scoped {
		// 目录节点名与国家表名称一致；用户输入的大小写可能不同
		country, ok := l.cat.Gazetteer.CountryName(place.City.CountryCode)
		if !ok {
			return regiontree.NoNode, fmt.Errorf("%w: country code %q has no name", ErrNoRegion, place.City.CountryCode)
		}
		hits := l.matcher.ContainingIn(place.Point, country)
		if len(hits) == 0 {
			return regiontree.NoNode, fmt.Errorf("%w: %s is not inside any region of %q", ErrNoRegion, place.City.Name, country)
		}
		return hits[len(hits)-1], nil
	}
	if req.Interactive {
		cands := l.matcher.NearestN(place.Point, nearestChoices)
		if len(cands) == 0 {
			return regiontree.NoNode, fmt.Errorf("%w: no region has a polygon", ErrNoRegion)
		}
		labels := make([]string, len(cands))
		for i, c := range cands {
			labels[i] = l.cat.Tree.Node(c.Node).Name
		}
		i, err := l.chooser.Choose(labels)
		if err != nil {
			return regiontree.NoNode, err
		}
		if i < 0 || i >= len(cands) {
			return regiontree.NoNode, fmt.Errorf("chooser returned index %d for %d regions", i, len(cands))
		}
		return cands[i].Node, nil
	}
	id, _, ok := l.matcher.Nearest(place.Point)
	if !ok {
		return regiontree.NoNode, fmt.Errorf("%w: no region has a polygon", ErrNoRegion)
	}
	return id, nil
}

func pointOf(lon, lat float64) orb.Point { return orb.Point{lon, lat} }

func cacheKey(req Request) string {
	return "locate:" + textfold.Key(req.City) + ":" + textfold.Key(req.Country) + ":" + strconv.FormatBool(req.Scoped)
}
