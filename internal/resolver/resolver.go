// 包 resolver：地名解析（名称 + 可选国家 → 候选城市），多候选时按人口排序并按策略消歧
package resolver

import (
	"errors"
	"fmt"
	"mapoc/internal/gazetteer"
	"mapoc/internal/logger"
	"mapoc/internal/metrics"
	"mapoc/internal/textfold"
	"sort"
	"strings"

	"github.com/paulmach/orb"
)

var (
	ErrNoMatch        = errors.New("no matching place")
	ErrAmbiguous      = errors.New("ambiguous place")
	ErrUnknownCountry = errors.New("unknown country")
)

// NoMatchError：名称（与国家）在地名库中无结果
type NoMatchError struct {
	City    string
	Country string
}

func (e *NoMatchError) Error() string {
	if e.Country != "" {
		return fmt.Sprintf("city %q and country %q did not give any results", e.City, e.Country)
	}
	return fmt.Sprintf("city %q did not give any results", e.City)
}

func (e *NoMatchError) Is(target error) bool { return target == ErrNoMatch }

// Options：Interactive 时多候选交由 Chooser 选择；FirstOnly 直接取排名第一
type Options struct {
	Interactive bool
	FirstOnly   bool
}

// Result：候选按人口降序；空结果与错误区分
type Result struct {
	Candidates []gazetteer.City
}

func (r Result) Empty() bool { return len(r.Candidates) == 0 }

// Single：恰好一个候选时返回它
func (r Result) Single() (gazetteer.City, bool) {
	if len(r.Candidates) != 1 {
		return gazetteer.City{}, false
	}
	return r.Candidates[0], true
}

// Place：选定的城市及其平面坐标（经度, 纬度）
type Place struct {
	City  gazetteer.City
	Point orb.Point
}

func NewPlace(c gazetteer.City) Place {
	return Place{City: c, Point: orb.Point{c.Longitude, c.Latitude}}
}

type Resolver struct {
	table   *gazetteer.Table
	chooser Chooser
}

// New：chooser 为 nil 时使用 FirstChooser，批量调用不会阻塞
func New(table *gazetteer.Table, chooser Chooser) *Resolver {
	if chooser == nil {
		chooser = FirstChooser{}
	}
	return &Resolver{table: table, chooser: chooser}
}

// 文档注释：解析地名
// 背景：名称按 ASCII 折叠、大小写不敏感精确匹配；给出国家时先按名称（首个大小写不敏感匹配）取国家代码再过滤。
// 返回：0 个候选为空结果；1 个直接返回；多个时 FirstOnly 取第一，Interactive 交由 Chooser，否则返回完整排序列表。
// 异常：国家名称无法识别返回 ErrUnknownCountry；Chooser 失败原样返回。
func (r *Resolver) Resolve(city, country string, opts Options) (Result, error) {
	key := textfold.Key(city)
	code := ""
	if country != "" {
		c, ok := r.countryCode(country)
		if !ok {
			metrics.ResolveTotal.WithLabelValues("unknown_country").Inc()
			return Result{}, fmt.Errorf("%w: %q", ErrUnknownCountry, country)
		}
		code = c
	}
	var cands []gazetteer.City
	for _, c := range r.table.Cities {
		if c.Key != key {
			continue
		}
		if code != "" && c.CountryCode != code {
			continue
		}
		cands = append(cands, c)
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Population > cands[j].Population })
	logger.L().Debug("resolve_candidates", "city", city, "country", country, "count", len(cands))

	switch {
	case len(cands) == 0:
		metrics.ResolveTotal.WithLabelValues("no_match").Inc()
		return Result{}, nil
	case len(cands) == 1:
		metrics.ResolveTotal.WithLabelValues("single").Inc()
		return Result{Candidates: cands}, nil
	case opts.FirstOnly:
		metrics.ResolveTotal.WithLabelValues("first").Inc()
		return Result{Candidates: cands[:1]}, nil
	case opts.Interactive:
		i, err := r.chooser.Choose(r.labels(cands))
		if err != nil {
			return Result{}, err
		}
		if i < 0 || i >= len(cands) {
			return Result{}, fmt.Errorf("chooser returned index %d for %d candidates", i, len(cands))
		}
		metrics.ResolveTotal.WithLabelValues("chosen").Inc()
		return Result{Candidates: cands[i : i+1]}, nil
	default:
		metrics.ResolveTotal.WithLabelValues("many").Inc()
		return Result{Candidates: cands}, nil
	}
}

// ResolveOne：单结果场景；空结果返回 *NoMatchError，仍有多个候选时返回 ErrAmbiguous
func (r *Resolver) ResolveOne(city, country string, opts Options) (Place, error) {
	res, err := r.Resolve(city, country, opts)
	if err != nil {
		return Place{}, err
	}
	if res.Empty() {
		return Place{}, &NoMatchError{City: city, Country: country}
	}
	c, ok := res.Single()
	if !ok {
		return Place{}, fmt.Errorf("%w: %q has %d candidates", ErrAmbiguous, city, len(res.Candidates))
	}
	return NewPlace(c), nil
}

// countryCode：国家名称的首个大小写不敏感匹配；重名国家不做消歧
func (r *Resolver) countryCode(name string) (string, bool) {
	for _, c := range r.table.Countries {
		if strings.EqualFold(c.Name, name) {
			return c.Code, true
		}
	}
	return "", false
}

func (r *Resolver) labels(cands []gazetteer.City) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		country, ok := r.table.CountryName(c.CountryCode)
		if !ok {
			country = c.CountryCode
		}
		out[i] = fmt.Sprintf("%s (%s)", c.Name, country)
	}
	return out
}
