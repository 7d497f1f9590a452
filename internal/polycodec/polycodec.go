// 包 polycodec：解析区域边界多边形文本（Geofabrik .poly 格式，行以 "_" 或换行分隔）
package polycodec

import (
	"fmt"
	"mapoc/internal/logger"
	"mapoc/internal/metrics"
	"strconv"
	"strings"
	"unicode"

	"github.com/paulmach/orb"
)

// ParseError：坐标行含非数字记号
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("polygon line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// 文档注释：解析多边形文本
// 背景：END 结束当前多边形；纯字母/连字符行为标签，纯数字行为环序号，均忽略；其余行为空白分隔的坐标。
// 约束：每个多边形只有一个外环，输出时闭合；任一坐标行解析失败则整体返回 *ParseError。
func Parse(text string) ([]orb.Polygon, error) {
	var polys []orb.Polygon
	var cur orb.Ring
	lines := strings.FieldsFunc(strings.TrimSpace(text), func(r rune) bool {
		return r == '_' || r == '\n' || r == '\r'
	})
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case line == "END":
			if len(cur) > 0 {
				polys = append(polys, orb.Polygon{closeRing(cur)})
			}
			cur = nil
		case isLabel(line), isCounter(line):
			continue
		default:
			pt, err := parsePoint(line)
			if err != nil {
				return nil, &ParseError{Line: i + 1, Text: line, Err: err}
			}
			cur = append(cur, pt)
		}
	}
	return polys, nil
}

// ParseOrEmpty：解析失败降级为“无多边形”，记录日志与指标，不向上传播
func ParseOrEmpty(name, text string) []orb.Polygon {
	if text == "" {
		return nil
	}
	polys, err := Parse(text)
	if err != nil {
		metrics.PolygonParseFailTotal.Inc()
		logger.L().Warn("polygon_parse_error", "region", name, "err", err)
		return nil
	}
	return polys
}

func isLabel(s string) bool {
	letters := 0
	for _, r := range s {
		if r == '-' {
			continue
		}
		if !unicode.IsLetter(r) {
			return false
		}
		letters++
	}
	return letters > 0
}

func isCounter(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parsePoint(line string) (orb.Point, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return orb.Point{}, fmt.Errorf("want at least 2 coordinates, got %d", len(fields))
	}
	var vals [2]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return orb.Point{}, err
		}
		if i < 2 {
			vals[i] = v
		}
	}
	return orb.Point{vals[0], vals[1]}, nil
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 1 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}
