package locate

import (
	"context"
	"io"
	"mapoc/internal/catalog"
	"mapoc/internal/logger"
	"mapoc/internal/matcher"

	"github.com/cheggaaa/pb/v3"
)

// 文档注释：批量匹配地名库全部城市所在的区域
// 背景：逐城市在其国家子树内做点入多边形判定，结果按 ASCII 名称汇总（同名城市的区域依次追加）。
// 约束：国家代码不在国家表中的城市跳过；progress 非 nil 时输出进度条。
// 返回：城市名 → 包含它的区域名（层序）。
func CityRegions(ctx context.Context, cat *catalog.Catalog, m *matcher.Matcher, progress io.Writer) (map[string][]string, error) {
	out := make(map[string][]string)
	var bar *pb.ProgressBar
	if progress != nil {
		bar = pb.New(len(cat.Gazetteer.Cities))
		bar.SetWriter(progress)
		bar.Start()
		defer bar.Finish()
	}
	skipped := 0
	for _, c := range cat.Gazetteer.Cities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if bar != nil {
			bar.Increment()
		}
		country, ok := cat.Gazetteer.CountryName(c.CountryCode)
		if !ok {
			skipped++
			continue
		}
		name := c.ASCIIName
		if name == "" {
			name = c.Name
		}
		for _, id := range m.ContainingIn(pointOf(c.Longitude, c.Latitude), country) {
			out[name] = append(out[name], cat.Tree.Node(id).Name)
		}
	}
	logger.Component("locate").Info("city_regions_done", "cities", len(cat.Gazetteer.Cities), "matched", len(out), "skipped", skipped)
	return out, nil
}
