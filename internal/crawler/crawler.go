// 包 crawler：爬取层级目录站点，构建区域树与链接索引
// 背景：同步、单线程的深度优先下降；页面失败只影响该子树，计数后继续。
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mapoc/internal/httpclient"
	"mapoc/internal/logger"
	"mapoc/internal/metrics"
	"mapoc/internal/regiontree"
	"mapoc/internal/textfold"
	"net/url"
	"strings"

	"github.com/cheggaaa/pb/v3"
)

// PolygonSuffix：边界多边形文件后缀
const PolygonSuffix = ".poly"

// 单个页面或多边形文件的读取上限
const maxBody = 16 << 20

var ErrRootUnavailable = errors.New("catalog root unavailable")

// Stats：爬取汇总；失败计数是页面失败唯一的可见结果
type Stats struct {
	Pages           int
	PageFailures    int
	Polygons        int
	PolygonFailures int
}

type Result struct {
	Tree  *regiontree.Tree
	URLs  regiontree.URLIndex
	Stats Stats
}

type Builder struct {
	client *httpclient.Client
	log    *slog.Logger

	// Progress：非 nil 时在多边形阶段输出进度条
	Progress io.Writer
}

func NewBuilder(client *httpclient.Client) *Builder {
	return &Builder{client: client, log: logger.Component("crawler")}
}

// crawl：一次 Build 的可变状态
type crawl struct {
	b       *Builder
	tree    *regiontree.Tree
	urls    regiontree.URLIndex
	visited map[string]bool
	stats   Stats
}

// 文档注释：构建区域目录
// 背景：第一遍按页面结构递归建树，非页面链接记入当前节点的链接索引；第二遍为带 .poly 链接的节点拉取多边形原文。
// 异常：根页面不可用返回 ErrRootUnavailable；其余页面失败不返回错误，仅计入 Stats。
func (b *Builder) Build(ctx context.Context, rootURL string) (*Result, error) {
	base, err := url.Parse(rootURL)
	if err != nil {
		return nil, fmt.Errorf("parse root url: %w", err)
	}
	c := &crawl{b: b, urls: regiontree.URLIndex{}, visited: make(map[string]bool)}
	links, err := c.fetchListing(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootUnavailable, err)
	}
	c.tree = regiontree.New("")
	c.tree.SetURL(c.tree.Root(), base.String())
	c.descend(ctx, c.tree.Root(), links)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.log.Info("crawl_structure_done", "nodes", c.tree.Len(), "pages", c.stats.Pages, "page_failures", c.stats.PageFailures)

	c.attachPolygons(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.log.Info("crawl_done",
		"nodes", c.tree.Len(),
		"pages", c.stats.Pages,
		"page_failures", c.stats.PageFailures,
		"polygons", c.stats.Polygons,
		"polygon_failures", c.stats.PolygonFailures,
	)
	return &Result{Tree: c.tree, URLs: c.urls, Stats: c.stats}, nil
}

func (c *crawl) fetchListing(ctx context.Context, u *url.URL) ([]link, error) {
	c.visited[u.String()] = true
	c.b.log.Debug("crawl_page", "url", u.String())
	body, ct, err := c.b.client.GetBody(ctx, u.String(), maxBody)
	if err != nil {
		return nil, err
	}
	c.stats.Pages++
	metrics.CrawlPagesTotal.Inc()
	return parseListing(body, ct, u)
}

// descend：处理节点 id 的页面链接；页面链接递归为子节点，其余记入 id 名下
func (c *crawl) descend(ctx context.Context, id regiontree.NodeID, links []link) {
	name := c.tree.Node(id).Name
	for _, l := range links {
		if ctx.Err() != nil {
			return
		}
		if !isPage(l.Href) {
			c.urls.Add(name, l.Href)
			continue
		}
		if c.visited[l.Href] {
			c.b.log.Debug("crawl_page_seen", "url", l.Href)
			continue
		}
		u, err := url.Parse(l.Href)
		if err != nil {
			c.pageFailed(l.Href, err)
			continue
		}
		sub, err := c.fetchListing(ctx, u)
		if err != nil {
			c.pageFailed(l.Href, err)
			continue
		}
		child := c.tree.AddChild(id, textfold.ASCII(strings.TrimSpace(l.Text)), l.Href)
		c.descend(ctx, child, sub)
	}
}

func (c *crawl) pageFailed(u string, err error) {
	c.stats.PageFailures++
	metrics.CrawlPageFailTotal.Inc()
	c.b.log.Warn("crawl_page_error", "url", u, "err", err)
}

// attachPolygons：层序遍历，带 .poly 链接的节点拉取第一个多边形文件并附加原文
func (c *crawl) attachPolygons(ctx context.Context) {
	var todo []regiontree.NodeID
	var polyURLs []string
	for _, id := range c.tree.Traverse(c.tree.Root()) {
		if u, ok := c.urls.FirstWithSuffix(c.tree.Node(id).Name, PolygonSuffix); ok {
			todo = append(todo, id)
			polyURLs = append(polyURLs, u)
		}
	}
	var bar *pb.ProgressBar
	if c.b.Progress != nil {
		bar = pb.New(len(todo))
		bar.SetWriter(c.b.Progress)
		bar.Start()
		defer bar.Finish()
	}
	for i, id := range todo {
		if ctx.Err() != nil {
			return
		}
		if bar != nil {
			bar.Increment()
		}
		body, _, err := c.b.client.GetBody(ctx, polyURLs[i], maxBody)
		if err != nil {
			c.stats.PolygonFailures++
			metrics.PolygonFailTotal.Inc()
			c.b.log.Warn("crawl_polygon_error", "region", c.tree.Node(id).Name, "url", polyURLs[i], "err", err)
			continue
		}
		c.tree.SetPolygonText(id, string(body))
		c.stats.Polygons++
		metrics.PolygonFetchTotal.Inc()
	}
}
