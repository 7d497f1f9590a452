// 包 matcher：坐标 → 目录区域
// 背景：两种互不依赖的策略：限定子树的点入多边形判定，与全树叶子的最近质心。
// 约束：经纬度按平面坐标处理，不做投影修正；最近质心是刻意保留的近似，不替换为到边界的真实距离。
package matcher

import (
	"mapoc/internal/logger"
	"mapoc/internal/regiontree"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// 包围盒边长下限，退化多边形（线/点）也能进入 R-Tree
const minExtent = 1e-9

// bboxEntry：某节点一个多边形的包围盒
type bboxEntry struct {
	node regiontree.NodeID
	rect rtreego.Rect
}

func (e *bboxEntry) Bounds() rtreego.Rect { return e.rect }

// Candidate：最近质心排序中的一项
type Candidate struct {
	Node     regiontree.NodeID
	Distance float64
}

type Matcher struct {
	tree      *regiontree.Tree
	index     *rtreego.Rtree
	centroids map[regiontree.NodeID][]orb.Point
}

// 文档注释：构建匹配器
// 背景：一次性解析全部节点多边形，包围盒写入 R-Tree 作为点入多边形的候选过滤；叶子质心预先计算。
func New(tree *regiontree.Tree) *Matcher {
	m := &Matcher{
		tree:      tree,
		index:     rtreego.NewTree(2, 25, 50),
		centroids: make(map[regiontree.NodeID][]orb.Point),
	}
	polys := 0
	for _, id := range tree.Traverse(tree.Root()) {
		for _, p := range tree.Polygons(id) {
			m.index.Insert(&bboxEntry{node: id, rect: boundsRect(p.Bound())})
			polys++
			if tree.IsLeaf(id) {
				c, _ := planar.CentroidArea(p)
				m.centroids[id] = append(m.centroids[id], c)
			}
		}
	}
	logger.L().Debug("matcher_index_built", "nodes", tree.Len(), "polygons", polys)
	return m
}

func boundsRect(b orb.Bound) rtreego.Rect {
	lengths := []float64{
		math.Max(b.Max[0]-b.Min[0], minExtent),
		math.Max(b.Max[1]-b.Min[1], minExtent),
	}
	r, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, lengths)
	return r
}

// 文档注释：限定子树的包含查询
// 背景：遍历 scope 子树（含 scope 自身，层序）的每个节点，任一多边形严格包含该点即命中；落在边界上的点不算包含。
// 返回：命中节点（可能多个，重叠区域都会返回）；无命中返回空切片。
func (m *Matcher) Containing(pt orb.Point, scope regiontree.NodeID) []regiontree.NodeID {
	hits := make(map[regiontree.NodeID]bool)
	for _, s := range m.index.SearchIntersect(rtreego.Point{pt[0], pt[1]}.ToRect(minExtent)) {
		hits[s.(*bboxEntry).node] = true
	}
	out := []regiontree.NodeID{}
	if len(hits) == 0 {
		return out
	}
	for _, id := range m.tree.Traverse(scope) {
		if !hits[id] {
			continue
		}
		for _, p := range m.tree.Polygons(id) {
			if containsStrict(p, pt) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// ContainingIn：scope 按名称取层序第一个匹配节点；名称不存在返回空切片
func (m *Matcher) ContainingIn(pt orb.Point, scopeName string) []regiontree.NodeID {
	scope, ok := m.tree.Find(scopeName)
	if !ok {
		logger.L().Debug("matcher_scope_missing", "scope", scopeName)
		return []regiontree.NodeID{}
	}
	return m.Containing(pt, scope)
}

// 文档注释：全树最近质心
// 背景：对每个有多边形的叶子取点到其各多边形质心的最小欧氏距离，选全局最小者。
// 约束：距离相等时保留遍历顺序中先出现的节点；没有任何叶子带多边形时返回 false。
func (m *Matcher) Nearest(pt orb.Point) (regiontree.NodeID, float64, bool) {
	best := regiontree.NoNode
	bestD := math.Inf(1)
	for _, id := range m.tree.Leaves() {
		d, ok := m.leafDistance(id, pt)
		if !ok {
			continue
		}
		if d < bestD {
			best, bestD = id, d
		}
	}
	return best, bestD, best != regiontree.NoNode
}

// NearestN：按质心距离排序的前 n 个叶子（同距离保持遍历顺序），n<=0 返回全部
func (m *Matcher) NearestN(pt orb.Point, n int) []Candidate {
	var out []Candidate
	for _, id := range m.tree.Leaves() {
		if d, ok := m.leafDistance(id, pt); ok {
			out = append(out, Candidate{Node: id, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (m *Matcher) leafDistance(id regiontree.NodeID, pt orb.Point) (float64, bool) {
	cs := m.centroids[id]
	if len(cs) == 0 {
		return 0, false
	}
	d := math.Inf(1)
	for _, c := range cs {
		d = math.Min(d, planar.Distance(pt, c))
	}
	return d, true
}

// containsStrict：点在多边形内部且不在任何环的边上
func containsStrict(p orb.Polygon, pt orb.Point) bool {
	if !planar.PolygonContains(p, pt) {
		return false
	}
	for _, r := range p {
		if onRing(r, pt) {
			return false
		}
	}
	return true
}

func onRing(r orb.Ring, pt orb.Point) bool {
	for i := 0; i+1 < len(r); i++ {
		a, b := r[i], r[i+1]
		cross := (b[0]-a[0])*(pt[1]-a[1]) - (b[1]-a[1])*(pt[0]-a[0])
		if cross != 0 {
			continue
		}
		if pt[0] >= math.Min(a[0], b[0]) && pt[0] <= math.Max(a[0], b[0]) &&
			pt[1] >= math.Min(a[1], b[1]) && pt[1] <= math.Max(a[1], b[1]) {
			return true
		}
	}
	return false
}
