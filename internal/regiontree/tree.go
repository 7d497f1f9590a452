// 包 regiontree：区域目录树（洲 → 国家 → 下级区域），节点以数组下标寻址
// 背景：目录由离线爬取一次性构建，运行期只读加载；多边形在首次访问时解析并缓存。
// 约束：单根、无环；子节点顺序即发现顺序；Parent 为非拥有的回指。
package regiontree

import (
	"mapoc/internal/polycodec"
	"sync"

	"github.com/paulmach/orb"
)

// NodeID：节点在树中的稳定编号，根为 0
type NodeID int

// NoNode：根节点的 Parent
const NoNode NodeID = -1

type Node struct {
	ID          NodeID
	Name        string
	Parent      NodeID
	Children    []NodeID
	URL         string
	PolygonText string
}

type Tree struct {
	nodes []Node

	mu       sync.Mutex
	polygons map[NodeID][]orb.Polygon
}

// New：创建只含根节点的树
func New(rootName string) *Tree {
	t := &Tree{}
	t.nodes = append(t.nodes, Node{ID: 0, Name: rootName, Parent: NoNode})
	return t
}

func (t *Tree) Root() NodeID { return 0 }

func (t *Tree) Len() int { return len(t.nodes) }

// Node：返回节点副本；id 越界时 panic，与切片访问一致
func (t *Tree) Node(id NodeID) Node { return t.nodes[id] }

// AddChild：在 parent 下追加子节点并返回其编号
func (t *Tree) AddChild(parent NodeID, name, url string) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{ID: id, Name: name, Parent: parent, URL: url})
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

// SetURL：设置节点来源页面
func (t *Tree) SetURL(id NodeID, url string) { t.nodes[id].URL = url }

// SetPolygonText：附加边界多边形原文，并清除该节点的解析缓存
func (t *Tree) SetPolygonText(id NodeID, text string) {
	t.nodes[id].PolygonText = text
	t.mu.Lock()
	delete(t.polygons, id)
	t.mu.Unlock()
}

func (t *Tree) IsLeaf(id NodeID) bool { return len(t.nodes[id].Children) == 0 }

// Traverse：自 from 起的层序遍历（含 from 本身）
func (t *Tree) Traverse(from NodeID) []NodeID {
	out := []NodeID{from}
	for i := 0; i < len(out); i++ {
		out = append(out, t.nodes[out[i]].Children...)
	}
	return out
}

// Find：层序遍历中第一个名称相等的节点
func (t *Tree) Find(name string) (NodeID, bool) {
	for _, id := range t.Traverse(t.Root()) {
		if t.nodes[id].Name == name {
			return id, true
		}
	}
	return NoNode, false
}

// Leaves：层序遍历中的全部叶子
func (t *Tree) Leaves() []NodeID {
	var out []NodeID
	for _, id := range t.Traverse(t.Root()) {
		if t.IsLeaf(id) {
			out = append(out, id)
		}
	}
	return out
}

// Path：自根至 id 的名称序列
func (t *Tree) Path(id NodeID) []string {
	var rev []string
	for cur := id; cur != NoNode; cur = t.nodes[cur].Parent {
		rev = append(rev, t.nodes[cur].Name)
	}
	out := make([]string, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// Polygons：节点的边界多边形，首次访问时解析；无原文或解析失败时为空
func (t *Tree) Polygons(id NodeID) []orb.Polygon {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.polygons[id]; ok {
		return p
	}
	if t.polygons == nil {
		t.polygons = make(map[NodeID][]orb.Polygon)
	}
	n := t.nodes[id]
	p := polycodec.ParseOrEmpty(n.Name, n.PolygonText)
	t.polygons[id] = p
	return p
}
