package regiontree

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// yamlNode：树文件中的节点；polygon 为多行原文，YAML 块标量可无损保存
type yamlNode struct {
	Name     string     `yaml:"name"`
	URL      string     `yaml:"url,omitempty"`
	Polygon  string     `yaml:"polygon,omitempty"`
	Children []yamlNode `yaml:"children,omitempty"`
}

func (t *Tree) toYAML(id NodeID) yamlNode {
	n := t.nodes[id]
	out := yamlNode{Name: n.Name, URL: n.URL, Polygon: n.PolygonText}
	for _, c := range n.Children {
		out.Children = append(out.Children, t.toYAML(c))
	}
	return out
}

func (t *Tree) fromYAML(parent NodeID, y yamlNode) {
	id := t.AddChild(parent, y.Name, y.URL)
	t.nodes[id].PolygonText = y.Polygon
	for _, c := range y.Children {
		t.fromYAML(id, c)
	}
}

// Encode：以 YAML 写出整棵树（名称、url、polygon 与层级）
func (t *Tree) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t.toYAML(t.Root())); err != nil {
		return err
	}
	return enc.Close()
}

// Decode：读取 Encode 写出的树
func Decode(r io.Reader) (*Tree, error) {
	var root yamlNode
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode region tree: %w", err)
	}
	t := New(root.Name)
	t.nodes[0].URL = root.URL
	t.nodes[0].PolygonText = root.Polygon
	for _, c := range root.Children {
		t.fromYAML(t.Root(), c)
	}
	return t, nil
}

// Save：写入树文件（先写临时文件再改名，避免中断留下半截文件）
func (t *Tree) Save(path string) error {
	return writeAtomic(path, t.Encode)
}

// Load：读取树文件
func Load(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

type dumpNode struct {
	Name     string     `json:"name"`
	URL      *string    `json:"url,omitempty"`
	Children []dumpNode `json:"children,omitempty"`
}

func (t *Tree) toDump(id NodeID) dumpNode {
	n := t.nodes[id]
	out := dumpNode{Name: n.Name}
	if len(n.Children) == 0 {
		u := n.URL
		out.URL = &u
		return out
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, t.toDump(c))
	}
	return out
}

// WriteDump：供人工查看的树结构（叶子带 url，其余带 children），只写不读
func (t *Tree) WriteDump(w io.Writer) error {
	b, err := json.MarshalIndent(t.toDump(t.Root()), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// SaveDump：写入人工查看用的树文件
func (t *Tree) SaveDump(path string) error {
	return writeAtomic(path, t.WriteDump)
}

func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
