package regiontree

import (
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

// URLIndex：节点名称 → 该页面下发现的非页面链接（按发现顺序，未按后缀筛选）
type URLIndex map[string][]string

// Add：追加链接
func (u URLIndex) Add(name, link string) {
	u[name] = append(u[name], link)
}

// FirstWithSuffix：name 下第一个以 suffix 结尾的链接
func (u URLIndex) FirstWithSuffix(name, suffix string) (string, bool) {
	for _, link := range u[name] {
		if strings.HasSuffix(link, suffix) {
			return link, true
		}
	}
	return "", false
}

// Save：写出 JSON 对象 name → [url...]
func (u URLIndex) Save(path string) error {
	return writeAtomic(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(u)
	})
}

// LoadURLIndex：读取 Save 写出的索引
func LoadURLIndex(path string) (URLIndex, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx := URLIndex{}
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, err
	}
	return idx, nil
}
