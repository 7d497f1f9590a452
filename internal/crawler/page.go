package crawler

import (
	"bytes"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// link：目录页表格中的一条链接
type link struct {
	Text string
	Href string
}

// listingTables：子区域表与特殊子区域表，按此顺序读取
var listingTables = []string{"table#subregions", "table#specialsubregions"}

// parseListing：读取目录页链接（每行第一个单元格内的 a 标签）
// 约束：同一页面内按显示文本去重，位置取首次出现，href 取最后一次出现；返回绝对地址。
func parseListing(body []byte, contentType string, base *url.URL) ([]link, error) {
	data := body
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	if dec, err := enc.NewDecoder().Bytes(body); err == nil {
		data = dec
	} else if !utf8.Valid(body) {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var out []link
	pos := make(map[string]int)
	for _, sel := range listingTables {
		doc.Find(sel).Each(func(_ int, table *goquery.Selection) {
			table.Find("tr").Each(func(_ int, row *goquery.Selection) {
				row.Find("td").First().Find("a").Each(func(_ int, a *goquery.Selection) {
					href, ok := a.Attr("href")
					if !ok || strings.TrimSpace(href) == "" {
						return
					}
					ref, err := url.Parse(strings.TrimSpace(href))
					if err != nil {
						return
					}
					text := a.Text()
					abs := base.ResolveReference(ref).String()
					if i, seen := pos[text]; seen {
						out[i].Href = abs
						return
					}
					pos[text] = len(out)
					out = append(out, link{Text: text, Href: abs})
				})
			})
		})
	}
	return out, nil
}

func isPage(href string) bool {
	return strings.HasSuffix(href, ".html")
}
