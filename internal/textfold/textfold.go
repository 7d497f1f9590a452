// 包 textfold：地名 ASCII 折叠（去重音、常见连字转写），用于目录节点命名与地名库匹配键
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// 无法通过分解去掉的字母，按常见转写替换
var special = map[rune]string{
	'ß': "ss", 'ẞ': "SS",
	'Æ': "AE", 'æ': "ae",
	'Œ': "OE", 'œ': "oe",
	'Ø': "O", 'ø': "o",
	'Ł': "L", 'ł': "l",
	'Đ': "D", 'đ': "d",
	'Ð': "D", 'ð': "d",
	'Þ': "Th", 'þ': "th",
	'ı': "i", 'ħ': "h", 'Ħ': "H",
	'‘': "'", '’': "'", '“': "\"", '”': "\"",
	'–': "-", '—': "-",
}

// ASCII：返回 s 的 ASCII 近似形式
// 约束：先做兼容分解并移除组合附加符号，再替换特殊字母；其余非 ASCII 字符丢弃
func ASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
			continue
		}
		if rep, ok := special[r]; ok {
			b.WriteString(rep)
		}
	}
	return b.String()
}

// Key：匹配键，ASCII 折叠后转小写
func Key(s string) string {
	return strings.ToLower(ASCII(s))
}
