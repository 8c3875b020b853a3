package parser

import (
	"regexp"
	"strings"
)

// 最后手段的正则提取器。与主修复逻辑完全独立，带有语言耦合的启发式规则，
// 通过配置可以整体关闭或替换，不影响 RepairJSON 本身。

// partialFieldAllowlist 只抢救这些高价值字段，其余内容宁可丢弃
var partialFieldAllowlist = []string{
	"name", "email", "phone", "job_title", "company", "skills",
}

var (
	partialScalarRe = map[string]*regexp.Regexp{}
	partialListRe   = map[string]*regexp.Regexp{}
)

func init() {
	for _, field := range partialFieldAllowlist {
		partialScalarRe[field] = regexp.MustCompile(`"` + field + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
		partialListRe[field] = regexp.MustCompile(`"` + field + `"\s*:\s*\[([^\]]*)\]`)
	}
}

var quotedItemRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// PartialExtract 从结构上已无法修复的文本中抽取可辨认的 "field": "value"
// 和 "field": [...] 片段，拼出一个残缺对象。什么都没抽到时返回nil。
func PartialExtract(raw string) map[string]interface{} {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	out := make(map[string]interface{})
	for _, field := range partialFieldAllowlist {
		// 列表形式优先，避免把 ["Go","Rust"] 的首元素当成标量值
		if m := partialListRe[field].FindStringSubmatch(raw); m != nil {
			var items []interface{}
			for _, im := range quotedItemRe.FindAllStringSubmatch(m[1], -1) {
				if v := strings.TrimSpace(im[1]); v != "" {
					items = append(items, v)
				}
			}
			if len(items) > 0 {
				out[field] = items
				continue
			}
		}
		if m := partialScalarRe[field].FindStringSubmatch(raw); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				out[field] = v
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
