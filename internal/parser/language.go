package parser

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"

	"cv-agent-go/internal/types"
)

// LanguagePolicy 语言漂移检测策略。
// ExemptFields 是允许出现外语的字段路径白名单（人名、地名天然可能是外语），
// 具体内容由配置决定而不是写死在代码里。
type LanguagePolicy struct {
	Target       string   // 期望语言，如 "zh"、"en"
	ExemptFields []string // 豁免字段路径
}

// DefaultExemptFields 默认豁免字段
var DefaultExemptFields = []string{"identity.name", "identity.location"}

// 配置中的语言标签到 whatlanggo ISO-639-3 码的映射
var targetLangCodes = map[string]string{
	"zh": "cmn", "en": "eng", "es": "spa", "fr": "fra", "de": "deu",
	"ja": "jpn", "ko": "kor", "ru": "rus", "pt": "por", "ar": "arb",
}

// 检测对过短的文本不可靠，低于该长度直接跳过
const minDetectRunes = 12

// CheckLanguage 对记录中的主要文本字段做语言检测，返回违规描述列表。
// 违规只进入验证报告作为警告，不会导致提取失败。
func CheckLanguage(payload types.RecordPayload, policy LanguagePolicy) []string {
	expected, ok := targetLangCodes[policy.Target]
	if !ok || policy.Target == "" {
		return nil
	}

	exempt := map[string]bool{}
	for _, f := range policy.ExemptFields {
		exempt[f] = true
	}

	var violations []string
	check := func(path, value string) {
		if exempt[path] || utf8.RuneCountInString(value) < minDetectRunes {
			return
		}
		if looksMixedScript(value, policy.Target) {
			violations = append(violations, fmt.Sprintf("%s: 检测到与目标语言 %s 不符的文字", path, policy.Target))
			return
		}
		info := whatlanggo.Detect(value)
		if !info.IsReliable() {
			return
		}
		if got := whatlanggo.LangToString(info.Lang); got != expected {
			violations = append(violations, fmt.Sprintf("%s: 期望语言 %s，检测到 %s", path, policy.Target, got))
		}
	}

	check("identity.summary", payload.Identity.Summary)
	for i, exp := range payload.Experience {
		check(fmt.Sprintf("experience[%d].description", i), exp.Description)
	}
	for i, edu := range payload.Education {
		check(fmt.Sprintf("education[%d].description", i), edu.Description)
	}
	for i, proj := range payload.Projects {
		check(fmt.Sprintf("projects[%d].description", i), proj.Description)
	}
	for key, items := range payload.Sections {
		for i, item := range items {
			check(fmt.Sprintf("%s[%d].content", key, i), item.Content)
		}
	}
	return violations
}

// looksMixedScript 快速的字符区间检查：目标是中文时出现大段纯拉丁文本、
// 目标是英文时出现大段汉字，都视为脚本漂移。whatlanggo对这类混排内容
// 的判定不稳定，先用区间统计兜底。
func looksMixedScript(s string, target string) bool {
	var han, latin, letters int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	if letters < minDetectRunes {
		return false
	}
	switch target {
	case "zh":
		return han == 0 && latin*10 >= letters*9
	case "en":
		return han*10 >= letters*3
	}
	return false
}
