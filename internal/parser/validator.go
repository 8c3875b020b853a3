package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cv-agent-go/internal/types"
)

// ErrTopLevelNotObject 顶层容器不是JSON对象时的校验错误。
// 这是规范化唯一的硬性拒绝条件：缺失的字段一律降级为空值而不是报错，
// 因为生成服务的输出本身就是有噪声的，硬拒绝会丢掉本可用的部分数据。
var ErrTopLevelNotObject = errors.New("规范化失败: 顶层结构不是对象")

// 各章节常见的别名拼写。LLM在不同轮次会使用不同的键名，这里统一收敛。
var (
	identityKeys       = []string{"identity", "personal_info", "basic_info", "contact", "personal"}
	experienceKeys     = []string{"experience", "work_experience", "work_history", "jobs", "employment"}
	educationKeys      = []string{"education", "education_history", "educations", "academic"}
	skillsKeys         = []string{"skills", "skill_list", "technical_skills"}
	languagesKeys      = []string{"languages", "language_list"}
	projectsKeys       = []string{"projects", "project_experience", "portfolio"}
	certificationsKeys = []string{"certifications", "certificates", "licenses"}

	// 顶层平铺身份字段时参与规范化的键，避免它们再落进metadata
	flatIdentityKeys = []string{
		"name", "full_name", "candidate_name", "email", "email_address",
		"phone", "phone_number", "mobile", "tel", "location", "city", "address",
		"website", "site", "homepage", "linkedin", "linkedin_url",
		"github", "github_url", "summary", "about", "profile", "introduction",
	}
)

// NormalizeDraft 把任意解析树规范化成草稿记录。
// 策略是"宽进严出"：所有期望的列表字段缺失或类型不符时取空列表，
// 标量缺失时取空字符串；缺少ID的列表项在此处按 {section}-{index+1} 生成。
func NormalizeDraft(tree interface{}) (*types.DraftRecord, error) {
	root, ok := tree.(map[string]interface{})
	if !ok {
		// 顶层数组视作经历列表的简写，包一层再处理
		if arr, isArr := tree.([]interface{}); isArr {
			root = map[string]interface{}{"experience": arr}
		} else {
			return nil, ErrTopLevelNotObject
		}
	}

	draft := &types.DraftRecord{}
	consumed := map[string]bool{}

	if m, key := firstMap(root, identityKeys); m != nil {
		draft.Identity = normalizeIdentity(m)
		consumed[key] = true
	} else {
		// 没有独立的身份对象时，顶层可能直接平铺了身份字段
		draft.Identity = normalizeIdentity(root)
		for _, k := range flatIdentityKeys {
			if _, exists := root[k]; exists {
				consumed[k] = true
			}
		}
	}

	if list, key := firstList(root, experienceKeys); key != "" {
		draft.Experience = normalizeExperience(list)
		consumed[key] = true
	}
	if list, key := firstList(root, educationKeys); key != "" {
		draft.Education = normalizeEducation(list)
		consumed[key] = true
	}
	if list, key := firstList(root, skillsKeys); key != "" {
		draft.Skills = normalizeStringList(list)
		consumed[key] = true
	}
	if list, key := firstList(root, languagesKeys); key != "" {
		draft.Languages = normalizeStringList(list)
		consumed[key] = true
	}
	if list, key := firstList(root, projectsKeys); key != "" {
		draft.Projects = normalizeProjects(list)
		consumed[key] = true
	}
	if list, key := firstList(root, certificationsKeys); key != "" {
		draft.Certifications = normalizeCertifications(list)
		consumed[key] = true
	}

	draft.Sections = map[types.GenericSectionKey][]types.GenericItem{}
	for _, section := range types.GenericSectionKeys {
		if list, key := firstList(root, []string{string(section)}); key != "" {
			draft.Sections[section] = normalizeGenericItems(string(section), list)
			consumed[key] = true
		}
	}

	// 提取到但无法归类的标量进metadata，不丢弃
	draft.Metadata = map[string]string{}
	for k, v := range root {
		if consumed[k] || isKnownKey(k) {
			continue
		}
		if s := asString(v); s != "" {
			draft.Metadata[k] = s
		}
	}

	ensureListDefaults(draft)
	return draft, nil
}

// MergeStageTree 把单个阶段的输出树叠加到汇总树上，已有键不覆盖
func MergeStageTree(dst map[string]interface{}, stage map[string]interface{}) {
	for k, v := range stage {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}

func isKnownKey(k string) bool {
	for _, group := range [][]string{
		identityKeys, experienceKeys, educationKeys, skillsKeys,
		languagesKeys, projectsKeys, certificationsKeys,
	} {
		for _, alias := range group {
			if k == alias {
				return true
			}
		}
	}
	for _, s := range types.GenericSectionKeys {
		if k == string(s) {
			return true
		}
	}
	return false
}

func ensureListDefaults(d *types.DraftRecord) {
	if d.Experience == nil {
		d.Experience = []types.ExperienceItem{}
	}
	if d.Education == nil {
		d.Education = []types.EducationItem{}
	}
	if d.Skills == nil {
		d.Skills = []string{}
	}
	if d.Languages == nil {
		d.Languages = []string{}
	}
	if d.Projects == nil {
		d.Projects = []types.ProjectItem{}
	}
	if d.Certifications == nil {
		d.Certifications = []types.CertificationItem{}
	}
}

func normalizeIdentity(m map[string]interface{}) types.Identity {
	return types.Identity{
		Name:     pick(m, "name", "full_name", "candidate_name"),
		Email:    pick(m, "email", "email_address"),
		Phone:    pick(m, "phone", "phone_number", "mobile", "tel"),
		Location: pick(m, "location", "city", "address"),
		Website:  pick(m, "website", "site", "homepage"),
		LinkedIn: pick(m, "linkedin", "linkedin_url"),
		GitHub:   pick(m, "github", "github_url"),
		Summary:  pick(m, "summary", "about", "profile", "introduction"),
	}
}

func normalizeExperience(list []interface{}) []types.ExperienceItem {
	var out []types.ExperienceItem
	for i, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		item := types.ExperienceItem{
			ID:          itemID(m, "experience", i),
			JobTitle:    pick(m, "job_title", "title", "position", "role"),
			Company:     pick(m, "company", "employer", "organization"),
			Location:    pick(m, "location", "city"),
			StartDate:   pick(m, "start_date", "start", "from"),
			EndDate:     pick(m, "end_date", "end", "to"),
			Description: pick(m, "description", "details"),
			Highlights:  stringsAt(m, "highlights", "achievements", "bullets"),
		}
		item.IsCurrent = asBool(firstVal(m, "is_current", "current")) ||
			isCurrentMarker(item.EndDate)
		if item.IsCurrent && isCurrentMarker(item.EndDate) {
			item.EndDate = ""
		}
		out = append(out, item)
	}
	return out
}

// isCurrentMarker 识别"至今"类的结束时间写法
func isCurrentMarker(end string) bool {
	switch strings.ToLower(strings.TrimSpace(end)) {
	case "present", "now", "current", "ongoing", "至今", "现在":
		return true
	}
	return false
}

func normalizeEducation(list []interface{}) []types.EducationItem {
	var out []types.EducationItem
	for i, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, types.EducationItem{
			ID:           itemID(m, "education", i),
			Institution:  pick(m, "institution", "school", "university", "college"),
			Degree:       pick(m, "degree", "degree_level", "qualification"),
			FieldOfStudy: pick(m, "field_of_study", "major", "field", "specialization"),
			StartDate:    pick(m, "start_date", "start", "from"),
			EndDate:      pick(m, "end_date", "end", "to"),
			GPA:          pick(m, "gpa", "grade"),
			Description:  pick(m, "description", "details"),
		})
	}
	return out
}

func normalizeProjects(list []interface{}) []types.ProjectItem {
	var out []types.ProjectItem
	for i, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, types.ProjectItem{
			ID:           itemID(m, "project", i),
			Name:         pick(m, "name", "title", "project_name"),
			Role:         pick(m, "role", "position"),
			Description:  pick(m, "description", "details"),
			Technologies: stringsAt(m, "technologies", "tech_stack", "stack", "tools"),
			Link:         pick(m, "link", "url", "repo"),
		})
	}
	return out
}

func normalizeCertifications(list []interface{}) []types.CertificationItem {
	var out []types.CertificationItem
	for i, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			// 纯字符串也接受，当作证书名
			if s := asString(raw); s != "" {
				out = append(out, types.CertificationItem{
					ID:   fmt.Sprintf("certification-%d", i+1),
					Name: s,
				})
			}
			continue
		}
		out = append(out, types.CertificationItem{
			ID:         itemID(m, "certification", i),
			Name:       pick(m, "name", "title"),
			Issuer:     pick(m, "issuer", "organization", "authority"),
			IssueDate:  pick(m, "issue_date", "date", "issued"),
			ExpiryDate: pick(m, "expiry_date", "expires"),
		})
	}
	return out
}

func normalizeGenericItems(section string, list []interface{}) []types.GenericItem {
	var out []types.GenericItem
	for i, raw := range list {
		switch v := raw.(type) {
		case map[string]interface{}:
			item := types.GenericItem{
				ID:      itemID(v, section, i),
				Title:   pick(v, "title", "name"),
				Content: pick(v, "content", "description", "details", "text"),
			}
			if item.Title == "" && item.Content == "" {
				continue
			}
			out = append(out, item)
		default:
			if s := asString(raw); s != "" {
				out = append(out, types.GenericItem{
					ID:      fmt.Sprintf("%s-%d", section, i+1),
					Content: s,
				})
			}
		}
	}
	return out
}

func normalizeStringList(list []interface{}) []string {
	var out []string
	for _, raw := range list {
		switch v := raw.(type) {
		case map[string]interface{}:
			// {"name": "Go", "level": "expert"} 这类对象取name
			if s := pick(v, "name", "skill", "language"); s != "" {
				out = append(out, s)
			}
		default:
			if s := asString(raw); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// itemID 取原有ID，缺失时生成 {section}-{index+1}
func itemID(m map[string]interface{}, section string, index int) string {
	if id := pick(m, "id"); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d", section, index+1)
}

func firstMap(root map[string]interface{}, keys []string) (map[string]interface{}, string) {
	for _, k := range keys {
		if m, ok := root[k].(map[string]interface{}); ok {
			return m, k
		}
	}
	return nil, ""
}

// firstList 返回第一个匹配别名的列表；键存在但不是列表时按空列表处理
func firstList(root map[string]interface{}, keys []string) ([]interface{}, string) {
	for _, k := range keys {
		if v, exists := root[k]; exists {
			if list, ok := v.([]interface{}); ok {
				return list, k
			}
			return nil, k
		}
	}
	return nil, ""
}

func firstVal(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func pick(m map[string]interface{}, keys ...string) string {
	return asString(firstVal(m, keys...))
}

func stringsAt(m map[string]interface{}, keys ...string) []string {
	if list, ok := firstVal(m, keys...).([]interface{}); ok {
		return normalizeStringList(list)
	}
	return nil
}

// asString 按值类型宽容转换为字符串，未知类型丢弃
func asString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', 1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func asBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(strings.TrimSpace(val), "true")
	default:
		return false
	}
}
