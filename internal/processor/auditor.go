package processor

import (
	"fmt"
	"regexp"
	"strings"

	"cv-agent-go/internal/types"
)

// Auditor 对已接受记录做逐字段审计，产出0-100的整体评分和逐字段的问题清单。
// 纯规则实现，不调用模型。
//
// 核心是"宽容规则"：一个字段只有在它承载的事实无法从记录中任何其他已填
// 字段合理推断出来时才被标记缺失。规范化提取必然把叙事文档打碎成字段，
// 逐字段的朴素检查会产生大量假阳性缺口。
type Auditor struct {
	weights map[string]int
}

// 各审计维度在整体评分中的权重，总和为100
var defaultAuditWeights = map[string]int{
	"identity.name":    10,
	"identity.contact": 10,
	"identity.summary": 10,
	"experience":       30,
	"education":        20,
	"skills":           10,
	"projects":         5,
	"certifications":   5,
}

func NewAuditor() *Auditor {
	return &Auditor{weights: defaultAuditWeights}
}

// Audit 审计一条记录。只有记录本身为空时才返回错误，
// 其余任何形态的记录都会得到一份（可能很难看的）审计结果。
func (a *Auditor) Audit(rec *types.CanonicalRecord) (*types.AuditRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("审计失败: 记录为空")
	}

	items := []types.FieldAuditItem{
		a.auditName(rec),
		a.auditContact(rec),
		a.auditSummary(rec),
		a.auditExperience(rec),
		a.auditEducation(rec),
		a.auditSkills(rec),
		a.auditProjects(rec),
		a.auditCertifications(rec),
	}

	total, weightSum := 0, 0
	for _, item := range items {
		w := a.weights[item.FieldPath]
		if w == 0 {
			w = 5
		}
		total += w * (item.CompletenessScore + item.QualityScore) / 2
		weightSum += w
	}
	overall := 0
	if weightSum > 0 {
		overall = total / weightSum
	}

	return &types.AuditRecord{OverallScore: overall, Items: items}, nil
}

func (a *Auditor) auditName(rec *types.CanonicalRecord) types.FieldAuditItem {
	item := types.FieldAuditItem{FieldPath: "identity.name"}
	if strings.TrimSpace(rec.Identity.Name) != "" {
		item.Exists = true
		item.CompletenessScore = 100
		item.QualityScore = 100
		return item
	}
	item.Issues = append(item.Issues, "缺少姓名")
	item.Recommendations = append(item.Recommendations, "补充候选人姓名")
	return item
}

func (a *Auditor) auditContact(rec *types.CanonicalRecord) types.FieldAuditItem {
	item := types.FieldAuditItem{FieldPath: "identity.contact"}
	hasEmail := strings.TrimSpace(rec.Identity.Email) != ""
	hasPhone := strings.TrimSpace(rec.Identity.Phone) != ""
	switch {
	case hasEmail && hasPhone:
		item.Exists = true
		item.CompletenessScore = 100
		item.QualityScore = 100
	case hasEmail || hasPhone:
		item.Exists = true
		item.CompletenessScore = 60
		item.QualityScore = 80
		item.Issues = append(item.Issues, "联系方式不完整，邮箱和电话只有其一")
		item.Recommendations = append(item.Recommendations, "补充另一种联系方式")
	default:
		item.Issues = append(item.Issues, "缺少联系方式")
		item.Recommendations = append(item.Recommendations, "补充邮箱或电话")
	}
	return item
}

func (a *Auditor) auditSummary(rec *types.CanonicalRecord) types.FieldAuditItem {
	item := types.FieldAuditItem{FieldPath: "identity.summary"}
	summary := strings.TrimSpace(rec.Identity.Summary)
	if summary == "" {
		// 有像样的经历描述时不把缺少简介当成缺口
		if richestDescriptionLen(rec) >= 40 {
			item.CompletenessScore = 50
			item.QualityScore = 60
			return item
		}
		item.Issues = append(item.Issues, "缺少个人简介")
		item.Recommendations = append(item.Recommendations, "用两三句话概括职业背景和核心优势")
		return item
	}
	item.Exists = true
	item.CompletenessScore = 100
	if len([]rune(summary)) < 20 {
		item.QualityScore = 50
		item.Issues = append(item.Issues, "个人简介过于简短")
		item.Recommendations = append(item.Recommendations, "扩展简介，突出年限、领域和代表性成果")
	} else {
		item.QualityScore = 100
	}
	return item
}

func (a *Auditor) auditExperience(rec *types.CanonicalRecord) types.FieldAuditItem {
	item := types.FieldAuditItem{FieldPath: "experience"}
	if len(rec.Experience) == 0 {
		item.Issues = append(item.Issues, "缺少工作经历")
		item.Recommendations = append(item.Recommendations, "补充至少一段工作经历")
		return item
	}
	item.Exists = true
	item.CompletenessScore = 100
	quality := 100
	for i, exp := range rec.Experience {
		if strings.TrimSpace(exp.StartDate) == "" {
			quality -= 15
			item.Issues = append(item.Issues, fmt.Sprintf("经历 %d（%s）缺少起始时间", i+1, exp.Company))
		}
		if strings.TrimSpace(exp.Description) == "" && len(exp.Highlights) == 0 {
			quality -= 20
			item.Issues = append(item.Issues, fmt.Sprintf("经历 %d（%s）缺少职责或成果描述", i+1, exp.Company))
			item.Recommendations = append(item.Recommendations, "为每段经历补充量化的职责与成果")
		}
	}
	if quality < 0 {
		quality = 0
	}
	item.QualityScore = quality
	return item
}

// 宽容规则依赖的学位特征，中英文常见写法
var degreeMentionRe = regexp.MustCompile(`(?i)\b(ph\.?d|doctor(ate)?|master'?s?|bachelor'?s?|mba|[bm]\.?sc|[bm]\.?a\.?|[bm]\.?eng)\b|博士|硕士|学士|本科|研究生|大专`)

func (a *Auditor) auditEducation(rec *types.CanonicalRecord) types.FieldAuditItem {
	item := types.FieldAuditItem{FieldPath: "education"}
	if len(rec.Education) == 0 {
		// 简介里已经写明学位时不再重复标记
		if degreeMentionRe.MatchString(rec.Identity.Summary) {
			item.CompletenessScore = 60
			item.QualityScore = 60
			item.Issues = append(item.Issues, "教育经历未结构化，仅在简介中提及")
			return item
		}
		item.Issues = append(item.Issues, "缺少教育经历")
		item.Recommendations = append(item.Recommendations, "补充院校、学位和就读时间")
		return item
	}
	item.Exists = true
	item.CompletenessScore = 100
	quality := 100
	for i, edu := range rec.Education {
		if strings.TrimSpace(edu.Degree) == "" && !degreeMentionRe.MatchString(edu.Description) {
			quality -= 15
			item.Issues = append(item.Issues, fmt.Sprintf("教育经历 %d（%s）缺少学位", i+1, edu.Institution))
		}
		if strings.TrimSpace(edu.FieldOfStudy) == "" &&
			!degreeMentionRe.MatchString(rec.Identity.Summary) &&
			!degreeMentionRe.MatchString(edu.Description) {
			quality -= 10
			item.Issues = append(item.Issues, fmt.Sprintf("教育经历 %d（%s）缺少专业方向", i+1, edu.Institution))
		}
	}
	if quality < 0 {
		quality = 0
	}
	item.QualityScore = quality
	return item
}

func (a *Auditor) auditSkills(rec *types.CanonicalRecord) types.FieldAuditItem {
	item := types.FieldAuditItem{FieldPath: "skills"}
	if len(rec.Skills) == 0 {
		item.Issues = append(item.Issues, "缺少技能清单")
		item.Recommendations = append(item.Recommendations, "列出核心技术栈或专业技能")
		return item
	}
	item.Exists = true
	item.CompletenessScore = 100
	if len(rec.Skills) < 3 {
		item.QualityScore = 60
		item.Issues = append(item.Issues, "技能条目偏少")
	} else {
		item.QualityScore = 100
	}
	return item
}

func (a *Auditor) auditProjects(rec *types.CanonicalRecord) types.FieldAuditItem {
	item := types.FieldAuditItem{FieldPath: "projects"}
	if len(rec.Projects) == 0 {
		// 项目可以体现在经历描述里，不单独算缺口
		item.CompletenessScore = 50
		item.QualityScore = 50
		return item
	}
	item.Exists = true
	item.CompletenessScore = 100
	item.QualityScore = 100
	return item
}

func (a *Auditor) auditCertifications(rec *types.CanonicalRecord) types.FieldAuditItem {
	item := types.FieldAuditItem{FieldPath: "certifications"}
	if len(rec.Certifications) == 0 {
		item.CompletenessScore = 50
		item.QualityScore = 50
		return item
	}
	item.Exists = true
	item.CompletenessScore = 100
	item.QualityScore = 100
	return item
}

func richestDescriptionLen(rec *types.CanonicalRecord) int {
	max := 0
	for _, exp := range rec.Experience {
		if n := len([]rune(exp.Description)); n > max {
			max = n
		}
	}
	return max
}
