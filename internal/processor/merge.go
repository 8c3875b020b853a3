package processor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cv-agent-go/internal/types"
	"cv-agent-go/pkg/utils"
)

// SafeMerge 把一轮新的（可能残缺甚至倒退的）草稿合并进已接受的记录。
// 策略是"只增不减"：
//   - 标量只在已接受值为空时才接受草稿值，非空值永不被细化覆盖；
//   - 列表按自然键匹配（经历=公司+职位，教育=院校，通用章节=ID），
//     匹配上则逐字段按标量规则合并，匹配不上则作为新条目追加；
//   - 自由文本description是唯一例外：草稿严格更长时替换，长度作为"更完整"的代理；
//   - 技能/语言做大小写不敏感的并集，永不移除；
//   - 合并完成后对关键列表做回归检查，任一列表变短则整段回滚到已接受版本并记告警。
//
// 此引擎从不报错：最坏情况是原样返回已接受记录外加告警。
func SafeMerge(accepted *types.CanonicalRecord, draft *types.DraftRecord, now time.Time) (*types.CanonicalRecord, []string) {
	var warnings []string
	if accepted == nil {
		return nil, []string{"合并失败: 已接受记录为空"}
	}
	result := accepted.Clone()
	if draft == nil {
		warnings = append(warnings, "草稿为空，记录未变更")
		return result, warnings
	}

	mergeIdentity(&result.Identity, draft.Identity)
	result.Experience = mergeExperience(result.Experience, draft.Experience)
	result.Education = mergeEducation(result.Education, draft.Education)
	result.Projects = mergeProjects(result.Projects, draft.Projects)
	result.Certifications = mergeCertifications(result.Certifications, draft.Certifications)
	result.Skills = utils.UnionFold(result.Skills, draft.Skills)
	result.Languages = utils.UnionFold(result.Languages, draft.Languages)
	result.Sections = mergeSections(result.Sections, draft.Sections)
	result.Metadata = mergeMetadata(result.Metadata, draft.Metadata)

	warnings = append(warnings, rollbackRegressions(result, accepted)...)

	result.Version = accepted.Version + 1
	result.UpdatedAt = now
	return result, warnings
}

// mergeScalar 已接受值为空时取草稿值
func mergeScalar(accepted *string, draft string) {
	if strings.TrimSpace(*accepted) == "" && strings.TrimSpace(draft) != "" {
		*accepted = draft
	}
}

// mergeDescription 自由文本只在草稿严格更长时替换
func mergeDescription(accepted *string, draft string) {
	if len(strings.TrimSpace(draft)) > len(strings.TrimSpace(*accepted)) {
		*accepted = draft
	}
}

func mergeIdentity(dst *types.Identity, src types.Identity) {
	mergeScalar(&dst.Name, src.Name)
	mergeScalar(&dst.Email, src.Email)
	mergeScalar(&dst.Phone, src.Phone)
	mergeScalar(&dst.Location, src.Location)
	mergeScalar(&dst.Website, src.Website)
	mergeScalar(&dst.LinkedIn, src.LinkedIn)
	mergeScalar(&dst.GitHub, src.GitHub)
	mergeScalar(&dst.Summary, src.Summary)
}

func experienceKey(item types.ExperienceItem) string {
	return strings.ToLower(strings.TrimSpace(item.Company)) + "\x00" +
		strings.ToLower(strings.TrimSpace(item.JobTitle))
}

func mergeExperience(accepted []types.ExperienceItem, draft []types.ExperienceItem) []types.ExperienceItem {
	index := map[string]int{}
	ids := map[string]bool{}
	for i, item := range accepted {
		index[experienceKey(item)] = i
		ids[item.ID] = true
	}
	for _, d := range draft {
		if i, ok := index[experienceKey(d)]; ok {
			a := &accepted[i]
			mergeScalar(&a.Location, d.Location)
			mergeScalar(&a.StartDate, d.StartDate)
			mergeScalar(&a.EndDate, d.EndDate)
			mergeDescription(&a.Description, d.Description)
			a.Highlights = utils.UnionFold(a.Highlights, d.Highlights)
			if d.IsCurrent {
				a.IsCurrent = true
			}
			continue
		}
		d.ID = uniqueItemID(ids, d.ID, "experience", len(accepted)+1)
		accepted = append(accepted, d)
	}
	return accepted
}

func mergeEducation(accepted []types.EducationItem, draft []types.EducationItem) []types.EducationItem {
	index := map[string]int{}
	ids := map[string]bool{}
	for i, item := range accepted {
		index[strings.ToLower(strings.TrimSpace(item.Institution))] = i
		ids[item.ID] = true
	}
	for _, d := range draft {
		key := strings.ToLower(strings.TrimSpace(d.Institution))
		if i, ok := index[key]; ok && key != "" {
			a := &accepted[i]
			mergeScalar(&a.Degree, d.Degree)
			mergeScalar(&a.FieldOfStudy, d.FieldOfStudy)
			mergeScalar(&a.StartDate, d.StartDate)
			mergeScalar(&a.EndDate, d.EndDate)
			mergeScalar(&a.GPA, d.GPA)
			mergeDescription(&a.Description, d.Description)
			continue
		}
		d.ID = uniqueItemID(ids, d.ID, "education", len(accepted)+1)
		accepted = append(accepted, d)
	}
	return accepted
}

func mergeProjects(accepted []types.ProjectItem, draft []types.ProjectItem) []types.ProjectItem {
	index := map[string]int{}
	ids := map[string]bool{}
	for i, item := range accepted {
		index[strings.ToLower(strings.TrimSpace(item.Name))] = i
		ids[item.ID] = true
	}
	for _, d := range draft {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if i, ok := index[key]; ok && key != "" {
			a := &accepted[i]
			mergeScalar(&a.Role, d.Role)
			mergeScalar(&a.Link, d.Link)
			mergeDescription(&a.Description, d.Description)
			a.Technologies = utils.UnionFold(a.Technologies, d.Technologies)
			continue
		}
		d.ID = uniqueItemID(ids, d.ID, "project", len(accepted)+1)
		accepted = append(accepted, d)
	}
	return accepted
}

func mergeCertifications(accepted []types.CertificationItem, draft []types.CertificationItem) []types.CertificationItem {
	index := map[string]int{}
	ids := map[string]bool{}
	for i, item := range accepted {
		index[strings.ToLower(strings.TrimSpace(item.Name))] = i
		ids[item.ID] = true
	}
	for _, d := range draft {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if i, ok := index[key]; ok && key != "" {
			a := &accepted[i]
			mergeScalar(&a.Issuer, d.Issuer)
			mergeScalar(&a.IssueDate, d.IssueDate)
			mergeScalar(&a.ExpiryDate, d.ExpiryDate)
			continue
		}
		d.ID = uniqueItemID(ids, d.ID, "certification", len(accepted)+1)
		accepted = append(accepted, d)
	}
	return accepted
}

// mergeSections 通用章节以条目ID为连接键
func mergeSections(accepted map[types.GenericSectionKey][]types.GenericItem, draft map[types.GenericSectionKey][]types.GenericItem) map[types.GenericSectionKey][]types.GenericItem {
	if accepted == nil {
		accepted = map[types.GenericSectionKey][]types.GenericItem{}
	}
	for key, draftItems := range draft {
		items := accepted[key]
		index := map[string]int{}
		ids := map[string]bool{}
		for i, item := range items {
			index[item.ID] = i
			ids[item.ID] = true
		}
		for _, d := range draftItems {
			if i, ok := index[d.ID]; ok {
				mergeScalar(&items[i].Title, d.Title)
				mergeDescription(&items[i].Content, d.Content)
				continue
			}
			d.ID = uniqueItemID(ids, d.ID, string(key), len(items)+1)
			items = append(items, d)
		}
		accepted[key] = items
	}
	return accepted
}

func mergeMetadata(accepted map[string]string, draft map[string]string) map[string]string {
	if accepted == nil {
		accepted = map[string]string{}
	}
	for k, v := range draft {
		if accepted[k] == "" && v != "" {
			accepted[k] = v
		}
	}
	return accepted
}

// uniqueItemID 保留草稿自带的ID，与现有ID冲突或为空时另起一个。
// 规范化阶段给不同轮次的草稿分配的是同一批 {section}-{index} 序号，
// 追加时必须重新编号，否则连接键会撞车。
func uniqueItemID(existing map[string]bool, candidate, section string, nextIndex int) string {
	if candidate != "" && !existing[candidate] {
		existing[candidate] = true
		return candidate
	}
	id := fmt.Sprintf("%s-%d", section, nextIndex)
	for existing[id] {
		id = fmt.Sprintf("%s-%s", section, uuid.NewString()[:8])
	}
	existing[id] = true
	return id
}

// rollbackRegressions 回归检查：残缺或畸形的细化绝不允许悄悄缩小记录。
// 任一关键列表的条目数下降时，整个章节回滚到已接受版本并记录告警。
func rollbackRegressions(result *types.CanonicalRecord, accepted *types.CanonicalRecord) []string {
	var warnings []string
	if len(result.Experience) < len(accepted.Experience) {
		result.Experience = append([]types.ExperienceItem(nil), accepted.Experience...)
		warnings = append(warnings, "合并导致工作经历条目减少，该章节已回滚")
	}
	if len(result.Education) < len(accepted.Education) {
		result.Education = append([]types.EducationItem(nil), accepted.Education...)
		warnings = append(warnings, "合并导致教育经历条目减少，该章节已回滚")
	}
	if len(result.Skills) < len(accepted.Skills) {
		result.Skills = append([]string(nil), accepted.Skills...)
		warnings = append(warnings, "合并导致技能条目减少，该章节已回滚")
	}
	if len(result.Languages) < len(accepted.Languages) {
		result.Languages = append([]string(nil), accepted.Languages...)
		warnings = append(warnings, "合并导致语言条目减少，该章节已回滚")
	}
	return warnings
}
