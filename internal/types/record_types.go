package types

import (
	"time"
)

// Identity 候选人的身份信息，字段为空字符串表示缺失
type Identity struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Website  string `json:"website"`
	LinkedIn string `json:"linkedin"`
	GitHub   string `json:"github"`
	Summary  string `json:"summary"` // 自由文本的个人简介
}

// ExperienceItem 一段工作经历
type ExperienceItem struct {
	ID          string   `json:"id"`
	JobTitle    string   `json:"job_title"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	IsCurrent   bool     `json:"is_current"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights"`
}

// EducationItem 一段教育经历
type EducationItem struct {
	ID           string `json:"id"`
	Institution  string `json:"institution"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	GPA          string `json:"gpa"`
	Description  string `json:"description"`
}

// ProjectItem 一个项目条目
type ProjectItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Link         string   `json:"link"`
}

// CertificationItem 一个证书条目
type CertificationItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Issuer     string `json:"issuer"`
	IssueDate  string `json:"issue_date"`
	ExpiryDate string `json:"expiry_date"`
}

// GenericItem 通用章节中的一个条目，ID在创建时分配且不再变更，
// 合并时以ID作为连接键
type GenericItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// GenericSectionKey 通用章节的固定键名
type GenericSectionKey string

const (
	SectionPublications GenericSectionKey = "publications"
	SectionAwards       GenericSectionKey = "awards"
	SectionTeaching     GenericSectionKey = "teaching"
	SectionClinical     GenericSectionKey = "clinical"
	SectionVolunteering GenericSectionKey = "volunteering"
	SectionOther        GenericSectionKey = "other"
)

// GenericSectionKeys 所有通用章节键，遍历时保持固定顺序
var GenericSectionKeys = []GenericSectionKey{
	SectionPublications, SectionAwards, SectionTeaching,
	SectionClinical, SectionVolunteering, SectionOther,
}

// RecordPayload 承载一条记录的全部结构化内容。
// CanonicalRecord 与 DraftRecord 共享这一形状：前者带有版本与归属信息，
// 后者只是一轮提取的未接受输出。
type RecordPayload struct {
	Identity       Identity                            `json:"identity"`
	Experience     []ExperienceItem                    `json:"experience"`
	Education      []EducationItem                     `json:"education"`
	Skills         []string                            `json:"skills"`
	Languages      []string                            `json:"languages"`
	Projects       []ProjectItem                       `json:"projects"`
	Certifications []CertificationItem                 `json:"certifications"`
	Sections       map[GenericSectionKey][]GenericItem `json:"sections"`
	Metadata       map[string]string                   `json:"metadata"` // 提取到但无法归类的内容
}

// CanonicalRecord 已接受、已验证的权威记录，每次成功合并后版本号递增
type CanonicalRecord struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Version       int       `json:"version"`
	RecordPayload
	RawSourceText string    `json:"raw_source_text"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DraftRecord 单轮提取/细化产生的草稿，形状与正式记录一致，但不携带任何历史保证
type DraftRecord struct {
	RecordPayload
	RawSourceText string `json:"raw_source_text"`
}

// Clone 深拷贝记录。每个请求在自己的副本上操作，产生新版本而不是原地修改。
func (r *CanonicalRecord) Clone() *CanonicalRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.RecordPayload = r.RecordPayload.clone()
	return &out
}

func (p RecordPayload) clone() RecordPayload {
	out := p
	out.Experience = append([]ExperienceItem(nil), p.Experience...)
	for i := range out.Experience {
		out.Experience[i].Highlights = append([]string(nil), out.Experience[i].Highlights...)
	}
	out.Education = append([]EducationItem(nil), p.Education...)
	out.Skills = append([]string(nil), p.Skills...)
	out.Languages = append([]string(nil), p.Languages...)
	out.Projects = append([]ProjectItem(nil), p.Projects...)
	for i := range out.Projects {
		out.Projects[i].Technologies = append([]string(nil), out.Projects[i].Technologies...)
	}
	out.Certifications = append([]CertificationItem(nil), p.Certifications...)
	if p.Sections != nil {
		out.Sections = make(map[GenericSectionKey][]GenericItem, len(p.Sections))
		for k, v := range p.Sections {
			out.Sections[k] = append([]GenericItem(nil), v...)
		}
	}
	if p.Metadata != nil {
		out.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ValidationReport 单次提取的验证结果，只用于决定重试/接受，不做持久化
type ValidationReport struct {
	IsComplete         bool     `json:"is_complete"`
	Completeness       int      `json:"completeness"` // 0-100
	Warnings           []string `json:"warnings"`
	LanguageViolations []string `json:"language_violations"`
}

// FieldAuditItem 对单个字段的审计结论
type FieldAuditItem struct {
	FieldPath         string   `json:"field_path"`
	Exists            bool     `json:"exists"`
	CompletenessScore int      `json:"completeness_score"` // 0-100
	QualityScore      int      `json:"quality_score"`      // 0-100
	Issues            []string `json:"issues"`
	Recommendations   []string `json:"recommendations"`
}

// AuditRecord 对一条已接受记录的整体审计，每次接受或细化后重新生成
type AuditRecord struct {
	OverallScore int              `json:"overall_score"` // 0-100
	Items        []FieldAuditItem `json:"items"`
}

// GapItem 面向用户的补全引导项，用户随时可以选择跳过
type GapItem struct {
	ID           string `json:"id"`
	Field        string `json:"field"`
	GuidanceText string `json:"guidance_text"`
	Example      string `json:"example"`
	SkipAllowed  bool   `json:"skip_allowed"`
}

// GapAnswer 用户对某个补全引导的回答
type GapAnswer struct {
	GapID     string `json:"gap_id"`
	UserInput string `json:"user_input"`
}

// PipelineStrategy 流水线策略，由调用方显式传入，不存在进程级默认值
type PipelineStrategy string

const (
	// StrategyLegacyFlat 第一代扁平提取：整篇文档一次调用
	StrategyLegacyFlat PipelineStrategy = "legacy_flat"
	// StrategyCanonical 第二代分阶段提取
	StrategyCanonical PipelineStrategy = "canonical"
)

// PipelineResult 一次提取或细化请求的完整输出。
// Audit/Gaps 为 nil 表示对应阶段失败但不影响整体结果。
type PipelineResult struct {
	Record          *CanonicalRecord  `json:"record"`
	Report          *ValidationReport `json:"report"`
	Audit           *AuditRecord      `json:"audit"`
	Gaps            []GapItem         `json:"gaps"`
	Warnings        []string          `json:"warnings"`
	Failed          bool              `json:"failed"`
	FailureDetail   string            `json:"failure_detail,omitempty"`
	LastRawResponse string            `json:"last_raw_response,omitempty"`
}

// StageResult 单个提取阶段的执行结果
type StageResult struct {
	Name     string                 `json:"name"`
	Tree     map[string]interface{} `json:"-"`
	Failed   bool                   `json:"failed"`
	Retries  int                    `json:"retries"`
	ErrorMsg string                 `json:"error,omitempty"`
	RawReply string                 `json:"-"`
}
