package constants

const (
	// 提取阶段名，阶段日志和追踪属性统一使用
	StagePersonalInfo    = "personal_info"
	StageWorkHistory     = "work_history"
	StageEducationSkills = "education_skills"
	StageProjectsCerts   = "projects_certs"
	StageExtraSections   = "extra_sections"
	StageFlatExtract     = "flat_extract"

	// DefaultMinCompleteness 完整度评分达到该阈值才视为完整
	DefaultMinCompleteness = 50

	// 任务类型，用于按任务挑选模型
	TaskExtract = "extract"
	TaskRender  = "render"
)
