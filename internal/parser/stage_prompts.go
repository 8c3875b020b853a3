package parser

import (
	"fmt"
	"strings"
)

// PromptOptions 构建提示词时的选项
type PromptOptions struct {
	TargetLanguage string // 期望的输出语言标签，如 "zh"、"en"
	MaxSourceChars int    // 注入提示词的原文最大字符数，0表示不截断
}

// 语言标签到提示词中语言名称的映射
var promptLangNames = map[string]string{
	"zh": "中文", "en": "英文", "es": "西班牙语", "fr": "法语", "de": "德语",
	"ja": "日语", "ko": "韩语", "ru": "俄语", "pt": "葡萄牙语", "ar": "阿拉伯语",
}

func langName(tag string) string {
	if name, ok := promptLangNames[tag]; ok {
		return name
	}
	return "原文语言"
}

// BoundSource 按字符预算截断原文，避免长文档把单阶段的输出空间挤爆
func BoundSource(source string, maxChars int) string {
	if maxChars <= 0 {
		return source
	}
	runes := []rune(source)
	if len(runes) <= maxChars {
		return source
	}
	return string(runes[:maxChars]) + "\n...(已截断)"
}

const promptOutputRules = `输出要求：
- 严格输出一个JSON对象，不要包含任何解释性文字、前后缀或Markdown代码围栏。
- 信息缺失时对应字段设为空字符串""或空数组[]，请勿编造信息。
- 确保JSON完整且可解析。`

// BuildPersonalInfoPrompt 构建"个人信息"阶段的系统提示词
func BuildPersonalInfoPrompt(opts PromptOptions) string {
	return fmt.Sprintf(`你是一个专业的职业档案解析专家。接下来你将收到一份个人/职业文档的原始文本，
你的任务只有一个：提取候选人的基本身份信息，其他内容一律忽略。

除姓名和地点可保留原文写法外，所有自由文本字段使用%s输出。

JSON输出格式规范：
{
  "identity": {
    "name": "string",
    "email": "string",
    "phone": "string",
    "location": "string",
    "website": "string",
    "linkedin": "string",
    "github": "string",
    "summary": "string"
  }
}

说明：
- summary 是候选人的自由文本个人简介；文档没有明确简介段落时，可以从开头的自述性内容中归纳，但不得添加文档中不存在的事实。
- 电话和邮箱保持原文格式，不要做任何改写。

%s`, langName(opts.TargetLanguage), promptOutputRules)
}

// BuildWorkHistoryPrompt 构建"工作经历"阶段的系统提示词
func BuildWorkHistoryPrompt(opts PromptOptions) string {
	return fmt.Sprintf(`你是一个专业的职业档案解析专家。接下来你将收到一份个人/职业文档的原始文本，
你的任务只有一个：提取所有工作经历（含实习），其他内容一律忽略。

自由文本字段使用%s输出。

JSON输出格式规范：
{
  "experience": [
    {
      "job_title": "string",
      "company": "string",
      "location": "string",
      "start_date": "string",
      "end_date": "string",
      "is_current": false,
      "description": "string",
      "highlights": ["string"]
    }
  ]
}

说明：
- 按文档中出现的顺序输出，每段独立的任职记录是一个数组元素。
- 仍在职时 is_current 设为 true 且 end_date 设为空字符串；"至今"、"Present" 等写法都表示在职。
- 日期保持原文粒度（只有年份就输出年份），不要推断精确日期。
- highlights 收录该段经历下的要点条目（如破折号列表），没有则为空数组。
- 严禁把项目经历当作工作经历输出。

%s`, langName(opts.TargetLanguage), promptOutputRules)
}

// BuildEducationSkillsPrompt 构建"教育与技能"阶段的系统提示词
func BuildEducationSkillsPrompt(opts PromptOptions) string {
	return fmt.Sprintf(`你是一个专业的职业档案解析专家。接下来你将收到一份个人/职业文档的原始文本，
你的任务是提取教育经历、技能列表和语言能力，其他内容一律忽略。

自由文本字段使用%s输出。

JSON输出格式规范：
{
  "education": [
    {
      "institution": "string",
      "degree": "string",
      "field_of_study": "string",
      "start_date": "string",
      "end_date": "string",
      "gpa": "string",
      "description": "string"
    }
  ],
  "skills": ["string"],
  "languages": ["string"]
}

说明：
- skills 中每个元素是一项独立技能，把"Java, Spring Boot, MySQL"这类并列写法拆开。
- languages 只收自然语言能力（如"英语 CET-6"），编程语言归入 skills。
- 学历层次写入 degree，专业方向写入 field_of_study，两者不要混在一起。

%s`, langName(opts.TargetLanguage), promptOutputRules)
}

// BuildProjectsCertsPrompt 构建"项目与证书"阶段的系统提示词
func BuildProjectsCertsPrompt(opts PromptOptions) string {
	return fmt.Sprintf(`你是一个专业的职业档案解析专家。接下来你将收到一份个人/职业文档的原始文本，
你的任务是提取项目经历和证书/执照，其他内容一律忽略。

自由文本字段使用%s输出。

JSON输出格式规范：
{
  "projects": [
    {
      "name": "string",
      "role": "string",
      "description": "string",
      "technologies": ["string"],
      "link": "string"
    }
  ],
  "certifications": [
    {
      "name": "string",
      "issuer": "string",
      "issue_date": "string",
      "expiry_date": "string"
    }
  ]
}

说明：
- 项目与正式工作经历严格区分：带雇主和任职时间段的内容不属于项目。
- technologies 收录项目明确提到的技术栈，不要从描述中推测。

%s`, langName(opts.TargetLanguage), promptOutputRules)
}

// BuildExtraSectionsPrompt 构建"补充章节"阶段的系统提示词
func BuildExtraSectionsPrompt(opts PromptOptions) string {
	return fmt.Sprintf(`你是一个专业的职业档案解析专家。接下来你将收到一份个人/职业文档的原始文本，
你的任务是提取以下补充章节：出版物、获奖、教学经历、临床经历、志愿服务，
以及无法归入上述任何章节的其他内容。

自由文本字段使用%s输出。

JSON输出格式规范：
{
  "publications": [{"title": "string", "content": "string"}],
  "awards": [{"title": "string", "content": "string"}],
  "teaching": [{"title": "string", "content": "string"}],
  "clinical": [{"title": "string", "content": "string"}],
  "volunteering": [{"title": "string", "content": "string"}],
  "other": [{"title": "string", "content": "string"}]
}

说明：
- 每个条目 title 是简短标题，content 是该条目的完整原文内容。
- 基本信息、工作、教育、技能、项目、证书都由其他流程处理，这里不要重复输出。
- 实在无法分类的内容放入 other，不要丢弃。

%s`, langName(opts.TargetLanguage), promptOutputRules)
}

// BuildFlatExtractPrompt 构建第一代扁平提取的系统提示词：整篇文档一次调用，
// 输出完整的记录结构。长文档下容易截断，保留它只为策略兼容。
func BuildFlatExtractPrompt(opts PromptOptions) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(`你是一个专业的职业档案解析专家。接下来你将收到一份个人/职业文档的原始文本，
请一次性提取全部结构化信息。自由文本字段使用%s输出。

JSON输出格式规范：
{
  "identity": {"name": "string", "email": "string", "phone": "string", "location": "string",
               "website": "string", "linkedin": "string", "github": "string", "summary": "string"},
  "experience": [{"job_title": "string", "company": "string", "location": "string",
                  "start_date": "string", "end_date": "string", "is_current": false,
                  "description": "string", "highlights": ["string"]}],
  "education": [{"institution": "string", "degree": "string", "field_of_study": "string",
                 "start_date": "string", "end_date": "string", "gpa": "string", "description": "string"}],
  "skills": ["string"],
  "languages": ["string"],
  "projects": [{"name": "string", "role": "string", "description": "string",
                "technologies": ["string"], "link": "string"}],
  "certifications": [{"name": "string", "issuer": "string", "issue_date": "string", "expiry_date": "string"}],
  "publications": [{"title": "string", "content": "string"}],
  "awards": [{"title": "string", "content": "string"}],
  "teaching": [{"title": "string", "content": "string"}],
  "clinical": [{"title": "string", "content": "string"}],
  "volunteering": [{"title": "string", "content": "string"}],
  "other": [{"title": "string", "content": "string"}]
}

`, langName(opts.TargetLanguage)))
	b.WriteString(promptOutputRules)
	return b.String()
}
