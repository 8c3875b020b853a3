package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/types"
)

// RecordRenderer 把规范记录还原成成文的档案文本。
// 优先走生成服务润色；服务不可用时退回到确定性的离线拼装，渲染永远不会失败。
type RecordRenderer struct {
	llmModel model.ToolCallingChatModel
	timeout  time.Duration
}

// NewRecordRenderer 创建渲染器。llmModel 可以为nil，此时始终使用离线渲染。
func NewRecordRenderer(llmModel model.ToolCallingChatModel, timeout time.Duration) *RecordRenderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RecordRenderer{llmModel: llmModel, timeout: timeout}
}

// Render 渲染记录。返回值始终非空（除非记录本身为空）。
func (r *RecordRenderer) Render(ctx context.Context, rec *types.CanonicalRecord, opts PromptOptions) string {
	if rec == nil {
		return ""
	}
	if r.llmModel != nil {
		if text, err := r.renderWithModel(ctx, rec, opts); err == nil && strings.TrimSpace(text) != "" {
			return text
		} else if err != nil {
			logger.Warn().Str("record_id", rec.ID).Err(err).Msg("模型渲染失败，退回离线渲染")
		}
	}
	return RenderOffline(rec)
}

func (r *RecordRenderer) renderWithModel(ctx context.Context, rec *types.CanonicalRecord, opts PromptOptions) (string, error) {
	payload, err := json.Marshal(rec.RecordPayload)
	if err != nil {
		return "", fmt.Errorf("序列化记录失败: %w", err)
	}

	system := fmt.Sprintf(`你是一位资深的职业档案撰写专家。接下来你将收到一份JSON格式的结构化档案数据，
请把它改写成一份通顺、专业、可直接阅读的%s档案文本。

要求：
- 只使用JSON中出现的事实，严禁补充、夸大或编造任何内容。
- 按 个人信息、个人简介、工作经历、教育经历、技能、项目、证书、其他章节 的顺序组织。
- 输出纯文本，不要输出JSON或Markdown代码围栏。`, langName(opts.TargetLanguage))

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llmModel.Generate(callCtx, []*einoschema.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: string(payload)},
	})
	if err != nil {
		return "", fmt.Errorf("渲染调用失败: %w", err)
	}
	return resp.Content, nil
}

// RenderOffline 确定性的离线渲染：逐章节拼装纯文本，不依赖任何外部服务
func RenderOffline(rec *types.CanonicalRecord) string {
	var b strings.Builder
	id := rec.Identity

	writeLine := func(s string) {
		if s != "" {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}

	writeLine(id.Name)
	contact := joinNonEmpty(" | ", id.Email, id.Phone, id.Location)
	writeLine(contact)
	writeLine(joinNonEmpty(" | ", id.Website, id.LinkedIn, id.GitHub))
	if id.Summary != "" {
		b.WriteString("\n个人简介\n")
		writeLine(id.Summary)
	}

	if len(rec.Experience) > 0 {
		b.WriteString("\n工作经历\n")
		for _, exp := range rec.Experience {
			end := exp.EndDate
			if exp.IsCurrent {
				end = "至今"
			}
			writeLine(joinNonEmpty(" ", exp.Company, exp.JobTitle, dateRange(exp.StartDate, end)))
			writeLine(exp.Description)
			for _, h := range exp.Highlights {
				writeLine(" - " + h)
			}
		}
	}

	if len(rec.Education) > 0 {
		b.WriteString("\n教育经历\n")
		for _, edu := range rec.Education {
			writeLine(joinNonEmpty(" ", edu.Institution, edu.FieldOfStudy, edu.Degree,
				dateRange(edu.StartDate, edu.EndDate)))
			writeLine(edu.Description)
		}
	}

	if len(rec.Skills) > 0 {
		b.WriteString("\n技能\n")
		writeLine(strings.Join(rec.Skills, ", "))
	}
	if len(rec.Languages) > 0 {
		b.WriteString("\n语言\n")
		writeLine(strings.Join(rec.Languages, ", "))
	}

	if len(rec.Projects) > 0 {
		b.WriteString("\n项目经历\n")
		for _, p := range rec.Projects {
			writeLine(joinNonEmpty(" ", p.Name, p.Role))
			writeLine(p.Description)
			if len(p.Technologies) > 0 {
				writeLine("技术栈: " + strings.Join(p.Technologies, ", "))
			}
		}
	}

	if len(rec.Certifications) > 0 {
		b.WriteString("\n证书\n")
		for _, c := range rec.Certifications {
			writeLine(joinNonEmpty(" ", c.Name, c.Issuer, c.IssueDate))
		}
	}

	sectionTitles := map[types.GenericSectionKey]string{
		types.SectionPublications: "出版物",
		types.SectionAwards:       "获奖情况",
		types.SectionTeaching:     "教学经历",
		types.SectionClinical:     "临床经历",
		types.SectionVolunteering: "志愿服务",
		types.SectionOther:        "其他",
	}
	for _, key := range types.GenericSectionKeys {
		items := rec.Sections[key]
		if len(items) == 0 {
			continue
		}
		b.WriteString("\n" + sectionTitles[key] + "\n")
		for _, item := range items {
			writeLine(joinNonEmpty(": ", item.Title, item.Content))
		}
	}

	return strings.TrimSpace(b.String())
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func dateRange(start, end string) string {
	switch {
	case start == "" && end == "":
		return ""
	case end == "":
		return start
	case start == "":
		return end
	default:
		return start + " - " + end
	}
}
