package processor

import (
	"fmt"
	"strings"

	"cv-agent-go/internal/types"
)

// GapPhrasing 某个字段路径对应的补全话术
type GapPhrasing struct {
	Guidance string
	Example  string
}

// 默认话术表，按审计的字段路径索引
var defaultGapPhrasings = map[string]GapPhrasing{
	"identity.name": {
		Guidance: "请提供您的姓名",
		Example:  "张伟",
	},
	"identity.contact": {
		Guidance: "请补充联系方式，邮箱和电话至少提供一项",
		Example:  "zhangwei@example.com / 138-0000-0000",
	},
	"identity.summary": {
		Guidance: "请用两三句话介绍您的职业背景和核心优势",
		Example:  "8年后端开发经验，专注高并发服务，曾主导订单系统从单体到微服务的改造",
	},
	"experience": {
		Guidance: "请补充工作经历，包括公司、职位、起止时间和主要职责",
		Example:  "某某科技，高级工程师，2020年至今，负责支付网关的设计与维护",
	},
	"education": {
		Guidance: "请补充教育经历，包括院校、学位、专业和就读时间",
		Example:  "某某大学，计算机科学与技术学士，2014-2018",
	},
	"skills": {
		Guidance: "请列出您的核心技能或技术栈",
		Example:  "Go、Kubernetes、MySQL、分布式系统设计",
	},
	"projects": {
		Guidance: "可以补充一两个代表性项目，说明您的角色和成果",
		Example:  "简历解析平台，负责提取内核，上线后解析准确率提升30%",
	},
	"certifications": {
		Guidance: "如持有职业证书可以在此补充",
		Example:  "AWS Certified Solutions Architect，2023年获得",
	},
}

// GapGenerator 把审计结论转换成面向用户的补全引导项。
// 每个未解决的审计问题产出一条引导，引导永远可以被用户跳过。
type GapGenerator struct {
	phrasings map[string]GapPhrasing
}

type GapOption func(*GapGenerator)

// WithPhrasingRules 按领域覆盖部分话术，未覆盖的字段沿用默认表
func WithPhrasingRules(rules map[string]GapPhrasing) GapOption {
	return func(g *GapGenerator) {
		for field, p := range rules {
			g.phrasings[field] = p
		}
	}
}

func NewGapGenerator(opts ...GapOption) *GapGenerator {
	g := &GapGenerator{phrasings: map[string]GapPhrasing{}}
	for field, p := range defaultGapPhrasings {
		g.phrasings[field] = p
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate 从审计结果生成补全引导。每次都从头生成，不做增量更新。
// 只有审计结果本身为空时才返回错误。
func (g *GapGenerator) Generate(audit *types.AuditRecord) ([]types.GapItem, error) {
	if audit == nil {
		return nil, fmt.Errorf("生成补全引导失败: 审计结果为空")
	}
	var gaps []types.GapItem
	for _, item := range audit.Items {
		for i, issue := range item.Issues {
			phrasing := g.phrasings[item.FieldPath]
			guidance := phrasing.Guidance
			if guidance == "" {
				guidance = issue
			} else {
				guidance = issue + "。" + guidance
			}
			gaps = append(gaps, types.GapItem{
				ID:           gapID(item.FieldPath, i),
				Field:        item.FieldPath,
				GuidanceText: guidance,
				Example:      phrasing.Example,
				SkipAllowed:  true,
			})
		}
	}
	return gaps, nil
}

func gapID(fieldPath string, index int) string {
	return fmt.Sprintf("gap-%s-%d", strings.ReplaceAll(fieldPath, ".", "-"), index+1)
}
