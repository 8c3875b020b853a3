package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrServiceCall     = errors.New("生成服务调用失败")
	ErrParseFailed     = errors.New("输出修复后仍无法解析")
	ErrStageRejected   = errors.New("阶段输出未通过验收条件")
	ErrAllStagesFailed = errors.New("所有提取阶段均失败")
	ErrNormalizeFailed = errors.New("草稿规范化失败")
)

// ExtractProcessError 包含详细上下文的自定义错误
type ExtractProcessError struct {
	RecordID string
	Stage    string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ExtractProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 阶段:%s): %s", e.BaseErr, e.Op, e.Stage, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 阶段:%s)", e.BaseErr, e.Op, e.Stage)
}

func (e *ExtractProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ExtractProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewServiceError(stage, detail string) error {
	return &ExtractProcessError{
		Stage:   stage,
		Op:      "generate",
		BaseErr: ErrServiceCall,
		Detail:  detail,
	}
}

func NewParseError(stage, detail string) error {
	return &ExtractProcessError{
		Stage:   stage,
		Op:      "parse",
		BaseErr: ErrParseFailed,
		Detail:  detail,
	}
}

func NewStageRejectedError(stage, detail string) error {
	return &ExtractProcessError{
		Stage:   stage,
		Op:      "accept",
		BaseErr: ErrStageRejected,
		Detail:  detail,
	}
}

func NewAllStagesFailedError(detail string) error {
	return &ExtractProcessError{
		Op:      "extract",
		BaseErr: ErrAllStagesFailed,
		Detail:  detail,
	}
}

func NewNormalizeError(detail string) error {
	return &ExtractProcessError{
		Op:      "normalize",
		BaseErr: ErrNormalizeFailed,
		Detail:  detail,
	}
}
