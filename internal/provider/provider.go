package provider

import (
	"context"
	"errors"
	"fmt"

	"tpush/internal/signal"
)

// 中文说明：
// OpinionProvider 是意见来源的统一抽象。每个 Provider 独立分析一个交易对，
// 返回方向建议与置信度。单个 Provider 失败只影响自身权重，不中断整体分析。

// ErrDisabled 表示 Provider 在配置中被关闭。
var ErrDisabled = errors.New("provider disabled")

// OpinionProvider 产出单一来源的交易意见。
type OpinionProvider interface {
	Kind() signal.ProviderKind

	Analyze(ctx context.Context, symbol string) (signal.SourceOpinion, error)
}

// UnavailableError 标记一次可恢复的 Provider 失败，携带来源类别。
type UnavailableError struct {
	Kind signal.ProviderKind
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Kind, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable 包装底层错误为 UnavailableError。
func Unavailable(kind signal.ProviderKind, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Kind: kind, Err: err}
}
