package sink

import (
	"strings"

	"go.uber.org/zap"
)

// Sink 接收引擎输出的可读状态行（进度、诊断、tick 边界）
// Emit 会被拉取协程并发调用，实现必须并发安全
type Sink interface {
	Emit(line string)
}

// Func 将函数适配为 Sink，函数本身需自行保证并发安全
type Func func(line string)

// Emit 实现 Sink
func (f Func) Emit(line string) {
	f(line)
}

// Discard 丢弃所有消息
var Discard Sink = Func(func(string) {})

// ZapSink 通过 zap 输出状态行
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink 创建基于 zap 的 Sink
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Emit 实现 Sink（去掉首尾换行，逐行输出）
func (s *ZapSink) Emit(line string) {
	line = strings.Trim(line, "\r\n")
	if line == "" {
		return
	}
	s.logger.Info(line)
}
