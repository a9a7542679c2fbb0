package sink

import (
	"fmt"
	"strings"
	"sync"
)

const (
	reportHeader = "[Refresh Report]"
	emptyReport  = "--nothing to report--"
)

// Report 单个 tick 内累积的诊断信息，tick 结束时统一输出
// 拉取与写入协程会并发追加，需要加锁
type Report struct {
	mu    sync.Mutex
	lines []string
}

// NewReport 创建空报告
func NewReport() *Report {
	return &Report{}
}

// Add 追加一条诊断
func (r *Report) Add(line string) {
	line = strings.TrimRight(line, "\n")
	if line == "" {
		return
	}
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

// Addf 格式化追加
func (r *Report) Addf(format string, args ...any) {
	r.Add(fmt.Sprintf(format, args...))
}

// AddAll 批量追加
func (r *Report) AddAll(lines []string) {
	for _, line := range lines {
		r.Add(line)
	}
}

// Lines 返回当前诊断的副本
func (r *Report) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len 诊断条数
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

// String 渲染报告文本
func (r *Report) String() string {
	lines := r.Lines()
	if len(lines) == 0 {
		return reportHeader + "\n" + emptyReport
	}
	return reportHeader + "\n" + strings.Join(lines, "\n")
}

// Flush 输出到 Sink
func (r *Report) Flush(s Sink) {
	s.Emit(r.String())
}
