package risk

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Category 审计类别。
type Category string

const (
	CategoryOrder    Category = "order_risk"
	CategoryPosition Category = "position_risk"
	CategoryCapital  Category = "capital_risk"
)

// Outcome 审计结果。
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeBlocked Outcome = "blocked"
	OutcomeWarning Outcome = "warning"
)

const (
	DefaultAuditMaxRecords = 10000
	DefaultAuditQueueSize  = 1024
)

// AuditRecord 一条风控决策记录，文件中每行一条 JSON。
type AuditRecord struct {
	Timestamp      time.Time      `json:"timestamp"`
	OrderID        string         `json:"order_id,omitempty"`
	Symbol         string         `json:"symbol,omitempty"`
	Category       Category       `json:"risk_type"`
	Outcome        Outcome        `json:"result"`
	Level          Level          `json:"risk_level,omitempty"`
	Rule           string         `json:"rule,omitempty"`
	Message        string         `json:"message"`
	Reason         string         `json:"reason,omitempty"`
	OrderDetails   map[string]any `json:"order_details,omitempty"`
	AccountMetrics map[string]any `json:"account_metrics,omitempty"`
}

// AuditStats 审计统计。
type AuditStats struct {
	Total     int     `json:"total_records"`
	Passed    int     `json:"passed"`
	Blocked   int     `json:"blocked"`
	Warning   int     `json:"warning"`
	PassRate  float64 `json:"pass_rate"`
	BlockRate float64 `json:"block_rate"`
}

// AuditMetrics 审计写文件失败与丢弃计数。
type AuditMetrics interface {
	IncAuditDropped()
	IncAuditWriteError()
}

type AuditConfig struct {
	File       string `yaml:"file"` // 为空时只保留内存记录
	MaxRecords int    `yaml:"max_records"`
	QueueSize  int    `yaml:"queue_size"`
}

// AuditLog 内存环形记录 + 后台协程追加写文件。写文件失败只记日志，不影响调用方。
type AuditLog struct {
	mu         sync.RWMutex
	records    []AuditRecord
	maxRecords int

	queue   chan AuditRecord
	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool
	file    *os.File
	// 第一个写文件错误，只由 writeLoop 写入，Close 在 done 之后读取
	writeErr error

	dropped     atomic.Int64
	writeErrors atomic.Int64

	metrics AuditMetrics
	logger  *zap.Logger
}

// NewAuditLog File 为空时只保留内存记录。
func NewAuditLog(cfg AuditConfig, logger *zap.Logger) (*AuditLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultAuditMaxRecords
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultAuditQueueSize
	}
	a := &AuditLog{
		maxRecords: cfg.MaxRecords,
		logger:     logger,
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		a.file = f
		a.start(f, cfg.QueueSize)
		logger.Info("risk audit log opened", zap.String("file", cfg.File))
	}
	return a, nil
}

// SetMetrics 注入计数器。
func (a *AuditLog) SetMetrics(m AuditMetrics) {
	a.mu.Lock()
	a.metrics = m
	a.mu.Unlock()
}

// Append 追加记录；文件队列满时丢弃文件写入但保留内存记录。
func (a *AuditLog) Append(rec AuditRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	a.mu.Lock()
	a.records = append(a.records, rec)
	if len(a.records) > a.maxRecords {
		a.records = a.records[len(a.records)-a.maxRecords:]
	}
	metrics := a.metrics
	a.mu.Unlock()

	a.closeMu.RLock()
	defer a.closeMu.RUnlock()
	if a.queue == nil || a.closed {
		return
	}
	select {
	case a.queue <- rec:
	default:
		a.dropped.Add(1)
		if metrics != nil {
			metrics.IncAuditDropped()
		}
		a.logger.Error("audit queue full, record not persisted",
			zap.String("order_id", rec.OrderID),
			zap.String("result", string(rec.Outcome)))
	}
}

func (a *AuditLog) start(out io.Writer, queueSize int) {
	a.queue = make(chan AuditRecord, queueSize)
	a.done = make(chan struct{})
	go a.writeLoop(out)
}

// writeLoop 缓冲写文件。写失败后丢弃缓冲并重置 writer，后续记录继续写；
// 丢失的每条记录各计一次写失败，第一个错误留给 Close 返回。
func (a *AuditLog) writeLoop(out io.Writer) {
	defer close(a.done)
	w := bufio.NewWriter(out)
	pending := 0
	fail := func(n int, err error) {
		a.writeErrors.Add(int64(n))
		a.mu.RLock()
		metrics := a.metrics
		a.mu.RUnlock()
		if metrics != nil {
			for i := 0; i < n; i++ {
				metrics.IncAuditWriteError()
			}
		}
		a.logger.Error("write audit record failed", zap.Int("records", n), zap.Error(err))
		if a.writeErr == nil {
			a.writeErr = err
		}
	}
	for rec := range a.queue {
		line, err := json.Marshal(rec)
		if err != nil {
			fail(1, err)
			continue
		}
		pending++
		_, err = w.Write(append(line, '\n'))
		// 队列暂空时落盘
		if err == nil && len(a.queue) == 0 {
			err = w.Flush()
		}
		if err != nil {
			fail(pending, err)
			w.Reset(out)
		}
		if err != nil || w.Buffered() == 0 {
			pending = 0
		}
	}
	if pending > 0 {
		if err := w.Flush(); err != nil {
			fail(pending, err)
		}
	}
}

// Close 等待队列写完并关闭文件，可重复调用。
func (a *AuditLog) Close() error {
	a.closeMu.Lock()
	if a.closed {
		a.closeMu.Unlock()
		return nil
	}
	a.closed = true
	if a.queue != nil {
		close(a.queue)
	}
	a.closeMu.Unlock()

	if a.done == nil {
		return nil
	}
	<-a.done
	var err error
	if a.writeErr != nil {
		err = fmt.Errorf("audit file lost %d records: %w", a.writeErrors.Load(), a.writeErr)
	}
	if a.file != nil {
		err = multierr.Append(err, a.file.Close())
	}
	return err
}

// Recent 最近 n 条，按时间先后。
func (a *AuditLog) Recent(n int) []AuditRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if n <= 0 || n > len(a.records) {
		n = len(a.records)
	}
	return append([]AuditRecord(nil), a.records[len(a.records)-n:]...)
}

func (a *AuditLog) ByOutcome(o Outcome) []AuditRecord {
	return a.filter(func(r AuditRecord) bool { return r.Outcome == o })
}

func (a *AuditLog) BySymbol(symbol string) []AuditRecord {
	return a.filter(func(r AuditRecord) bool { return r.Symbol == symbol })
}

func (a *AuditLog) filter(keep func(AuditRecord) bool) []AuditRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []AuditRecord
	for _, r := range a.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (a *AuditLog) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

func (a *AuditLog) Stats() AuditStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ComputeAuditStats(a.records)
}

func (a *AuditLog) Dropped() int64     { return a.dropped.Load() }
func (a *AuditLog) WriteErrors() int64 { return a.writeErrors.Load() }

// ComputeAuditStats 统计一组记录。
func ComputeAuditStats(records []AuditRecord) AuditStats {
	st := AuditStats{Total: len(records)}
	for _, r := range records {
		switch r.Outcome {
		case OutcomePassed:
			st.Passed++
		case OutcomeBlocked:
			st.Blocked++
		case OutcomeWarning:
			st.Warning++
		}
	}
	if st.Total > 0 {
		st.PassRate = float64(st.Passed) / float64(st.Total)
		st.BlockRate = float64(st.Blocked) / float64(st.Total)
	}
	return st
}

// ReadAuditFile 解析审计文件，跳过无法解析的行并返回第一个错误。
func ReadAuditFile(path string) ([]AuditRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	var out []AuditRecord
	var firstErr error
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec AuditRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("audit line %d: %w", lineNo, err)
			}
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan audit file: %w", err)
	}
	return out, firstErr
}
