// Package scheduler 在单个工作 goroutine 上执行一次性任务与周期任务。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status 任务状态
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Func 任务函数，ctx 在调度器停止时取消
type Func func(ctx context.Context) error

var ErrInvalidInterval = errors.New("scheduler: interval must be positive")

// Task 任务的只读视图
type Task struct {
	ID        string
	Name      string
	Status    Status
	Interval  time.Duration // 0 表示一次性任务
	RunCount  int
	LastError string
	LastRun   time.Time
	NextRun   time.Time
	CreatedAt time.Time
}

func (t Task) Periodic() bool { return t.Interval > 0 }

type task struct {
	Task
	fn  Func
	seq int
}

// Options 调度器配置
type Options struct {
	Tick   time.Duration // 轮询间隔，默认 1s
	Clock  func() time.Time
	Logger *zap.Logger
}

type Scheduler struct {
	tick   time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu    sync.Mutex
	tasks map[string]*task
	queue []string
	seq   int

	wake chan struct{}

	runMu    sync.Mutex
	running  bool
	cancel   context.CancelFunc
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(opts Options) *Scheduler {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scheduler{
		tick:   opts.Tick,
		now:    opts.Clock,
		logger: opts.Logger.Named("scheduler"),
		tasks:  make(map[string]*task),
		wake:   make(chan struct{}, 1),
	}
}

func (s *Scheduler) Name() string { return "scheduler" }

// AddTask 添加一次性任务，下次轮询时执行
func (s *Scheduler) AddTask(name string, fn Func) string {
	t := s.newTask(name, 0, fn)
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.queue = append(s.queue, t.ID)
	s.mu.Unlock()

	s.logger.Info("task added", zap.String("task", name), zap.String("id", t.ID))
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return t.ID
}

// AddPeriodic 添加周期任务，首次执行在一个周期之后
func (s *Scheduler) AddPeriodic(name string, interval time.Duration, fn Func) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidInterval, name)
	}
	t := s.newTask(name, interval, fn)
	t.NextRun = t.CreatedAt.Add(interval)
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	s.logger.Info("periodic task added",
		zap.String("task", name), zap.String("id", t.ID), zap.Duration("interval", interval))
	return t.ID, nil
}

func (s *Scheduler) newTask(name string, interval time.Duration, fn Func) *task {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return &task{
		Task: Task{
			ID:        uuid.NewString(),
			Name:      name,
			Status:    StatusPending,
			Interval:  interval,
			CreatedAt: s.now(),
		},
		fn:  fn,
		seq: seq,
	}
}

// Remove 移除任务，正在执行的那一次不受影响
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	for i, qid := range s.queue {
		if qid == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	return true
}

func (s *Scheduler) Task(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.Task, true
}

// Tasks 按创建顺序返回任务，可按状态过滤
func (s *Scheduler) Tasks(status ...Status) []Task {
	s.mu.Lock()
	list := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if len(status) == 0 || hasStatus(status, t.Status) {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	out := make([]Task, len(list))
	for i, t := range list {
		out[i] = t.Task
	}
	s.mu.Unlock()
	return out
}

func hasStatus(set []Status, st Status) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

// Start 启动工作 goroutine，重复调用无副作用
func (s *Scheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	go s.loop(runCtx, s.stopChan, s.doneChan)
	s.logger.Info("scheduler started", zap.Duration("tick", s.tick))
	return nil
}

// Stop 取消正在执行任务的 ctx 并等待工作 goroutine 退出
func (s *Scheduler) Stop() error {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return nil
	}
	s.running = false
	cancel, stop, done := s.cancel, s.stopChan, s.doneChan
	s.runMu.Unlock()

	close(stop)
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-s.wake:
		case <-ticker.C:
		}
		s.RunPending(ctx)
	}
}

// RunPending 执行队列中的一次性任务与所有到期的周期任务
func (s *Scheduler) RunPending(ctx context.Context) int {
	ran := 0
	for ctx.Err() == nil {
		t := s.nextQueued()
		if t == nil {
			break
		}
		s.execute(ctx, t)
		ran++
	}
	for _, t := range s.due() {
		if ctx.Err() != nil {
			break
		}
		s.execute(ctx, t)
		ran++
	}
	return ran
}

func (s *Scheduler) nextQueued() *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		if t, ok := s.tasks[id]; ok {
			return t
		}
	}
	return nil
}

func (s *Scheduler) due() []*task {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*task
	for _, t := range s.tasks {
		if t.Interval > 0 && !now.Before(t.NextRun) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *Scheduler) execute(ctx context.Context, t *task) {
	s.mu.Lock()
	t.Status = StatusRunning
	fn, name, id := t.fn, t.Name, t.ID
	s.mu.Unlock()

	start := s.now()
	err := runSafely(ctx, fn)
	end := s.now()

	s.mu.Lock()
	t.RunCount++
	t.LastRun = start
	if t.Interval > 0 {
		t.NextRun = end.Add(t.Interval)
	}
	if err != nil {
		t.Status = StatusFailed
		t.LastError = err.Error()
	} else {
		t.Status = StatusCompleted
		t.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("task failed", zap.String("task", name), zap.String("id", id), zap.Error(err))
		return
	}
	s.logger.Debug("task completed", zap.String("task", name), zap.String("id", id),
		zap.Duration("elapsed", end.Sub(start)))
}

func runSafely(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn(ctx)
}
