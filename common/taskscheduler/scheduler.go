// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package taskscheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/xerrors"
)

var logger = log.NewLogger("daemon/common/taskscheduler")

var ErrSchedulerStopped = xerrors.New("task scheduler stopped")

// Task 在调度器的 goroutine 上执行，ctx 标识了当前调度器，
// 在任务内部用同一个 ctx 调用 PostSyncTask 会直接执行而不会死锁。
// ctx 不要传递给任务之外的 goroutine。
type Task func(ctx context.Context) error

const (
	taskPending int32 = iota
	taskRunning
	taskCanceled
)

type taskItem struct {
	name   string
	task   Task
	state  int32
	result chan error // 异步任务为 nil
}

type ctxKey struct{}

type TaskScheduler struct {
	name string
	ctx  context.Context

	mu      sync.Mutex
	queue   []*taskItem
	timers  map[*time.Timer]struct{}
	stopped bool

	notify chan struct{}
	quit   chan struct{}
	done   chan struct{}
}

func New(name string) *TaskScheduler {
	s := &TaskScheduler{
		name:   name,
		timers: make(map[*time.Timer]struct{}),
		notify: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.ctx = context.WithValue(context.Background(), ctxKey{}, s)
	go s.loop()
	return s
}

func (s *TaskScheduler) Name() string {
	return s.name
}

// IsCurrent 判断 ctx 是否由本调度器派发，即调用方已经运行在调度器上。
func (s *TaskScheduler) IsCurrent(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(ctxKey{}).(*TaskScheduler)
	return v == s
}

// PostAsyncTask 投递一个不等待结果的任务，delay 大于 0 时延迟入队。
// 同一个调度器内任务按入队顺序执行。
func (s *TaskScheduler) PostAsyncTask(task Task, name string, delay time.Duration) {
	item := &taskItem{name: name, task: task}
	if delay <= 0 {
		if !s.enqueue(item) {
			logger.Warningf("[%s] drop task %q, scheduler stopped", s.name, name)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		logger.Warningf("[%s] drop delayed task %q, scheduler stopped", s.name, name)
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()
		s.enqueue(item)
	})
	s.timers[timer] = struct{}{}
}

// PostSyncTask 执行任务并等待其完成。
// 如果已经运行在本调度器上则直接执行；
// 如果在任务开始前 ctx 被取消，任务不会再执行，返回 ctx.Err()。
func (s *TaskScheduler) PostSyncTask(ctx context.Context, task Task, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.IsCurrent(ctx) {
		return s.runTask(ctx, name, task)
	}

	item := &taskItem{
		name:   name,
		task:   task,
		result: make(chan error, 1),
	}
	if !s.enqueue(item) {
		return ErrSchedulerStopped
	}

	select {
	case err := <-item.result:
		return err
	case <-ctx.Done():
		if atomic.CompareAndSwapInt32(&item.state, taskPending, taskCanceled) {
			logger.Debugf("[%s] sync task %q canceled: %v", s.name, name, ctx.Err())
			return ctx.Err()
		}
		// 已经开始执行，必须等它结束
		return <-item.result
	case <-s.done:
		select {
		case err := <-item.result:
			return err
		default:
			return ErrSchedulerStopped
		}
	}
}

// Pending 返回队列中尚未执行的任务数量，不含未到期的延迟任务。
func (s *TaskScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *TaskScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for timer := range s.timers {
		timer.Stop()
	}
	s.timers = nil
	dropped := s.queue
	s.queue = nil
	s.mu.Unlock()

	close(s.quit)
	<-s.done

	for _, item := range dropped {
		if item.result != nil {
			item.result <- ErrSchedulerStopped
		}
	}
}

func (s *TaskScheduler) enqueue(item *taskItem) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, item)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

func (s *TaskScheduler) pop() *taskItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	item := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return item
}

func (s *TaskScheduler) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.notify:
		}

		for {
			select {
			case <-s.quit:
				return
			default:
			}
			item := s.pop()
			if item == nil {
				break
			}
			s.handle(item)
		}
	}
}

func (s *TaskScheduler) handle(item *taskItem) {
	if item.result == nil {
		err := s.runTask(s.ctx, item.name, item.task)
		if err != nil {
			logger.Warningf("[%s] task %q failed: %v", s.name, item.name, err)
		}
		return
	}

	if !atomic.CompareAndSwapInt32(&item.state, taskPending, taskRunning) {
		logger.Debugf("[%s] skip canceled task %q", s.name, item.name)
		return
	}
	item.result <- s.runTask(s.ctx, item.name, item.task)
}

func (s *TaskScheduler) runTask(ctx context.Context, name string, task Task) (err error) {
	defer func() {
		if v := recover(); v != nil {
			logger.Errorf("[%s] task %q panic: %v", s.name, name, v)
			err = xerrors.Errorf("task %q panic: %v", name, v)
		}
	}()
	logger.Debugf("[%s] run task %q", s.name, name)
	return task(ctx)
}
