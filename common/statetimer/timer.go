// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package statetimer

import (
	"sync"
	"time"

	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("daemon/common/statetimer")

// Executor 决定超时回调在哪里执行，默认直接在 time 包的 goroutine 中执行。
type Executor func(name string, fn func())

type entry struct {
	timer      *time.Timer
	generation uint64
}

// Timer 是按名字管理的可取消延迟回调。
// 每次 Start 都会递增该名字的代数，回调触发时只有代数一致才会执行，
// 因此 Stop 之后即使底层 timer 已经触发，回调也不会执行。
type Timer struct {
	mu       sync.Mutex
	entries  map[string]*entry
	gens     map[string]uint64
	executor Executor
}

func New() *Timer {
	return &Timer{
		entries: make(map[string]*entry),
		gens:    make(map[string]uint64),
	}
}

func (t *Timer) SetExecutor(executor Executor) {
	t.mu.Lock()
	t.executor = executor
	t.mu.Unlock()
}

// Start 启动名为 name 的定时器，同名的未触发定时器会被替换。
func (t *Timer) Start(name string, d time.Duration, cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.entries[name]; ok {
		old.timer.Stop()
	}
	t.gens[name]++
	gen := t.gens[name]
	e := &entry{generation: gen}
	e.timer = time.AfterFunc(d, func() {
		t.fire(name, gen, cb)
	})
	t.entries[name] = e
	logger.Debugf("start timer %q, duration: %v, generation: %d", name, d, gen)
}

// Stop 取消名为 name 的定时器，返回是否存在未触发的定时器。
func (t *Timer) Stop(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	// 回调可能已经交给 executor 但还未执行，代数总是要递增
	t.gens[name]++
	e, ok := t.entries[name]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(t.entries, name)
	logger.Debugf("stop timer %q", name)
	return true
}

func (t *Timer) IsPending(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[name]
	return ok
}

func (t *Timer) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		e.timer.Stop()
	}
	for name := range t.gens {
		t.gens[name]++
	}
	t.entries = make(map[string]*entry)
}

func (t *Timer) fire(name string, gen uint64, cb func()) {
	t.mu.Lock()
	e, ok := t.entries[name]
	if !ok || e.generation != gen || t.gens[name] != gen {
		t.mu.Unlock()
		logger.Debugf("timer %q generation %d expired, ignore", name, gen)
		return
	}
	delete(t.entries, name)
	executor := t.executor
	t.mu.Unlock()

	run := func() {
		// 交给 executor 之后可能又被重新 Start 或 Stop
		if !t.checkGeneration(name, gen) {
			logger.Debugf("timer %q generation %d canceled before run", name, gen)
			return
		}
		logger.Infof("timer %q timeout", name)
		cb()
	}
	if executor != nil {
		executor(name, run)
		return
	}
	run()
}

func (t *Timer) checkGeneration(name string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gens[name] == gen
}
