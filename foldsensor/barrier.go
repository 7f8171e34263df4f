// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"context"
	"sync"
	"time"
)

const defaultOneStepTimeout = time.Second

// Step 标识一次持有的单步屏障，只有持有者的 Step 能释放它
type Step uint64

// NoStep 不对应任何持有，用它释放不会有效果
const NoStep Step = 0

// oneStep 保证同一时刻只有一个传感器结果在转换为显示模式切换。
// 持有者释放时关闭 released 唤醒等待者；等待超时则强制接管，
// 防止丢失的 finish 卡住后续采样。
type oneStep struct {
	mu       sync.Mutex
	held     bool
	gen      uint64
	released chan struct{}
}

func newOneStep() *oneStep {
	return &oneStep{}
}

func (b *oneStep) acquire(ctx context.Context, timeout time.Duration) (Step, error) {
	if timeout <= 0 {
		timeout = defaultOneStepTimeout
	}
	for {
		b.mu.Lock()
		if !b.held {
			step := b.take()
			b.mu.Unlock()
			return step, nil
		}
		ch := b.released
		gen := b.gen
		b.mu.Unlock()

		timer := time.NewTimer(timeout)
		select {
		case <-ch:
			timer.Stop()
			continue
		case <-ctx.Done():
			timer.Stop()
			return NoStep, ctx.Err()
		case <-timer.C:
		}

		b.mu.Lock()
		if b.held && b.gen == gen {
			logger.Warningf("one step not finished in %v, force release", timeout)
			close(b.released)
			step := b.take()
			b.mu.Unlock()
			return step, nil
		}
		b.mu.Unlock()
	}
}

// 调用时需持有 b.mu
func (b *oneStep) take() Step {
	b.held = true
	b.gen++
	b.released = make(chan struct{})
	return Step(b.gen)
}

// release 只释放 step 对应的那次持有，被强制接管后旧的 step 不再生效
func (b *oneStep) release(step Step) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.held || step == NoStep || Step(b.gen) != step {
		return
	}
	b.held = false
	close(b.released)
}

func (b *oneStep) isHeld() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held
}
